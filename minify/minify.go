// Package minify holds a registry with the default minifiers for every media type the server and command
// line tool deliver.
package minify

import (
	"regexp"

	"github.com/tdewolff/jsmin"
	"github.com/tdewolff/jsmin/js"
	"github.com/tdewolff/jsmin/trim"
)

// JSMimetype matches the media types of JavaScript.
var JSMimetype = regexp.MustCompile("^(application|text)/(x-)?(java|ecma|j|live)script(1\\.[0-5])?$|^module$")

// Default minifiers for JS, and trimming for CSS and plain text
var Default *jsmin.M

func init() {
	Default = jsmin.New()
	Default.AddFuncRegexp(JSMimetype, js.Minify)
	Default.AddFunc("text/css", trim.Minify)
	Default.AddFunc("text/plain", trim.Minify)
}

// JS string minifier using all default minifiers
func JS(s string) (string, error) {
	return Default.String("application/javascript", s)
}

// CSS string trimmer using all default minifiers
func CSS(s string) (string, error) {
	return Default.String("text/css", s)
}
