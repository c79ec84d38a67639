// Package js minifies JavaScript by removing comments and insignificant whitespace in a single pass over the
// source bytes, following Douglas Crockford's JSMin. It does not parse the source: string, template and regular
// expression literals are copied byte for byte.
package js

import (
	"io"

	"github.com/tdewolff/jsmin"
	"github.com/tdewolff/parse/v2"
)

// DefaultMinifier is the default minifier.
var DefaultMinifier = &Minifier{}

// Minifier is a JS minifier.
type Minifier struct {
	KeepLicenseComments bool // keep /*! ... */ comments on their own line
}

// Minify minifies JS data, it reads from r and writes to w.
func Minify(m *jsmin.M, w io.Writer, r io.Reader, params map[string]string) error {
	return DefaultMinifier.Minify(m, w, r, params)
}

// Bytes minifies the JS source in src using the default minifier.
func Bytes(src []byte) ([]byte, error) {
	return DefaultMinifier.Bytes(src)
}

// Minify minifies JS data, it reads from r and writes to w.
func (o *Minifier) Minify(_ *jsmin.M, w io.Writer, r io.Reader, _ map[string]string) error {
	z := parse.NewInput(r)
	defer z.Restore()
	if err := z.Err(); err != nil && err != io.EOF {
		return err
	}

	b, err := o.Bytes(z.Bytes())
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Bytes minifies the JS source in src. It returns an *Error when a string, regular expression or comment is not
// terminated. The returned slice does not alias src.
func (o *Minifier) Bytes(src []byte) ([]byte, error) {
	return newLexer(src, o.KeepLicenseComments).run()
}
