package minify

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestMinify(t *testing.T) {
	js, err := JS("var a = 5.0;\n// done\n")
	test.Error(t, err)
	test.String(t, js, `var a=5.0;`)

	css, err := CSS("  a { color: blue; }\n")
	test.Error(t, err)
	test.String(t, css, `a { color: blue; }`)

	for _, mimetype := range []string{"text/javascript", "application/x-javascript", "application/ecmascript", "text/javascript1.5", "module"} {
		out, err := Default.String(mimetype, "a = 1")
		test.Error(t, err, mimetype)
		test.String(t, out, "a=1", mimetype)
	}

	_, err = Default.String("image/png", "")
	test.That(t, err != nil, "no minifier for images")
}
