// Package trim is the fallback minifier for media types without a dedicated minifier, such as stylesheets
// that are served next to scripts in a group.
package trim

import (
	"bytes"
	"io"

	"github.com/tdewolff/jsmin"
	"github.com/tdewolff/parse/v2"
)

// Minify removes all whitespace at the beginning and end of the stream, and trailing whitespace of every line
// when params["lines"] is "1".
func Minify(_ *jsmin.M, w io.Writer, r io.Reader, params map[string]string) error {
	z := parse.NewInput(r)
	defer z.Restore()
	if err := z.Err(); err != nil && err != io.EOF {
		return err
	}

	b := bytes.TrimSpace(z.Bytes())
	if params["lines"] == "1" {
		b = trimLines(b)
	}
	_, err := w.Write(b)
	return err
}

func trimLines(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, line := range bytes.Split(b, []byte("\n")) {
		line = bytes.TrimRight(line, " \t\r")
		if len(line) == 0 {
			continue
		}
		if 0 < len(out) {
			out = append(out, '\n')
		}
		out = append(out, line...)
	}
	return out
}
