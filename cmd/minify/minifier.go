package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tdewolff/jsmin"
	"github.com/tdewolff/jsmin/compiler"
	"github.com/tdewolff/jsmin/js"
	"github.com/tdewolff/jsmin/minify"
	"github.com/tdewolff/jsmin/trim"
	"golang.org/x/time/rate"
)

type jsOptions struct {
	Cmd     string // external command line
	Esbuild bool
	Closure string // service URL
}

// newMinifier returns the registry for the command line options. At most one alternative JS minifier can be
// selected, the built-in minifier is the fallback of the in-process ones.
func newMinifier(jsMinifier *js.Minifier, o jsOptions) (*jsmin.M, error) {
	n := 0
	for _, set := range []bool{o.Cmd != "", o.Esbuild, o.Closure != ""} {
		if set {
			n++
		}
	}
	if 1 < n {
		return nil, fmt.Errorf("--js-cmd, --js-esbuild and --js-closure are mutually exclusive")
	}

	local := compiler.Func(func(_ context.Context, src []byte) ([]byte, error) {
		return jsMinifier.Bytes(src)
	})

	m := jsmin.New()
	switch {
	case o.Cmd != "":
		if err := m.AddCmdStringRegexp(minify.JSMimetype, o.Cmd); err != nil {
			return nil, err
		}
	case o.Esbuild:
		m.AddRegexp(minify.JSMimetype, compiler.Minifier(&compiler.Esbuild{Fallback: local}))
	case o.Closure != "":
		closure := compiler.NewClosure()
		closure.URL = o.Closure
		closure.Fallback = local
		closure.Limiter = rate.NewLimiter(rate.Every(time.Second), 1)
		m.AddRegexp(minify.JSMimetype, compiler.Minifier(closure))
	default:
		m.AddRegexp(minify.JSMimetype, jsMinifier)
	}
	m.AddFunc("text/css", trim.Minify)
	return m, nil
}
