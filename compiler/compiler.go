// Package compiler provides alternatives to the built-in lexer: a remote Closure Compiler service and esbuild.
// Each of them can fall back to another compiler, usually Local, when it fails.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tdewolff/jsmin"
	"github.com/tdewolff/jsmin/js"
	"github.com/tdewolff/parse/v2"
	"go.uber.org/zap"
)

// ErrTooLarge is matched by errors for sources that exceed a compiler's size limit.
var ErrTooLarge = errors.New("content too large")

// TooLargeError is returned when a source is larger than MaxBytes.
type TooLargeError struct {
	MaxBytes int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("POST content larger than %d bytes", e.MaxBytes)
}

// Is makes errors.Is(err, ErrTooLarge) succeed.
func (e *TooLargeError) Is(target error) bool {
	return target == ErrTooLarge
}

// Compiler minifies JavaScript source.
type Compiler interface {
	Compile(ctx context.Context, src []byte) ([]byte, error)
}

// Func is a function that implements Compiler.
type Func func(context.Context, []byte) ([]byte, error)

// Compile calls f(ctx, src).
func (f Func) Compile(ctx context.Context, src []byte) ([]byte, error) {
	return f(ctx, src)
}

// Local is the built-in JSMin lexer.
var Local Compiler = Func(func(_ context.Context, src []byte) ([]byte, error) {
	return js.Bytes(src)
})

// Minifier adapts a compiler to the minifier registry.
func Minifier(c Compiler) jsmin.Minifier {
	return jsmin.MinifierFunc(func(_ *jsmin.M, w io.Writer, r io.Reader, _ map[string]string) error {
		z := parse.NewInput(r)
		defer z.Restore()
		if err := z.Err(); err != nil && err != io.EOF {
			return err
		}

		b, err := c.Compile(context.Background(), z.Bytes())
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	})
}

// fallback compiles src with c after the compiler named name failed with cause. The output is prefixed with a
// comment that holds the cause.
func fallback(ctx context.Context, c Compiler, logger *zap.Logger, name string, src []byte, cause error) ([]byte, error) {
	if c == nil {
		return nil, cause
	}
	logger.Warn("using fallback minifier", zap.String("compiler", name), zap.Error(cause))

	out, err := c.Compile(ctx, src)
	if err != nil {
		return nil, err
	}
	msg := bytes.ReplaceAll([]byte(cause.Error()), []byte("*/"), []byte("* /"))

	b := &bytes.Buffer{}
	b.Grow(len(out) + len(msg) + 64)
	fmt.Fprintf(b, "/* Received errors from %s:\n%s\n(Using fallback minifier)\n*/\n", name, msg)
	b.Write(out)
	return b.Bytes(), nil
}

func nopLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
