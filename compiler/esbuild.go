package compiler

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

// Esbuild minifies whitespace in-process with esbuild. Unlike the lexer it parses the source and thus rejects
// syntax errors.
type Esbuild struct {
	Fallback Compiler // used on syntax errors, nil returns the error instead
	Logger   *zap.Logger
}

// Compile minifies src.
func (c *Esbuild) Compile(ctx context.Context, src []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := api.Transform(string(src), api.TransformOptions{
		Loader:           api.LoaderJS,
		LogLevel:         api.LogLevelSilent,
		MinifyWhitespace: true,
	})
	if 0 < len(result.Errors) {
		return fallback(ctx, c.Fallback, nopLogger(c.Logger), "esbuild", src, esbuildError(result.Errors))
	}
	return bytes.TrimRight(result.Code, "\n"), nil
}

func esbuildError(msgs []api.Message) error {
	var sb strings.Builder
	for i, msg := range msgs {
		if 0 < i {
			sb.WriteByte('\n')
		}
		if msg.Location != nil {
			fmt.Fprintf(&sb, "%d:%d: ", msg.Location.Line, msg.Location.Column)
		}
		sb.WriteString(msg.Text)
	}
	return fmt.Errorf("esbuild: %s", sb.String())
}
