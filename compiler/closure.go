package compiler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultURL is the endpoint of the public Closure Compiler service.
const DefaultURL = "https://closure-compiler.appspot.com/compile"

// DefaultMaxBytes is the largest source the public service accepts.
const DefaultMaxBytes = 200000

// ClosureError holds the error messages returned by the service.
type ClosureError struct {
	Message string
}

func (e *ClosureError) Error() string {
	return e.Message
}

var closureErrorRe = regexp.MustCompile(`^Error\(\d\d?\):`)

// Closure compiles through the Closure Compiler service API.
type Closure struct {
	URL              string            // defaults to DefaultURL
	Client           *http.Client      // defaults to http.DefaultClient
	CompilationLevel string            // defaults to SIMPLE_OPTIMIZATIONS
	Options          map[string]string // additional form fields, such as language=ECMASCRIPT5
	MaxBytes         int               // largest source that is sent, zero means unlimited
	Limiter          *rate.Limiter     // throttles requests, nil means unthrottled
	Fallback         Compiler          // used when the service fails, nil returns the error instead
	Logger           *zap.Logger
}

// NewClosure returns a Closure for the public service with its size limit.
func NewClosure() *Closure {
	return &Closure{
		MaxBytes: DefaultMaxBytes,
	}
}

// Compile sends src to the service. Any failure, including a source that is too large, is handled by the
// fallback compiler when one is set.
func (c *Closure) Compile(ctx context.Context, src []byte) ([]byte, error) {
	out, err := c.compile(ctx, src)
	if err != nil {
		return fallback(ctx, c.Fallback, nopLogger(c.Logger), "Closure Compiler API", src, err)
	}
	return out, nil
}

func (c *Closure) compile(ctx context.Context, src []byte) ([]byte, error) {
	if 0 < c.MaxBytes && c.MaxBytes < len(src) {
		return nil, &TooLargeError{c.MaxBytes}
	}

	out, err := c.post(ctx, c.form(src, "compiled_code"))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		// ask again for the errors that prevented compilation
		msg, err := c.post(ctx, c.form(src, "errors"))
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(msg)) == 0 {
			msg = []byte("empty response")
		}
		return nil, &ClosureError{strings.TrimSpace(string(msg))}
	} else if closureErrorRe.Match(out) {
		return nil, &ClosureError{strings.TrimSpace(string(out))}
	}
	return out, nil
}

func (c *Closure) form(src []byte, outputInfo string) url.Values {
	level := c.CompilationLevel
	if level == "" {
		level = "SIMPLE_OPTIMIZATIONS"
	}
	form := url.Values{}
	for key, value := range c.Options {
		form.Set(key, value)
	}
	form.Set("js_code", string(src))
	form.Set("output_format", "text")
	form.Set("output_info", outputInfo)
	form.Set("compilation_level", level)
	return form
}

func (c *Closure) post(ctx context.Context, form url.Values) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := c.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("closure compiler request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("closure compiler response: %w", err)
	} else if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("closure compiler response: %s", resp.Status)
	}
	return body, nil
}
