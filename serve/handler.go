package serve

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tdewolff/jsmin"
	"github.com/tdewolff/jsmin/cache"
	"github.com/tdewolff/jsmin/minify"
	"go.uber.org/zap"
)

// Options configures a Handler.
type Options struct {
	Root       string        // directory that files requested with ?f= are resolved against
	Groups     Groups        // groups requested by name, as /<name>
	AllowFiles bool          // allow requesting files by name, as /?f=a.js,b.js
	Cache      cache.Cache   // defaults to cache.Null
	Minifier   *jsmin.M      // defaults to minify.Default
	MaxAge     time.Duration // Cache-Control max-age
	Logger     *zap.Logger
	Metrics    *Metrics
}

// Handler serves combined and minified builds.
type Handler struct {
	Options
}

// NewHandler returns a Handler for o.
func NewHandler(o Options) *Handler {
	if o.Cache == nil {
		o.Cache = cache.Null{}
	}
	if o.Minifier == nil {
		o.Minifier = minify.Default
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
	return &Handler{o}
}

type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...interface{}) error {
	return &requestError{http.StatusBadRequest, fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) error {
	return &requestError{http.StatusNotFound, fmt.Sprintf(format, args...)}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.Metrics.requests.WithLabelValues(resultError).Inc()
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	key, build, mimetype, err := h.resolve(r)
	if err != nil {
		h.Metrics.requests.WithLabelValues(resultError).Inc()
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			http.Error(w, reqErr.msg, reqErr.status)
			return
		}
		h.Logger.Error("resolve build", zap.String("url", r.URL.String()), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// HTTP dates have a resolution of seconds
	lastModified := build.LastModified().Truncate(time.Second)
	etag := `"` + strconv.FormatInt(lastModified.Unix(), 10) + `pub"`

	header := w.Header()
	header.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	header.Set("ETag", etag)
	header.Set("Cache-Control", "max-age="+strconv.Itoa(int(h.MaxAge/time.Second)))
	if notModified(r, etag, lastModified) {
		h.Metrics.requests.WithLabelValues(resultNotModified).Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}
	header.Set("Content-Type", mimetype+"; charset=utf-8")

	id := cacheID(key, mimetype)
	if h.Cache.IsValid(id, lastModified) {
		if size, err := h.Cache.Size(id); err == nil {
			h.Metrics.requests.WithLabelValues(resultHit).Inc()
			header.Set("Content-Length", strconv.Itoa(size))
			if r.Method == http.MethodHead {
				return
			}
			cw := &countWriter{w: w}
			if err := h.Cache.Display(cw, id); err != nil {
				h.Logger.Error("display cached build", zap.String("id", id), zap.Error(err))
			}
			h.Metrics.bytesServed.Add(float64(cw.n))
			return
		}
	}

	b, err := h.minify(build, mimetype)
	if err != nil {
		h.Metrics.requests.WithLabelValues(resultError).Inc()
		h.Logger.Error("combine build", zap.String("id", id), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.Cache.Store(id, b); err != nil {
		h.Logger.Warn("store build", zap.String("id", id), zap.Error(err))
	}

	h.Metrics.requests.WithLabelValues(resultMiss).Inc()
	header.Set("Content-Length", strconv.Itoa(len(b)))
	if r.Method == http.MethodHead {
		return
	}
	n, _ := w.Write(b)
	h.Metrics.bytesServed.Add(float64(n))
}

// resolve returns the cache key, the build and its media type for a request.
func (h *Handler) resolve(r *http.Request) (string, *Build, string, error) {
	var key, mimetype string
	var paths []string
	if name := strings.TrimPrefix(r.URL.Path, "/"); name != "" {
		group, ok := h.Groups[name]
		if !ok {
			return "", nil, "", notFound("unknown group %q", name)
		}
		key, mimetype, paths = "g="+name, group.Type, group.Files
	} else if files := r.URL.Query().Get("f"); files != "" {
		if !h.AllowFiles {
			return "", nil, "", badRequest("files cannot be requested by name")
		}
		for _, file := range strings.Split(files, ",") {
			if !validFile(file) {
				return "", nil, "", badRequest("invalid file %q", file)
			}
			paths = append(paths, filepath.Join(h.Root, filepath.FromSlash(file)))
		}
		key = "f=" + files
	} else {
		return "", nil, "", badRequest("missing group or files")
	}

	build, err := NewBuild(paths...)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, "", notFound("file not found")
	} else if errors.Is(err, ErrUnknownType) {
		return "", nil, "", badRequest("%v", err)
	} else if err != nil {
		return "", nil, "", err
	}
	if mimetype == "" {
		if mimetype, err = build.Type(); err != nil {
			return "", nil, "", badRequest("%v", err)
		}
	}
	return key, build, mimetype, nil
}

// minify combines the sources of the build and minifies them. When minification fails, the combined sources are
// returned unminified.
func (h *Handler) minify(build *Build, mimetype string) ([]byte, error) {
	start := time.Now()
	defer func() {
		h.Metrics.minifyDuration.Observe(time.Since(start).Seconds())
	}()

	r, err := NewConcatReader(build.Paths(), OpenFile, separators[mimetype])
	if err != nil {
		return nil, err
	}
	defer r.Close()
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	b, err := h.Minifier.Bytes(mimetype, src)
	if err != nil {
		h.Logger.Warn("minify failed, serving unminified", zap.String("type", mimetype), zap.Strings("files", build.Paths()), zap.Error(err))
		return src, nil
	}
	return b, nil
}

func notModified(r *http.Request, etag string, lastModified time.Time) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		for _, tag := range strings.Split(inm, ",") {
			if tag = strings.TrimSpace(tag); tag == etag || tag == "*" {
				return true
			}
		}
		return false
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			return !lastModified.After(t)
		}
	}
	return false
}

// validFile reports whether a file requested by name stays within the root directory.
func validFile(file string) bool {
	if file == "" || strings.ContainsAny(file, "\\\x00") || strings.HasPrefix(file, "/") {
		return false
	}
	for _, elem := range strings.Split(file, "/") {
		if elem == "" || elem == "." || elem == ".." || elem[0] == '.' {
			return false
		}
	}
	return true
}

// cacheID returns a file name safe id for a cache key.
func cacheID(key, mimetype string) string {
	ext := "js"
	if mimetype == "text/css" {
		ext = "css"
	}

	name := make([]byte, 0, len(key))
	for i := 0; i < len(key) && len(name) < 64; i++ {
		c := key[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '-' || c == '.' {
			name = append(name, c)
		} else {
			name = append(name, '_')
		}
	}
	return fmt.Sprintf("jsmin_%s_%08x.%s", bytes.Trim(name, "._"), crc32.ChecksumIEEE([]byte(mimetype+"|"+key)), ext)
}

type countWriter struct {
	w io.Writer
	n int
}

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += n
	return n, err
}
