package serve

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/jsmin/cache"
)

var modTime = time.Unix(1700000000, 0)

func newTestHandler(t *testing.T, c cache.Cache) (*Handler, *Metrics, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "js/a.js", "var a = 1 ;\n// comment\n", modTime)
	writeFile(t, dir, "js/b.js", "function b ( x ) {\n  return x + ++x\n}\n", modTime.Add(-time.Hour))
	writeFile(t, dir, "js/broken.js", "var s = 'unterminated\n", modTime)
	writeFile(t, dir, "css/a.css", "  a { color: blue }\n", modTime)
	writeFile(t, dir, ".hidden/c.js", "var c", modTime)

	metrics := NewMetrics(prometheus.NewRegistry())
	h := NewHandler(Options{
		Root: dir,
		Groups: Groups{
			"base":   {Files: []string{dir + "/js/a.js", dir + "/js/b.js"}},
			"style":  {Files: []string{dir + "/css/a.css"}},
			"broken": {Files: []string{dir + "/js/a.js", dir + "/js/broken.js"}},
			"gone":   {Files: []string{dir + "/js/missing.js"}},
		},
		AllowFiles: true,
		Cache:      c,
		MaxAge:     30 * time.Minute,
		Metrics:    metrics,
	})
	return h, metrics, dir
}

func get(h http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerGroup(t *testing.T) {
	h, metrics, _ := newTestHandler(t, nil)

	w := get(h, "/base", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "var a=1;;function b(x){return x+ ++x}", w.Body.String())
	assert.Equal(t, "application/javascript; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, modTime.UTC().Format(http.TimeFormat), w.Header().Get("Last-Modified"))
	assert.Equal(t, `"1700000000pub"`, w.Header().Get("ETag"))
	assert.Equal(t, "max-age=1800", w.Header().Get("Cache-Control"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues(resultMiss)))
	assert.Equal(t, float64(w.Body.Len()), testutil.ToFloat64(metrics.bytesServed))

	w = get(h, "/style", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a { color: blue }", w.Body.String())
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestHandlerFiles(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	w := get(h, "/?f=js/b.js,js/a.js", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "function b(x){return x+ ++x};var a=1;", w.Body.String())

	for _, target := range []string{
		"/?f=../etc/passwd.js",
		"/?f=/etc/passwd.js",
		"/?f=js/./a.js",
		"/?f=.hidden/c.js",
		"/?f=js%5Ca.js",
		"/?f=js/a.js,,js/b.js",
		"/?f=js/a.js,css/a.css",
		"/?f=js/a.txt",
		"/",
	} {
		w := get(h, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}

	assert.Equal(t, http.StatusNotFound, get(h, "/?f=js/missing.js", nil).Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/unknown", nil).Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/gone", nil).Code)

	h.AllowFiles = false
	assert.Equal(t, http.StatusBadRequest, get(h, "/?f=js/a.js", nil).Code)
}

func TestHandlerNotModified(t *testing.T) {
	h, metrics, _ := newTestHandler(t, nil)

	w := get(h, "/base", map[string]string{"If-None-Match": `"1700000000pub"`})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = get(h, "/base", map[string]string{"If-None-Match": `"1600000000pub"`})
	assert.Equal(t, http.StatusOK, w.Code, "etag does not match")

	w = get(h, "/base", map[string]string{"If-Modified-Since": modTime.UTC().Format(http.TimeFormat)})
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = get(h, "/base", map[string]string{"If-Modified-Since": modTime.Add(-time.Second).UTC().Format(http.TimeFormat)})
	assert.Equal(t, http.StatusOK, w.Code, "modified since")

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.requests.WithLabelValues(resultNotModified)))
}

func TestHandlerMinifyError(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	w := get(h, "/broken", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "var a = 1 ;\n// comment\n;\nvar s = 'unterminated\n", w.Body.String(), "unminified on error")
}

func TestHandlerCache(t *testing.T) {
	c := cache.NewFile(t.TempDir(), cache.FileOptions{Locking: true})
	h, metrics, dir := newTestHandler(t, c)

	w := get(h, "/base", nil)
	require.Equal(t, http.StatusOK, w.Code)
	minified := w.Body.String()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues(resultMiss)))

	w = get(h, "/base", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, minified, w.Body.String())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues(resultHit)))

	// a changed source invalidates the cached build
	writeFile(t, dir, "js/a.js", "var a = 2 ;", time.Now().Add(time.Hour))
	w = get(h, "/base", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "var a=2;;function b"))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.requests.WithLabelValues(resultMiss)))
}

func TestHandlerHead(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodHead, "/base", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Content-Length"))

	req = httptest.NewRequest(http.MethodPost, "/base", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, HEAD", w.Header().Get("Allow"))
}

func TestCacheID(t *testing.T) {
	id := cacheID("g=base", "application/javascript")
	assert.True(t, strings.HasPrefix(id, "jsmin_g_base_"))
	assert.True(t, strings.HasSuffix(id, ".js"))
	assert.NotContains(t, cacheID("f=js/a.js,../b.js", "application/javascript"), "/")
	assert.NotEqual(t, cacheID("f=a/b.js", "application/javascript"), cacheID("f=a_b.js", "application/javascript"))
	assert.True(t, strings.HasSuffix(cacheID("g=style", "text/css"), ".css"))
}
