package serve

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string, modTime time.Time) string {
	t.Helper()
	filename := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(filename), 0777))
	require.NoError(t, os.WriteFile(filename, []byte(content), 0666))
	require.NoError(t, os.Chtimes(filename, modTime, modTime))
	return filename
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	t1 := time.Unix(1700000000, 0)
	t2 := time.Unix(1700000500, 0)
	file1 := writeFile(t, dir, "a.js", "var a", t1)
	file2 := writeFile(t, dir, "b.js", "var b", t2)

	b, err := NewBuild(file1)
	require.NoError(t, err)
	assert.True(t, t1.Equal(b.LastModified()), "single file path")

	b, err = NewBuild(file1, file2)
	require.NoError(t, err)
	assert.True(t, t2.Equal(b.LastModified()), "multiple file paths")
	assert.Equal(t, "/path?1700000500", b.URI("/path"))
	assert.Equal(t, "/path?hello&amp;1700000500", b.URI("/path?hello"))

	mimetype, err := b.Type()
	require.NoError(t, err)
	assert.Equal(t, "application/javascript", mimetype)
	assert.Equal(t, []string{file1, file2}, b.Paths())
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	js := writeFile(t, dir, "a.js", "", time.Now())
	css := writeFile(t, dir, "a.css", "", time.Now())
	txt := writeFile(t, dir, "a.txt", "", time.Now())

	_, err := NewBuild(txt)
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = NewBuild(filepath.Join(dir, "missing.js"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	b, err := NewBuild(js, css)
	require.NoError(t, err)
	_, err = b.Type()
	assert.Error(t, err, "mixed types")

	_, err = (&Build{}).Type()
	assert.Error(t, err)
	assert.True(t, (&Build{}).LastModified().IsZero())
}
