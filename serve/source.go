// Package serve combines, minifies and caches groups of JavaScript or CSS files and delivers them over HTTP with
// conditional GET support.
package serve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownType is returned for files whose extension is not mapped to a media type.
var ErrUnknownType = errors.New("unknown file type")

// Types maps file extensions to the media type they are served as.
var Types = map[string]string{
	".js":  "application/javascript",
	".mjs": "application/javascript",
	".css": "text/css",
}

// separators are inserted between the sources of a build.
var separators = map[string][]byte{
	"application/javascript": []byte(";\n"),
	"text/css":               []byte("\n"),
}

// Source is a file that is part of a build.
type Source struct {
	Path    string
	Type    string
	ModTime time.Time
}

// NewSource stats the file at path and derives its type from the extension.
func NewSource(path string) (Source, error) {
	mimetype, ok := Types[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrUnknownType, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, err
	} else if !info.Mode().IsRegular() {
		return Source{}, fmt.Errorf("not a regular file: %s", path)
	}
	return Source{
		Path:    path,
		Type:    mimetype,
		ModTime: info.ModTime(),
	}, nil
}

// Build is a list of sources that are combined into a single response.
type Build struct {
	Sources []Source
}

// NewBuild returns a build of the files at paths.
func NewBuild(paths ...string) (*Build, error) {
	b := &Build{}
	for _, path := range paths {
		src, err := NewSource(path)
		if err != nil {
			return nil, err
		}
		b.Sources = append(b.Sources, src)
	}
	return b, nil
}

// LastModified returns the most recent modification time of all sources.
func (b *Build) LastModified() time.Time {
	var t time.Time
	for _, src := range b.Sources {
		if t.Before(src.ModTime) {
			t = src.ModTime
		}
	}
	return t
}

// Type returns the media type shared by all sources, or an error when they differ.
func (b *Build) Type() (string, error) {
	if len(b.Sources) == 0 {
		return "", errors.New("empty build")
	}
	mimetype := b.Sources[0].Type
	for _, src := range b.Sources[1:] {
		if src.Type != mimetype {
			return "", fmt.Errorf("mixed types %s and %s in %s", mimetype, src.Type, src.Path)
		}
	}
	return mimetype, nil
}

// Paths returns the paths of all sources.
func (b *Build) Paths() []string {
	paths := make([]string, len(b.Sources))
	for i, src := range b.Sources {
		paths[i] = src.Path
	}
	return paths
}

// URI appends the last modification time as a query to uri, so that a changed build gets a new URI and can be
// cached by browsers indefinitely. The ampersand is HTML-escaped for use in attributes.
func (b *Build) URI(uri string) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&amp;"
	}
	return uri + sep + strconv.FormatInt(b.LastModified().Unix(), 10)
}
