package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/matryer/try"
	"github.com/tdewolff/jsmin/serve"
)

const openAttempts = 5

// localFS opens paths relative to the working directory as given on the command line. Unlike os.DirFS it accepts
// paths that leave the directory, such as ../a.js.
type localFS struct{}

func (localFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

func (localFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// isDirPath reports whether path names a directory, either by a trailing separator or by an existing directory
// that is not a symbolic link.
func isDirPath(path string) bool {
	if path != "" && path[len(path)-1] == os.PathSeparator {
		return true
	}
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}

// sameFile reports whether two paths point to the same file, comparing paths is insufficient on case-insensitive
// file systems.
func sameFile(a, b string) bool {
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := os.Stat(b)
	return err == nil && os.SameFile(infoA, infoB)
}

// openInputs opens the sources of a task, multiple sources are read as one stream separated by sep.
func openInputs(srcs []string, sep []byte) (io.ReadCloser, error) {
	open := func(src string) (io.ReadCloser, error) {
		if src == "" {
			return io.NopCloser(os.Stdin), nil
		}
		return serve.OpenFile(src)
	}
	if len(srcs) == 1 {
		return open(srcs[0])
	}
	return serve.NewConcatReader(srcs, open, sep)
}

// openOutput creates the destination file and its directory, retrying while another process holds it.
func openOutput(dst string) (io.WriteCloser, error) {
	if dst == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		return nil, fmt.Errorf("create directory for %q: %w", dst, err)
	}

	var f *os.File
	err := try.Do(func(attempt int) (bool, error) {
		var err error
		f, err = os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0666)
		return attempt < openAttempts, err
	})
	if err != nil {
		return nil, fmt.Errorf("open output file %q: %w", dst, err)
	}
	return f, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// copyLink recreates the symbolic link src at dst, replacing whatever dst holds.
func copyLink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		return err
	}
	return os.Symlink(target, dst)
}

// rename moves a file, retrying while another process holds it.
func rename(from, to string) error {
	return try.Do(func(attempt int) (bool, error) {
		return attempt < openAttempts, os.Rename(from, to)
	})
}
