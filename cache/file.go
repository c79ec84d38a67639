package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/matryer/try"
	"go.uber.org/zap"
)

// FileOptions configures a File cache.
type FileOptions struct {
	Locking bool        // take advisory locks, shared for reading and exclusive for writing
	Logger  *zap.Logger // receives warnings about failed writes, defaults to a no-op logger
}

// File is a cache that keeps every entry as a file in a directory.
type File struct {
	path    string
	locking bool
	logger  *zap.Logger
}

// NewFile returns a file cache in path, or in the temporary directory when path is empty.
func NewFile(path string, o FileOptions) *File {
	if path == "" {
		path = os.TempDir()
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{
		path:    path,
		locking: o.Locking,
		logger:  logger.With(zap.String("cache", "file")),
	}
}

// Path returns the directory of the cache.
func (c *File) Path() string {
	return c.path
}

func (c *File) filename(id string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(c.path, id), nil
}

// Store writes data to the file for id and reads it back. When the content read back differs, the file is removed
// and ErrVerify is returned.
func (c *File) Store(id string, data []byte) error {
	filename, err := c.filename(id)
	if err != nil {
		return err
	}

	if err := c.write(filename, data); err != nil {
		c.logger.Warn("write failed", zap.String("file", filename), zap.Error(err))
	}

	// write control
	if stored, err := c.Fetch(id); err != nil || !bytes.Equal(stored, data) {
		os.Remove(filename)
		c.logger.Warn("post-write read failed", zap.String("file", filename), zap.Error(err))
		return fmt.Errorf("%w: %s", ErrVerify, filename)
	}
	return nil
}

func (c *File) write(filename string, data []byte) error {
	var f *os.File
	err := try.Do(func(attempt int) (bool, error) {
		var ferr error
		f, ferr = os.OpenFile(filename, os.O_WRONLY|os.O_CREATE, 0666)
		return attempt < 5, ferr
	})
	if err != nil {
		return err
	}
	defer f.Close()

	if c.locking {
		if err := lockExclusive(f); err != nil {
			return err
		}
		defer unlock(f)
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func (c *File) open(id string) (*os.File, error) {
	filename, err := c.filename(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	if c.locking {
		if err := lockShared(f); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (c *File) close(f *os.File) {
	if c.locking {
		unlock(f)
	}
	f.Close()
}

// Fetch returns the content of the file for id.
func (c *File) Fetch(id string) ([]byte, error) {
	f, err := c.open(id)
	if err != nil {
		return nil, err
	}
	defer c.close(f)
	return io.ReadAll(f)
}

// Display copies the content of the file for id to w.
func (c *File) Display(w io.Writer, id string) error {
	f, err := c.open(id)
	if err != nil {
		return err
	}
	defer c.close(f)
	_, err = io.Copy(w, f)
	return err
}

// IsValid reports whether the file for id exists and was modified at or after srcModTime.
func (c *File) IsValid(id string, srcModTime time.Time) bool {
	filename, err := c.filename(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(filename)
	return err == nil && info.Mode().IsRegular() && !info.ModTime().Before(srcModTime)
}

// Size returns the size of the file for id.
func (c *File) Size(id string) (int, error) {
	filename, err := c.filename(id)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}
	return int(info.Size()), nil
}
