// Package cache stores minified builds so that they are only recombined and minified again when one of their
// sources changes. Entries are identified by an id, such as a file name, and are valid as long as they are not
// older than the newest source.
package cache

import (
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned when no entry exists for an id.
var ErrNotFound = errors.New("cache entry not found")

// ErrVerify is returned when an entry could not be read back after it was stored.
var ErrVerify = errors.New("cache entry verification failed")

// ErrInvalidID is returned for ids that cannot be used as a key, such as ids containing path separators.
var ErrInvalidID = errors.New("invalid cache id")

// Cache is a store for minified content. Implementations are safe for concurrent use.
type Cache interface {
	// Store writes data for id.
	Store(id string, data []byte) error
	// Fetch returns the data stored for id.
	Fetch(id string) ([]byte, error)
	// IsValid reports whether an entry exists for id that is not older than srcModTime.
	IsValid(id string, srcModTime time.Time) bool
	// Size returns the size of the entry in bytes.
	Size(id string) (int, error)
	// Display writes the entry to w.
	Display(w io.Writer, id string) error
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, "/\\\x00")
}
