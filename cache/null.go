package cache

import (
	"io"
	"time"
)

// Null is a cache that stores nothing, every request recombines and minifies its sources.
type Null struct{}

// Store discards data.
func (Null) Store(string, []byte) error {
	return nil
}

// Fetch always returns ErrNotFound.
func (Null) Fetch(string) ([]byte, error) {
	return nil, ErrNotFound
}

// IsValid is always false.
func (Null) IsValid(string, time.Time) bool {
	return false
}

// Size always returns ErrNotFound.
func (Null) Size(string) (int, error) {
	return 0, ErrNotFound
}

// Display always returns ErrNotFound.
func (Null) Display(io.Writer, string) error {
	return ErrNotFound
}
