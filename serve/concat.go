package serve

import (
	"fmt"
	"io"
	"os"

	"github.com/matryer/try"
)

// OpenFile opens a file for reading, retrying a few times when it is being replaced concurrently.
func OpenFile(filename string) (io.ReadCloser, error) {
	var r *os.File
	err := try.Do(func(attempt int) (bool, error) {
		var ferr error
		r, ferr = os.Open(filename)
		return attempt < 5, ferr
	})
	if err != nil {
		return nil, fmt.Errorf("open input file %q: %w", filename, err)
	}
	return r, nil
}

// ConcatReader reads a list of files one after the other with a separator in between.
type ConcatReader struct {
	filenames []string
	sep       []byte
	opener    func(string) (io.ReadCloser, error)

	cur     io.ReadCloser
	sepLeft int
}

// NewConcatReader opens the first file and returns the reader, following files are opened when the previous one
// is exhausted.
func NewConcatReader(filenames []string, opener func(string) (io.ReadCloser, error), sep []byte) (*ConcatReader, error) {
	var cur io.ReadCloser
	if 0 < len(filenames) {
		var filename string
		filename, filenames = filenames[0], filenames[1:]

		var err error
		if cur, err = opener(filename); err != nil {
			return nil, err
		}
	}
	return &ConcatReader{filenames, sep, opener, cur, 0}, nil
}

func (r *ConcatReader) Read(p []byte) (int, error) {
	m := r.writeSep(p) // write remaining separator
	if r.cur == nil {
		return m, io.EOF
	}
	n, err := r.cur.Read(p[m:])
	n += m

	// current reader is finished, load in the new reader
	if err == io.EOF {
		if err := r.cur.Close(); err != nil {
			return n, err
		}
		r.cur = nil

		if 0 < len(r.filenames) {
			var filename string
			filename, r.filenames = r.filenames[0], r.filenames[1:]
			if r.cur, err = r.opener(filename); err != nil {
				return n, err
			}
			r.sepLeft = len(r.sep)

			// if previous read returned (0, io.EOF), read from the new reader
			if n == 0 {
				return r.Read(p)
			}
			n += r.writeSep(p[n:])
		}
	}
	return n, err
}

func (r *ConcatReader) writeSep(p []byte) int {
	if 0 < r.sepLeft {
		m := copy(p, r.sep[len(r.sep)-r.sepLeft:])
		r.sepLeft -= m
		return m
	}
	return 0
}

// Close closes the file that is currently being read.
func (r *ConcatReader) Close() error {
	if r.cur != nil {
		return r.cur.Close()
	}
	return nil
}
