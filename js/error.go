package js

import "fmt"

// ErrorKind is the kind of unterminated token that aborted minification.
type ErrorKind int

// ErrorKind values.
const (
	UnterminatedString ErrorKind = iota
	UnterminatedRegExp
	UnterminatedComment
)

func (k ErrorKind) String() string {
	switch k {
	case UnterminatedString:
		return "String"
	case UnterminatedRegExp:
		return "RegExp"
	case UnterminatedComment:
		return "comment"
	}
	return "Invalid(" + fmt.Sprint(int(k)) + ")"
}

// Error is returned for malformed input. Offset and Snippet follow a different convention per kind:
// for strings and regular expressions Offset is the index of the last byte read (the line terminator or the
// last byte of the input), for comments it is the length of the input.
type Error struct {
	Kind    ErrorKind
	Offset  int
	Snippet []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("JSMin: Unterminated %v at byte %d: %s", e.Kind, e.Offset, e.Snippet)
}
