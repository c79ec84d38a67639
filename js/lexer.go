package js

import (
	"bytes"
)

const (
	eof  = -1
	none = -2 // pending byte was dropped and must not be written
)

var bom = []byte("\xEF\xBB\xBF")

// action decides what happens to the pending byte a and the lookahead byte b.
type action int

const (
	keepA   action = iota + 1 // write a, move b into a, read the next b
	deleteA                   // drop a, move b into a, read the next b
	deleteB                   // drop b, read the next b
)

type lexer struct {
	src  []byte
	pos  int
	bPos int // offset of b in src

	a, b    int
	aRegExp bool // a is the closing slash of a regular expression
	out     []byte
	last    byte // last byte written

	// slash is set when the last byte written is a division or the closing slash of a regular expression,
	// lastRegExp when it is the latter
	slash      bool
	lastRegExp bool

	keepLicense bool
	license     []byte // preserved comments waiting to be written
}

func newLexer(src []byte, keepLicense bool) *lexer {
	l := &lexer{
		src:         src,
		a:           '\n',
		out:         make([]byte, 0, len(src)),
		keepLicense: keepLicense,
	}
	if bytes.HasPrefix(src, bom) {
		l.pos = len(bom)
	}
	return l
}

func (l *lexer) run() ([]byte, error) {
	if err := l.action(deleteB); err != nil {
		return nil, err
	}
	for l.a != eof {
		act := keepA
		switch {
		case isWhitespace(l.a):
			if !joins(l.last, l.b) && !isIdentifier(l.b) {
				act = deleteA
			}
		case isLineTerminator(l.a):
			if isWhitespace(l.b) {
				act = deleteB
			} else if l.b == eof || !keptAfterNewlineTable[l.b] && !isIdentifier(l.b) {
				act = deleteA
			}
		case !isIdentifier(l.a):
			// a line terminator after a regular expression stays, the next line could otherwise be read as flags
			if isWhitespace(l.b) || isLineTerminator(l.b) && !keptBeforeNewlineTable[l.a] && !l.aRegExp {
				act = deleteB
			}
		}
		if err := l.action(act); err != nil {
			return nil, err
		}
	}
	l.flushLicense()
	return bytes.TrimRight(l.out, " \n"), nil
}

// joins reports whether c written directly after prev would be read as a different token, such as + ++a
// turning into +++a or a division followed by a regular expression turning into a comment.
func joins(prev byte, c int) bool {
	switch prev {
	case '+', '-':
		return c == int(prev)
	case '/':
		return c == '/' || c == '*'
	}
	return false
}

func (l *lexer) action(act action) error {
	if act == deleteB && l.b == ' ' && 0 <= l.a && joins(byte(l.a), l.peek()) {
		act = keepA
	}

	var err error
	switch act {
	case keepA:
		l.emitToken(l.a)
		l.lastRegExp = l.aRegExp
		l.flushLicense()
		fallthrough
	case deleteA:
		l.a = l.b
		l.aRegExp = false
		if l.a == '\'' || l.a == '"' || l.a == '`' {
			if err = l.literal(); err != nil {
				return err
			}
		}
		fallthrough
	case deleteB:
		if l.b, err = l.next(); err != nil {
			return err
		}
		if l.b == '/' && l.isRegExpStart() {
			if err = l.regExp(); err != nil {
				return err
			}
			l.aRegExp = true
			if l.b, err = l.next(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *lexer) emit(c int) {
	if len(l.out) == 0 && (c == ' ' || c == '\n') || c < 0 {
		return
	}
	l.out = append(l.out, byte(c))
	l.last = byte(c)
	l.slash = false
	l.lastRegExp = false
}

// emitToken writes a byte outside of literals. A slash or asterisk directly after a slash would open a comment,
// which happens when the separator between them was dropped, and gets a space in between.
func (l *lexer) emitToken(c int) {
	if c < 0 {
		return
	}
	if l.slash && (c == '/' || c == '*') {
		l.emit(' ')
	}
	l.emit(c)
	l.slash = c == '/'
}

func (l *lexer) flushLicense() {
	if len(l.license) == 0 {
		return
	}
	if 0 < len(l.out) && l.out[len(l.out)-1] != '\n' {
		l.out = append(l.out, '\n')
	}
	l.out = append(l.out, l.license...)
	l.license = l.license[:0]
	l.last = '\n'
	l.slash = false
	l.lastRegExp = false
}

// get returns the next byte, translating CR and CRLF into LF and other control characters into a space.
func (l *lexer) get() int {
	if len(l.src) <= l.pos {
		return eof
	}
	c := l.src[l.pos]
	l.pos++
	if c == '\r' {
		if l.pos < len(l.src) && l.src[l.pos] == '\n' {
			l.pos++
		}
		return '\n'
	} else if c < ' ' && c != '\n' {
		return ' '
	}
	return int(c)
}

// getRaw returns the next byte untranslated, it is used inside literals.
func (l *lexer) getRaw() int {
	if len(l.src) <= l.pos {
		return eof
	}
	c := l.src[l.pos]
	l.pos++
	return int(c)
}

func (l *lexer) peek() int {
	if len(l.src) <= l.pos {
		return eof
	}
	return int(l.src[l.pos])
}

// next returns the next byte while skipping comments. A line comment is returned as a line terminator, a block
// comment as a space unless it spans multiple lines.
func (l *lexer) next() (int, error) {
	start := l.pos
	c := l.get()
	l.bPos = start
	if c == '/' {
		switch l.peek() {
		case '/':
			for c = l.get(); c != eof && c != '\n'; c = l.get() {
			}
			return '\n', nil
		case '*':
			return l.blockComment(start)
		}
	}
	return c, nil
}

func (l *lexer) blockComment(start int) (int, error) {
	l.pos++ // *
	c := int(' ')
	for {
		switch l.getRaw() {
		case '*':
			if l.peek() == '/' {
				l.pos++
				if l.keepLicense && start+2 < l.pos && l.src[start+2] == '!' {
					l.license = append(l.license, l.src[start:l.pos]...)
					l.license = append(l.license, '\n')
				}
				return c, nil
			}
		case '\n', '\r':
			c = '\n'
		case eof:
			return eof, &Error{UnterminatedComment, l.pos, l.src[start:]}
		}
	}
}

// literal copies a string or template literal verbatim, a holds the opening quote. On return a holds the
// closing quote.
func (l *lexer) literal() error {
	quote := l.a
	start := l.bPos
	for {
		l.emit(l.a)
		l.a = l.getRaw()
		switch {
		case l.a == quote:
			return nil
		case l.a == eof:
			return &Error{UnterminatedString, l.pos - 1, l.src[start:]}
		case isLineTerminator(l.a) && quote != '`':
			return &Error{UnterminatedString, l.pos - 1, l.src[start : l.pos-1]}
		case l.a == '\\':
			l.emit(l.a)
			if l.a = l.getRaw(); l.a == eof {
				return &Error{UnterminatedString, l.pos - 1, l.src[start:]}
			} else if l.a == '\r' && l.peek() == '\n' {
				// line continuation
				l.emit(l.a)
				l.a = l.getRaw()
			}
		case l.a == '$' && quote == '`' && l.peek() == '{':
			if err := l.substitution(start); err != nil {
				return err
			}
		}
	}
}

// substitution copies a template substitution verbatim, a holds the dollar sign. Nested strings and templates
// are copied as literals so that their quotes and braces do not end the substitution. On return a holds the
// closing brace.
func (l *lexer) substitution(start int) error {
	depth := 0
	for {
		l.emit(l.a)
		l.a = l.getRaw()
		switch l.a {
		case eof:
			return &Error{UnterminatedString, l.pos - 1, l.src[start:]}
		case '{':
			depth++
		case '}':
			if depth--; depth == 0 {
				return nil
			}
		case '"', '\'', '`':
			if err := l.literal(); err != nil {
				return err
			}
		}
	}
}

// isRegExpStart reports whether the slash in b starts a regular expression, given the previous token.
func (l *lexer) isRegExpStart() bool {
	if 0 <= l.a && regexpPrefixTable[l.a] && !l.aRegExp {
		return true
	}
	space := isWhitespace(l.a) || isLineTerminator(l.a)
	if space && (len(l.out) == 0 || regexpPrefixTable[l.last] && !l.lastRegExp) {
		return true
	}

	end := len(l.out)
	start := end
	for 0 < start && identifierTable[l.out[start-1]] {
		start--
	}
	var word []byte
	if isIdentifier(l.a) {
		word = append(l.out[start:end:end], byte(l.a))
	} else if space && start < end {
		word = l.out[start:end]
	} else {
		return false
	}
	if 0 < start && l.out[start-1] == '.' || !expressionKeywords[string(word)] {
		return false
	}

	// a line terminator after a keyword such as return ends the statement and must stay
	if isWhitespace(l.a) {
		l.a = none
	}
	return true
}

// regExp copies a regular expression literal verbatim, b holds the opening slash. On return a holds the closing
// slash.
func (l *lexer) regExp() error {
	start := l.bPos
	l.emitToken(l.a)
	l.emitToken('/')
	for {
		l.a = l.getRaw()
		if l.a == '[' {
			for {
				l.emit(l.a)
				l.a = l.getRaw()
				if l.a == ']' {
					break
				} else if l.a == '\\' {
					l.emit(l.a)
					l.a = l.getRaw()
				}
				if l.a == eof || isLineTerminator(l.a) {
					return l.regExpError(start)
				}
			}
		}

		if l.a == '/' {
			return nil
		} else if l.a == '\\' {
			l.emit(l.a)
			l.a = l.getRaw()
		}
		if l.a == eof || isLineTerminator(l.a) {
			return l.regExpError(start)
		}
		l.emit(l.a)
	}
}

func (l *lexer) regExpError(start int) error {
	return &Error{UnterminatedRegExp, l.pos - 1, l.src[start:l.pos]}
}
