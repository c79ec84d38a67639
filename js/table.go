package js

// identifierTable holds the bytes that may be part of an identifier or number. Any byte above 126 is included
// so that multi-byte sequences pass through untouched and are never split by a separator.
var identifierTable = [256]bool{}

// regexpPrefixTable holds the punctuators after which a slash starts a regular expression.
var regexpPrefixTable = [256]bool{}

// keptBeforeNewlineTable holds the bytes that, when followed by a line terminator, may end a statement.
var keptBeforeNewlineTable = [256]bool{}

// keptAfterNewlineTable holds the bytes that, when preceded by a line terminator, may start a statement.
var keptAfterNewlineTable = [256]bool{}

// expressionKeywords are the keywords after which a slash starts a regular expression instead of a division.
var expressionKeywords = map[string]bool{
	"await":      true,
	"case":       true,
	"delete":     true,
	"do":         true,
	"else":       true,
	"in":         true,
	"instanceof": true,
	"new":        true,
	"return":     true,
	"throw":      true,
	"typeof":     true,
	"void":       true,
	"yield":      true,
}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		identifierTable[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		identifierTable[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		identifierTable[c] = true
	}
	for _, c := range []byte("_$\\") {
		identifierTable[c] = true
	}
	for c := 127; c < 256; c++ {
		identifierTable[c] = true
	}
	identifierTable[127] = false

	// every punctuator except the closing ) ] }, a slash only when it is a division
	for _, c := range []byte("(,=:[!&|?+-~*{;<>%^/") {
		regexpPrefixTable[c] = true
	}
	for _, c := range []byte("}])+-\"'`") {
		keptBeforeNewlineTable[c] = true
	}
	for _, c := range []byte("{[(+-!~#") {
		keptAfterNewlineTable[c] = true
	}
}

func isIdentifier(c int) bool {
	return 0 <= c && identifierTable[c]
}

// isWhitespace returns true for a space or a control character other than a line terminator.
func isWhitespace(c int) bool {
	return 0 <= c && c <= ' ' && c != '\n' && c != '\r'
}

func isLineTerminator(c int) bool {
	return c == '\n' || c == '\r'
}
