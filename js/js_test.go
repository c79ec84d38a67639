package js

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/tdewolff/jsmin"
	"github.com/tdewolff/test"
)

func TestJS(t *testing.T) {
	jsTests := []struct {
		js       string
		expected string
	}{
		{"", ""},
		{"/*comment*/", ""},
		{"// comment\na", "a"},
		{"function x(){}", "function x(){}"},
		{"function x(a, b){}", "function x(a,b){}"},
		{"a  b", "a b"},
		{"a\n\nb", "a\nb"},
		{"a// comment\nb", "a\nb"},
		{"a /* x */ b", "a b"},
		{"a/*\n*/b", "a\nb"},
		{"''\na", "''\na"},
		{"''\n''", "''''"},
		{"]\n0", "]\n0"},
		{"a\n{", "a\n{"},
		{";\na", ";a"},
		{",\na", ",a"},
		{"a\n!function(){}()", "a\n!function(){}()"},
		{"a\n++b", "a\n++b"},
		{"a\tb", "a b"},
		{"a\r\nb", "a\nb"},
		{"a\rb", "a\nb"},
		{"\xEF\xBB\xBFvar a", "var a"},
		{"  \n var a = 1 ;  \n ", "var a=1;"},

		// operators that must not merge
		{"a + ++b", "a+ ++b"},
		{"a - --b", "a- --b"},
		{"a + +b", "a+ +b"},
		{"a +  +b", "a+ +b"},
		{"a + -b", "a+-b"},
		{"a +\n+b", "a+\n+b"},
		{"a / /b/", "a/ /b/"},

		// regular expressions and divisions
		{"var a=/\\s?auto?\\s?/i\nvar", "var a=/\\s?auto?\\s?/i\nvar"},
		{"return /x/.test(y)", "return/x/.test(y)"},
		{"typeof /x/", "typeof/x/"},
		{"a / b", "a/b"},
		{"x = a / b / c", "x=a/b/c"},
		{"a = b ? /x/ : /y/", "a=b?/x/:/y/"},
		{"x.return / 2", "x.return/2"},
		{"xreturn / 2", "xreturn/2"},
		{"return\n/x/.test(y)", "return\n/x/.test(y)"},
		{"a = /[/]/.source", "a=/[/]/.source"},
		{"a = /\\//g", "a=/\\//g"},
		{"a = /[\\]/ ]/", "a=/[\\]/ ]/"},
		{"f( /a b/ )", "f(/a b/)"},
		{"/ x /.test(y)", "/ x /.test(y)"},
		{"ok = n > / a b /.test(s)", "ok=n>/ a b /.test(s)"},
		{"n < / a b /", "n</ a b /"},
		{"s = a ^ / b /.source", "s=a^/ b /.source"},
		{"x = a % / b /.lastIndex", "x=a%/ b /.lastIndex"},
		{"x = a /\n/b/.lastIndex", "x=a/ /b/.lastIndex"},
		{"/x/\n/y/", "/x/ /y/"},
		{"x = y\ny = /a/\nz()", "x=y\ny=/a/\nz()"},
		{"a = /x/\ng()", "a=/x/\ng()"},
		{"a +\n/x/", "a+\n/x/"},

		// literals
		{"a = \"b  /* c */  d\"", "a=\"b  /* c */  d\""},
		{"a = 'it\\'s'", "a='it\\'s'"},
		{"a = \"line\\\ncontinued\"", "a=\"line\\\ncontinued\""},
		{"a = `x\n  y`", "a=`x\n  y`"},
		{"a = '\t'", "a='\t'"},
		{"var \xC3\xA9 = '\xC3\xBC'", "var \xC3\xA9='\xC3\xBC'"},
		{"var a = 'x\\\r\ny'", "var a='x\\\r\ny'"},
		{"a = `x\r\ny`", "a=`x\r\ny`"},
		{"a = `a${\"`\"} b`", "a=`a${\"`\"} b`"},
		{"a = `${`${ {b: '}'}.b }`}`", "a=`${`${ {b: '}'}.b }`}`"},
	}

	for _, tt := range jsTests {
		t.Run(tt.js, func(t *testing.T) {
			out, err := Bytes([]byte(tt.js))
			test.Error(t, err)
			test.String(t, string(out), tt.expected)

			again, err := Bytes(out)
			test.Error(t, err)
			test.String(t, string(again), tt.expected, "minifying the output again")
		})
	}
}

func TestJSLicenseComments(t *testing.T) {
	jsTests := []struct {
		js       string
		expected string
	}{
		{"/*! license */\nvar a = 1;", "/*! license */\nvar a=1;"},
		{"a();/*!x*/b()", "a();\n/*!x*/\nb()"},
		{"a(); /* x */ b()", "a();b()"},
		{"a();\n/*!x*/", "a();\n/*!x*/"},
	}

	o := &Minifier{KeepLicenseComments: true}
	for _, tt := range jsTests {
		t.Run(tt.js, func(t *testing.T) {
			out, err := o.Bytes([]byte(tt.js))
			test.Error(t, err)
			test.String(t, string(out), tt.expected)
		})
	}

	out, err := Bytes([]byte("/*! license */\nvar a = 1;"))
	test.Error(t, err)
	test.String(t, string(out), "var a=1;", "license comments are removed by default")
}

func TestJSError(t *testing.T) {
	errorTests := []struct {
		js      string
		kind    ErrorKind
		offset  int
		snippet string
		message string
	}{
		{"\"Hello", UnterminatedString, 5, "\"Hello", "JSMin: Unterminated String at byte 5: \"Hello"},
		{"return /regexp\n}", UnterminatedRegExp, 14, "/regexp\n", "JSMin: Unterminated RegExp at byte 14: /regexp\n"},
		{"return/regexp\n}", UnterminatedRegExp, 13, "/regexp\n", "JSMin: Unterminated RegExp at byte 13: /regexp\n"},
		{";return/regexp\n}", UnterminatedRegExp, 14, "/regexp\n", "JSMin: Unterminated RegExp at byte 14: /regexp\n"},
		{";return /regexp\n}", UnterminatedRegExp, 15, "/regexp\n", "JSMin: Unterminated RegExp at byte 15: /regexp\n"},
		{"typeof/regexp\n}", UnterminatedRegExp, 13, "/regexp\n", "JSMin: Unterminated RegExp at byte 13: /regexp\n"},
		{"/* Comment ", UnterminatedComment, 11, "/* Comment ", "JSMin: Unterminated comment at byte 11: /* Comment "},
		{"a = 'b\nc'", UnterminatedString, 6, "'b", "JSMin: Unterminated String at byte 6: 'b"},
		{"a = 'b\\", UnterminatedString, 6, "'b\\", "JSMin: Unterminated String at byte 6: 'b\\"},
		{"a = /[x\n/", UnterminatedRegExp, 7, "/[x\n", "JSMin: Unterminated RegExp at byte 7: /[x\n"},
		{"a = /x", UnterminatedRegExp, 5, "/x", "JSMin: Unterminated RegExp at byte 5: /x"},
		{"a;/* x\n*", UnterminatedComment, 8, "/* x\n*", "JSMin: Unterminated comment at byte 8: /* x\n*"},
		{"a = /x\\\r\ny/", UnterminatedRegExp, 7, "/x\\\r", "JSMin: Unterminated RegExp at byte 7: /x\\\r"},
	}

	for _, tt := range errorTests {
		t.Run(tt.js, func(t *testing.T) {
			out, err := Bytes([]byte(tt.js))
			test.That(t, out == nil, "no output on error")

			var jsErr *Error
			test.That(t, errors.As(err, &jsErr), "must return *Error")
			test.T(t, jsErr.Kind, tt.kind)
			test.T(t, jsErr.Offset, tt.offset)
			test.String(t, string(jsErr.Snippet), tt.snippet)
			test.String(t, err.Error(), tt.message)
		})
	}
}

func TestErrorKind(t *testing.T) {
	test.String(t, UnterminatedString.String(), "String")
	test.String(t, UnterminatedRegExp.String(), "RegExp")
	test.String(t, UnterminatedComment.String(), "comment")
	test.String(t, ErrorKind(9).String(), "Invalid(9)")
}

var idempotentSamples = []string{
	`// jQuery style
(function (window, undefined) {
	var rtrim = /^[\s\uFEFF\xA0]+|[\s\uFEFF\xA0]+$/g,
		version = "1.0 /* not a comment */";

	function trim(text) {
		return text == null ? "" : (text + "").replace(rtrim, "");
	}

	/* block
	   comment */
	window.trim = trim;
	var a = 1, b = a + ++a - -a;
	if (a / 2 > b) {
		b = typeof /re/;
	}
	return
	a++
})(window);
`,
	"var s = `template\n  literal`;\nx = y\n/z/g.exec(w)\n",
	"a + ++b\nc - --d\ne / /f/\n",
	"if (x) {\n  y()\n}\nelse\n{\n  z()\n}\n",
}

func TestIdempotence(t *testing.T) {
	for _, sample := range idempotentSamples {
		once, err := Bytes([]byte(sample))
		test.Error(t, err)
		twice, err := Bytes(once)
		test.Error(t, err)
		test.String(t, string(twice), string(once))
	}
}

func TestLiteralPreservation(t *testing.T) {
	literals := []string{
		`"a  b // c"`,
		`'\'  /* x */ \''`,
		"`a\n\n  b`",
		`/[/ ]+\/ a/gi`,
	}
	for _, literal := range literals {
		src := "x = [\n  " + literal + " ,\n  1 ]"
		out, err := Bytes([]byte(src))
		test.Error(t, err)
		test.That(t, bytes.Contains(out, []byte(literal)), fmt.Sprintf("%q must contain %q", out, literal))
	}
}

func TestBytePurity(t *testing.T) {
	// every byte value except the quote, backslash and line terminators may appear in a string unchanged
	var literal []byte
	literal = append(literal, '"')
	for c := 0; c < 256; c++ {
		if c != '"' && c != '\\' && c != '\n' && c != '\r' {
			literal = append(literal, byte(c))
		}
	}
	literal = append(literal, '"')

	src := append([]byte("a = "), literal...)
	out, err := Bytes(src)
	test.Error(t, err)
	test.Bytes(t, out, append([]byte("a="), literal...))

	// non-ASCII bytes are identifier bytes and are never separated or decoded
	out, err = Bytes([]byte("x\xFF \xFEy"))
	test.Error(t, err)
	test.Bytes(t, out, []byte("x\xFF \xFEy"))
}

func TestConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out, err := Bytes([]byte("return /x/.test(a + ++b)"))
				if err != nil || string(out) != "return/x/.test(a+ ++b)" {
					t.Errorf("unexpected result %q %v", out, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMinify(t *testing.T) {
	m := jsmin.New()
	m.AddFunc("application/javascript", Minify)

	out, err := m.String("application/javascript", "var a = 1 ;\n\nvar b")
	test.Error(t, err)
	test.String(t, out, "var a=1;var b")

	_, err = m.String("application/javascript", "var a = '")
	var jsErr *Error
	test.That(t, errors.As(err, &jsErr), "must return *Error through the registry")
}

func TestReaderErrors(t *testing.T) {
	r := test.NewErrorReader(0)
	w := &bytes.Buffer{}
	err := Minify(jsmin.New(), w, r, nil)
	test.T(t, err, test.ErrPlain, "return error at first read")
}

func TestWriterErrors(t *testing.T) {
	r := bytes.NewBufferString("a\n{5 5")
	w := test.NewErrorWriter(0)
	err := Minify(jsmin.New(), w, r, nil)
	test.T(t, err, test.ErrPlain, "return error at first write")
}

////////////////////////////////////////////////////////////////

func ExampleMinify() {
	m := jsmin.New()
	m.AddFunc("application/javascript", Minify)

	if err := m.Minify("application/javascript", os.Stdout, os.Stdin); err != nil {
		panic(err)
	}
}

func ExampleBytes() {
	out, err := Bytes([]byte("function add(a, b) {\n\treturn a + ++b; // sum\n}"))
	if err != nil {
		panic(err)
	}
	fmt.Println(string(out))
	// Output: function add(a,b){return a+ ++b;}
}
