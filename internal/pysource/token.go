package pysource

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokName tokenKind = iota
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind    tokenKind
	text    string
	line    int
	endLine int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// logicalLine is one Python logical line: physical lines joined by open
// brackets or backslash continuations, without comments.
type logicalLine struct {
	tokens []token
	indent int
	start  int
	end    int
}

// SyntaxError reports source that cannot be tokenized or structured.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func syntaxErr(line int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

var closers = map[string]string{")": "(", "]": "[", "}": "{"}

// lexer splits normalized source into logical lines.
type lexer struct {
	src       []byte
	pos       int
	line      int
	brackets  []token
	continued bool
	cur       *logicalLine
	lines     []logicalLine
}

func tokenize(src []byte) ([]logicalLine, error) {
	src = bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	src = bytes.ReplaceAll(src, []byte("\r"), []byte("\n"))
	src = bytes.TrimPrefix(src, []byte("\xef\xbb\xbf"))

	lx := &lexer{src: src, line: 1}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.lines, nil
}

func (lx *lexer) run() error {
	for lx.pos < len(lx.src) {
		if lx.cur == nil {
			if !lx.startLine() {
				continue
			}
		}

		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			lx.pos++
		case c == '#':
			lx.skipComment()
		case c == '\n':
			lx.pos++
			lx.line++
			lx.continued = false
			if len(lx.brackets) > 0 {
				continue
			}
			lx.flush()
		case c == '\\':
			if lx.pos+1 >= len(lx.src) {
				return syntaxErr(lx.line, "unexpected EOF after line continuation")
			}
			if lx.src[lx.pos+1] != '\n' {
				return syntaxErr(lx.line, "unexpected character after line continuation character")
			}
			lx.pos += 2
			lx.line++
			lx.continued = true
		case c == '"' || c == '\'':
			if err := lx.scanString(lx.pos); err != nil {
				return err
			}
		case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
			lx.scanNumber()
		case c == '_' || isASCIILetter(c) || c >= utf8.RuneSelf:
			if err := lx.scanName(); err != nil {
				return err
			}
		default:
			if err := lx.scanOp(); err != nil {
				return err
			}
		}
	}

	if len(lx.brackets) > 0 {
		open := lx.brackets[len(lx.brackets)-1]
		return syntaxErr(open.line, "'%s' was never closed", open.text)
	}
	if lx.continued {
		return syntaxErr(lx.line, "unexpected EOF after line continuation")
	}
	lx.flush()
	return nil
}

// startLine measures indentation at the beginning of a physical line. It
// consumes blank and comment-only lines and reports whether a logical line
// was opened.
func (lx *lexer) startLine() bool {
	col := 0
	i := lx.pos
indent:
	for ; i < len(lx.src); i++ {
		switch lx.src[i] {
		case ' ':
			col++
		case '\t':
			col = (col/8 + 1) * 8
		case '\f':
			col = 0
		default:
			break indent
		}
	}
	if i >= len(lx.src) {
		lx.pos = i
		return false
	}
	switch lx.src[i] {
	case '#':
		lx.pos = i
		lx.skipComment()
		if lx.pos < len(lx.src) {
			lx.pos++
			lx.line++
		}
		return false
	case '\n':
		lx.pos = i + 1
		lx.line++
		return false
	}

	lx.pos = i
	lx.cur = &logicalLine{indent: col, start: lx.line, end: lx.line}
	return true
}

func (lx *lexer) flush() {
	if lx.cur != nil && len(lx.cur.tokens) > 0 {
		lx.lines = append(lx.lines, *lx.cur)
	}
	lx.cur = nil
}

func (lx *lexer) emit(kind tokenKind, text string, line int) {
	lx.cur.tokens = append(lx.cur.tokens, token{kind: kind, text: text, line: line, endLine: lx.line})
	lx.cur.end = lx.line
	lx.continued = false
}

func (lx *lexer) skipComment() {
	for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
		lx.pos++
	}
}

func (lx *lexer) scanNumber() {
	start := lx.pos
	src := lx.src
	digits := func(ok func(byte) bool) {
		for lx.pos < len(src) && (ok(src[lx.pos]) || src[lx.pos] == '_') {
			lx.pos++
		}
	}

	if src[lx.pos] == '0' && lx.pos+1 < len(src) && strings.IndexByte("xXoObB", src[lx.pos+1]) >= 0 {
		hex := src[lx.pos+1] == 'x' || src[lx.pos+1] == 'X'
		lx.pos += 2
		if hex {
			digits(isHexDigit)
		} else {
			digits(isDigit)
		}
		lx.emit(tokNumber, string(src[start:lx.pos]), lx.line)
		return
	}

	digits(isDigit)
	if lx.pos < len(src) && src[lx.pos] == '.' {
		lx.pos++
		digits(isDigit)
	}
	if lx.pos < len(src) && (src[lx.pos] == 'e' || src[lx.pos] == 'E') {
		i := lx.pos + 1
		if i < len(src) && (src[i] == '+' || src[i] == '-') {
			i++
		}
		if i < len(src) && isDigit(src[i]) {
			lx.pos = i
			digits(isDigit)
		}
	}
	if lx.pos < len(src) && (src[lx.pos] == 'j' || src[lx.pos] == 'J') {
		lx.pos++
	}
	lx.emit(tokNumber, string(src[start:lx.pos]), lx.line)
}

func (lx *lexer) scanName() error {
	start := lx.pos
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c < utf8.RuneSelf {
			if c != '_' && !isASCIILetter(c) && !isDigit(c) {
				break
			}
			lx.pos++
			continue
		}
		r, size := utf8.DecodeRune(lx.src[lx.pos:])
		if !isIdentRune(r) {
			if lx.pos == start {
				return syntaxErr(lx.line, "invalid character %q", r)
			}
			break
		}
		lx.pos += size
	}

	name := string(lx.src[start:lx.pos])
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') && isStringPrefix(name) {
		return lx.scanString(start)
	}
	lx.emit(tokName, name, lx.line)
	return nil
}

// scanString scans a string literal whose prefix starts at start and whose
// opening quote is at lx.pos.
func (lx *lexer) scanString(start int) error {
	line := lx.line
	prefix := strings.ToLower(string(lx.src[start:lx.pos]))
	if err := lx.skipString(line, prefix); err != nil {
		return err
	}
	lx.emit(tokString, string(lx.src[start:lx.pos]), line)
	return nil
}

// skipString advances past the literal whose opening quote is at lx.pos.
// In f- and t-strings a quote inside a replacement field opens a nested
// literal instead of closing this one.
func (lx *lexer) skipString(line int, prefix string) error {
	q := lx.src[lx.pos]
	triple := lx.pos+2 < len(lx.src) && lx.src[lx.pos+1] == q && lx.src[lx.pos+2] == q
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}
	format := strings.ContainsAny(prefix, "ft")

	for {
		if lx.pos >= len(lx.src) {
			if triple {
				return syntaxErr(line, "unterminated triple-quoted string literal")
			}
			return syntaxErr(line, "unterminated string literal")
		}
		c := lx.src[lx.pos]
		switch {
		case c == '\\':
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\n' {
				lx.line++
			}
			lx.pos += 2
		case c == '\n':
			if !triple {
				return syntaxErr(line, "unterminated string literal")
			}
			lx.line++
			lx.pos++
		case c == q && !triple:
			lx.pos++
			return nil
		case c == q && lx.pos+2 < len(lx.src) && lx.src[lx.pos+1] == q && lx.src[lx.pos+2] == q:
			lx.pos += 3
			return nil
		case format && c == '{':
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '{' {
				lx.pos += 2
				continue
			}
			lx.pos++
			if err := lx.skipField(line); err != nil {
				return err
			}
		default:
			lx.pos++
		}
	}
}

// skipField advances past one replacement field; lx.pos is just after its
// opening brace.
func (lx *lexer) skipField(line int) error {
	depth := 0
	for {
		if lx.pos >= len(lx.src) {
			return syntaxErr(line, "f-string: expecting '}'")
		}
		switch lx.src[lx.pos] {
		case '"', '\'':
			if err := lx.skipString(lx.line, lx.prefixBefore()); err != nil {
				return err
			}
		case '\n':
			lx.line++
			lx.pos++
		case '(', '[', '{':
			depth++
			lx.pos++
		case ')', ']':
			depth--
			lx.pos++
		case '}':
			lx.pos++
			if depth == 0 {
				return nil
			}
			depth--
		case ':':
			lx.pos++
			if depth == 0 {
				return lx.skipFormatSpec(line)
			}
		default:
			lx.pos++
		}
	}
}

// skipFormatSpec advances past a format spec and the brace closing its
// field. Specs may hold nested fields.
func (lx *lexer) skipFormatSpec(line int) error {
	for {
		if lx.pos >= len(lx.src) {
			return syntaxErr(line, "f-string: expecting '}'")
		}
		switch lx.src[lx.pos] {
		case '{':
			lx.pos++
			if err := lx.skipField(line); err != nil {
				return err
			}
		case '}':
			lx.pos++
			return nil
		case '\n':
			lx.line++
			lx.pos++
		default:
			lx.pos++
		}
	}
}

// prefixBefore returns the string prefix directly before the quote at
// lx.pos, or "" when the letters there are not a prefix.
func (lx *lexer) prefixBefore() string {
	i := lx.pos
	for i > 0 && isASCIILetter(lx.src[i-1]) {
		i--
	}
	prefix := strings.ToLower(string(lx.src[i:lx.pos]))
	if !isStringPrefix(prefix) {
		return ""
	}
	return prefix
}

var multiOps = []string{"...", "->", ":=", "**", "//", "<<", ">>", "==", "!=", "<=", ">="}

func (lx *lexer) scanOp() error {
	rest := lx.src[lx.pos:]
	for _, op := range multiOps {
		if bytes.HasPrefix(rest, []byte(op)) {
			lx.pos += len(op)
			lx.emit(tokOp, op, lx.line)
			return nil
		}
	}

	c := lx.src[lx.pos]
	op := string(c)
	switch c {
	case '(', '[', '{':
		lx.pos++
		lx.emit(tokOp, op, lx.line)
		lx.brackets = append(lx.brackets, lx.cur.tokens[len(lx.cur.tokens)-1])
		return nil
	case ')', ']', '}':
		if len(lx.brackets) == 0 {
			return syntaxErr(lx.line, "unmatched '%s'", op)
		}
		open := lx.brackets[len(lx.brackets)-1]
		if closers[op] != open.text {
			return syntaxErr(lx.line, "closing parenthesis '%s' does not match opening parenthesis '%s'", op, open.text)
		}
		lx.brackets = lx.brackets[:len(lx.brackets)-1]
		lx.pos++
		lx.emit(tokOp, op, lx.line)
		return nil
	case '$', '?', '`', '!':
		return syntaxErr(lx.line, "invalid syntax")
	}

	if c < 0x20 && c != '\t' && c != '\f' {
		return syntaxErr(lx.line, "invalid non-printable character")
	}
	lx.pos++
	lx.emit(tokOp, op, lx.line)
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) ||
		unicode.In(r, unicode.Mn, unicode.Mc, unicode.Nd, unicode.Pc)
}

func isStringPrefix(name string) bool {
	switch strings.ToLower(name) {
	case "r", "u", "b", "f", "t", "br", "rb", "fr", "rf", "tr", "rt":
		return true
	}
	return false
}
