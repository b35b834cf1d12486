package query

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent       tokenKind = iota // bare identifier or keyword
	tokQuotedIdent                  // "identifier", quotes stripped
	tokString                       // 'literal', quotes stripped and unescaped
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int // byte offset of the first character
	end  int // byte offset after the last character
}

// upper returns the keyword form of an identifier token.
func (t token) upper() string {
	if t.kind != tokIdent {
		return ""
	}
	return strings.ToUpper(t.text)
}

func (t token) isPunct(s string) bool {
	return t.kind == tokPunct && t.text == s
}

// isName reports whether the token can name a relation.
func (t token) isName() bool {
	return t.kind == tokIdent || t.kind == tokQuotedIdent
}

// lex splits SQL text into tokens. Whitespace and comments are dropped.
// An unterminated literal or comment runs to the end of the input.
func lex(sql string) []token {
	var tokens []token
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++

		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			nl := strings.IndexByte(sql[i:], '\n')
			if nl < 0 {
				i = len(sql)
			} else {
				i += nl + 1
			}

		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 4
			}

		case c == '\'' || c == '"':
			text, next := readQuoted(sql, i, c)
			kind := tokString
			if c == '"' {
				kind = tokQuotedIdent
			}
			tokens = append(tokens, token{kind: kind, text: text, pos: i, end: next})
			i = next

		case isIdentStart(c):
			start := i
			for i < len(sql) && isIdentPart(sql[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: sql[start:i], pos: start, end: i})

		case c >= '0' && c <= '9':
			start := i
			for i < len(sql) && (sql[i] >= '0' && sql[i] <= '9' || sql[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: sql[start:i], pos: start, end: i})

		default:
			tokens = append(tokens, token{kind: tokPunct, text: sql[i : i+1], pos: i, end: i + 1})
			i++
		}
	}
	return tokens
}

// readQuoted reads a literal opened by quote at sql[start]; a doubled quote
// is an escaped quote.
func readQuoted(sql string, start int, quote byte) (string, int) {
	var b strings.Builder
	i := start + 1
	for i < len(sql) {
		if sql[i] == quote {
			if i+1 < len(sql) && sql[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return b.String(), i + 1
		}
		b.WriteByte(sql[i])
		i++
	}
	return b.String(), len(sql)
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 0x80 || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '$' || (c >= '0' && c <= '9')
}

// matchParen returns the index of the token closing the parenthesis opened at
// tokens[open], or -1 when it is never closed.
func matchParen(tokens []token, open int) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		switch {
		case tokens[i].isPunct("("):
			depth++
		case tokens[i].isPunct(")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
