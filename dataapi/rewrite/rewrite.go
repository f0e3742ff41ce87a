// Package rewrite converts caller SQL with named ":name" parameters into
// statements the backing driver can execute.
//
// Statements are scanned lexically: quoted spans and backslash escapes are
// honoured so that colons inside string literals are never taken as
// parameters, but the SQL is otherwise passed through untouched.
package rewrite

import (
	"strconv"
	"strings"
)

// Result is the outcome of rewriting one statement.
type Result struct {
	// SQL is the statement with every parameter renamed to its canonical
	// name (":q0", ":q1", ...).
	SQL string
	// Names maps caller parameter names to canonical names.
	Names map[string]string
}

type lexState int

const (
	unquoted lexState = iota
	inSingleQuote
	inDoubleQuote
)

// lexer tracks quoting across a statement one rune at a time.
type lexer struct {
	state   lexState
	escaped bool
}

// step consumes src[i] and reports whether it is plain SQL text, that is
// neither inside a quoted span nor part of a quote or escape sequence.
func (l *lexer) step(src []rune, i int) bool {
	ch := src[i]
	if l.escaped {
		l.escaped = false
		return false
	}
	switch {
	case ch == '\\':
		l.escaped = true
	case l.state == unquoted && ch == '\'':
		l.state = inSingleQuote
	case l.state == unquoted && ch == '"':
		l.state = inDoubleQuote
	case l.state == inSingleQuote && ch == '\'':
		if i+1 < len(src) && src[i+1] == '\'' {
			// '' inside a single-quoted literal is an escaped quote
			l.escaped = true
		} else {
			l.state = unquoted
		}
	case l.state == inDoubleQuote && ch == '"':
		l.state = unquoted
	default:
		return l.state == unquoted
	}
	return false
}

// atParam reports whether a parameter token starts at src[i].
func (l *lexer) atParam(src []rune, i int) bool {
	return l.state == unquoted && !l.escaped && src[i] == ':' &&
		i+1 < len(src) && isASCIIAlnum(src[i+1])
}

// scan walks sql once and copies it to the output, replacing every
// parameter token (including its leading colon) with the text returned by
// replace. replace receives the name without the colon.
func scan(sql string, replace func(name string) (string, error)) (string, error) {
	src := []rune(sql)
	var out strings.Builder
	out.Grow(len(sql))

	var lx lexer
	inParam := false
	nameStart := 0

	emit := func(end int) error {
		text, err := replace(string(src[nameStart:end]))
		if err != nil {
			return err
		}
		out.WriteString(text)
		return nil
	}

	for i := 0; i < len(src); i++ {
		if inParam {
			if isNameRune(src[i]) {
				continue
			}
			if err := emit(i); err != nil {
				return "", err
			}
			inParam = false
		}
		if lx.atParam(src, i) {
			inParam = true
			nameStart = i + 1
			continue
		}
		lx.step(src, i)
		out.WriteRune(src[i])
	}

	if inParam {
		if err := emit(len(src)); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

// plainText returns sql with every quoted span and escape blanked out, so
// keyword searches only see SQL text.
func plainText(sql string) string {
	src := []rune(sql)
	out := make([]rune, len(src))
	var lx lexer
	for i := range src {
		if lx.step(src, i) {
			out[i] = src[i]
		} else {
			out[i] = ' '
		}
	}
	return string(out)
}

// Rewrite renames the named parameters in sql to canonical names assigned
// in order of first appearance. Repeated names share one canonical name.
// Malformed SQL (unterminated quotes and the like) is passed through.
func Rewrite(sql string) Result {
	names := make(map[string]string)
	rewritten, _ := scan(sql, func(name string) (string, error) {
		canonical, ok := names[name]
		if !ok {
			canonical = CanonicalName(len(names))
			names[name] = canonical
		}
		return ":" + canonical, nil
	})
	return Result{SQL: rewritten, Names: names}
}

// CanonicalName returns the canonical name of the i-th distinct parameter.
func CanonicalName(i int) string {
	return "q" + strconv.Itoa(i)
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isNameRune(r rune) bool {
	return isASCIIAlnum(r) || r == '_'
}
