package rewrite

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var rowKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"WITH":     true,
	"VALUES":   true,
	"TABLE":    true,
	"PRAGMA":   true,
	"CHECKSUM": true,
	"CALL":     true,
}

// ReturnsRows reports whether sql is a statement that produces a result set.
// That is judged by its first keyword, skipping leading whitespace, comments
// and opening parentheses, or by a RETURNING clause outside quotes.
func ReturnsRows(sql string) bool {
	return rowKeywords[strings.ToUpper(leadingKeyword(sql))] || hasWord(plainText(sql), "RETURNING")
}

// hasWord reports whether word appears in s as a whole word, ignoring case.
func hasWord(s, word string) bool {
	upper := strings.ToUpper(s)
	for from := 0; ; {
		i := strings.Index(upper[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if !endsWord(upper[:start]) && !startsWord(upper[end:]) {
			return true
		}
		from = end
	}
}

func endsWord(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && isNameRune(r)
}

func startsWord(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return s != "" && isNameRune(r)
}

func leadingKeyword(sql string) string {
	s := sql
	for {
		s = strings.TrimLeftFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || r == '('
		})
		switch {
		case strings.HasPrefix(s, "--"), strings.HasPrefix(s, "#"):
			end := strings.IndexByte(s, '\n')
			if end < 0 {
				return ""
			}
			s = s[end+1:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s[2:], "*/")
			if end < 0 {
				return ""
			}
			s = s[end+4:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !(r == '_' || unicode.IsLetter(r))
			})
			if end < 0 {
				return s
			}
			return s[:end]
		}
	}
}
