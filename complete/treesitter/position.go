package treesitter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/errors"
)

// cursor is a completion position resolved against the source
type cursor struct {
	offset      int // byte offset into source
	column      int // 0-based rune column
	prefixStart int // byte offset where the partial name starts
	prefix      string
}

// resolveCursor converts a 1-based line and 0-based rune column into a byte
// offset and extracts the identifier prefix ending there.
func resolveCursor(source string, line, column int) (cursor, error) {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return cursor{}, errors.NewInvalidRequestError("line %d outside source with %d lines", line, len(lines))
	}

	offset := 0
	for _, l := range lines[:line-1] {
		offset += len(l) + 1
	}

	text := lines[line-1]
	byteCol, runes := 0, 0
	for runes < column {
		if byteCol >= len(text) {
			return cursor{}, errors.NewInvalidRequestError("column %d past end of line %d", column, line)
		}
		_, size := utf8.DecodeRuneInString(text[byteCol:])
		byteCol += size
		runes++
	}
	offset += byteCol

	start := offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(source[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}

	return cursor{
		offset:      offset,
		column:      column,
		prefixStart: start,
		prefix:      source[start:offset],
	}, nil
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// afterDot reports attribute access such as `os.pa`
func (c cursor) afterDot(source string) bool {
	i := c.prefixStart - 1
	for i >= 0 && (source[i] == ' ' || source[i] == '\t') {
		i--
	}
	return i >= 0 && source[i] == '.'
}

type lexState int

const (
	inCode lexState = iota
	inComment
	inString
)

// scanTo walks the source up to the cursor tracking strings and comments.
// A string literal opened before the cursor that never closes makes the
// source unusable for completion.
func scanTo(source string, offset int) (lexState, error) {
	i := 0
	for i < offset {
		switch c := source[i]; c {
		case '#':
			end := strings.IndexByte(source[i:], '\n')
			if end < 0 {
				return inComment, nil
			}
			end += i
			if offset <= end {
				return inComment, nil
			}
			i = end
		case '\'', '"':
			quote := source[i : i+1]
			triple := strings.HasPrefix(source[i:], strings.Repeat(quote, 3))
			if triple {
				quote = strings.Repeat(quote, 3)
			}
			j, closed := i+len(quote), false
			for j < len(source) {
				if source[j] == '\\' {
					j += 2
					continue
				}
				if !triple && source[j] == '\n' {
					break
				}
				if strings.HasPrefix(source[j:], quote) {
					j += len(quote)
					closed = true
					break
				}
				j++
			}
			if !closed {
				line := strings.Count(source[:i], "\n") + 1
				return inString, errors.Wrapf(complete.ErrMalformedSource, "unterminated string literal on line %d", line)
			}
			if offset < j {
				return inString, nil
			}
			i = j
		default:
			i++
		}
	}
	return inCode, nil
}
