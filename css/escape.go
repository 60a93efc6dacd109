package css

import (
	"fmt"
	"strings"
)

// EscapeIdent escapes s for use as a CSS identifier (e.g. class name in a
// selector). It follows CSSOM "serialize an identifier": ASCII letters,
// digits, '-', '_' and non-ASCII runes pass through, a digit at the start
// (or right after a leading '-') is written as a code point escape and
// everything else is backslash escaped.
func EscapeIdent(s string) string {
	// Fast path: nothing to escape.
	if isPlainIdent(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune('�')
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		case r >= '0' && r <= '9' && (i == 0 || (i == 1 && s[0] == '-')):
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r == '-' && len(s) == 1:
			b.WriteString(`\-`)
		case r >= 0x80, r == '-', r == '_',
			r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isPlainIdent(s string) bool {
	if s == "-" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c == '-':
		case c >= '0' && c <= '9':
			if i == 0 || (i == 1 && s[0] == '-') {
				return false
			}
		default:
			return false
		}
	}
	return true
}
