package pdftext

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// decodeLatin1 maps every byte to a rune, so arbitrary binary input is safe.
func decodeLatin1(data []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// ISO 8859-1 covers all 256 byte values.
		return string(data)
	}
	return string(out)
}

// maxLiteralRunes bounds how far a literal may run before its opening paren is
// treated as a stray byte.
const maxLiteralRunes = 4096

// scanLiterals returns the non-blank parenthesized string literals in s, with
// nested parentheses balanced and backslash escapes decoded. An opening paren
// without a close is skipped and scanning resumes right after it.
func scanLiterals(s string) []string {
	var out []string
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '(' {
			continue
		}
		lit, end, ok := readLiteral(runes, i+1)
		if !ok {
			continue
		}
		i = end
		if strings.TrimSpace(lit) != "" {
			out = append(out, lit)
		}
	}
	return out
}

// readLiteral reads from just past an opening paren to its matching close and
// returns the decoded text and the index of the closing paren.
func readLiteral(runes []rune, start int) (string, int, bool) {
	var sb strings.Builder
	depth := 1
	for i := start; i < len(runes); i++ {
		if i-start > maxLiteralRunes {
			return "", 0, false
		}
		r := runes[i]
		switch r {
		case '\\':
			if i+1 >= len(runes) {
				return "", 0, false
			}
			i = readEscape(runes, i+1, &sb)
		case '(':
			depth++
			sb.WriteRune(r)
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i, true
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return "", 0, false
}

// readEscape decodes the escape starting at runes[i] and returns the index of
// its last rune.
func readEscape(runes []rune, i int, sb *strings.Builder) int {
	switch c := runes[i]; c {
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case '\n':
		// Line continuation.
	case '\r':
		if i+1 < len(runes) && runes[i+1] == '\n' {
			i++
		}
	default:
		if c >= '0' && c <= '7' {
			val := int(c - '0')
			for k := 0; k < 2 && i+1 < len(runes) && runes[i+1] >= '0' && runes[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(runes[i]-'0')
			}
			sb.WriteRune(rune(val & 0xff))
		} else {
			sb.WriteRune(c)
		}
	}
	return i
}

// collapseSpace folds whitespace runs into one space, keeping newlines, and
// drops unprintable runes.
func collapseSpace(text string) string {
	var sb strings.Builder
	pending := rune(0)
	for _, r := range text {
		if unicode.IsSpace(r) {
			if r == '\n' || pending == 0 {
				pending = r
			}
			continue
		}
		if !unicode.IsPrint(r) {
			continue
		}
		if pending != 0 && sb.Len() > 0 {
			if pending == '\n' {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		pending = 0
		sb.WriteRune(r)
	}
	return sb.String()
}
