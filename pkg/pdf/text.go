package pdf

import (
	"strings"
)

// ExtractText returns the text shown by the string operators (Tj, TJ, ' and ")
// of a decoded page content stream, up to limit runes. Font encodings are not
// applied, which is enough for the Latin text identifiers are mined from.
func ExtractText(content []byte, limit int) string {
	var out strings.Builder
	var pending []string
	runes := 0

	emit := func(s string) bool {
		for _, r := range s {
			if runes >= limit {
				return false
			}
			out.WriteRune(r)
			runes++
		}
		return true
	}
	newline := func() bool {
		if out.Len() == 0 || strings.HasSuffix(out.String(), "\n") {
			return true
		}
		return emit("\n")
	}

	for i := 0; i < len(content); {
		c := content[i]
		switch {
		case isWhitespace(c):
			i++
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteral(content, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(content) && content[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(content) && content[i+1] == '>':
			i += 2
		case c == '<':
			s, next := readHex(content, i)
			pending = append(pending, s)
			i = next
		case c == '[' || c == ']' || c == '{' || c == '}':
			i++
		case c == '/':
			i++
			for i < len(content) && !isWhitespace(content[i]) && !isDelimiter(content[i]) {
				i++
			}
		default:
			start := i
			for i < len(content) && !isWhitespace(content[i]) && !isDelimiter(content[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			token := string(content[start:i])
			if isOperand(token) {
				continue
			}
			switch token {
			case "Tj", "TJ":
				for _, s := range pending {
					if !emit(s) {
						return strings.TrimSpace(out.String())
					}
				}
			case "'", `"`:
				if !newline() {
					return strings.TrimSpace(out.String())
				}
				for _, s := range pending {
					if !emit(s) {
						return strings.TrimSpace(out.String())
					}
				}
			case "T*", "Td", "TD", "ET":
				if !newline() {
					return strings.TrimSpace(out.String())
				}
			}
			pending = pending[:0]
		}
	}

	return strings.TrimSpace(out.String())
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// isOperand reports whether token is a number or name rather than an
// operator.
func isOperand(token string) bool {
	c := token[0]
	return c == '/' || c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

// readLiteral reads a balanced literal string starting at content[start] ==
// '(' and returns it with escapes resolved.
func readLiteral(content []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(content) {
		c := content[i]
		switch {
		case c == '\\' && i+1 < len(content):
			i++
			e := content[i]
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := 0
					n := 0
					for n < 3 && i < len(content) && content[i] >= '0' && content[i] <= '7' {
						v = v*8 + int(content[i]-'0')
						i++
						n++
					}
					b.WriteRune(rune(v & 0xff))
					continue
				}
				b.WriteByte(e)
			}
			i++
		case c == '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
			i++
		case c == ')':
			depth--
			i++
			if depth == 0 {
				return b.String(), i
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// readHex reads a hex string starting at content[start] == '<'.
func readHex(content []byte, start int) (string, int) {
	var digits []byte
	i := start + 1
	for i < len(content) && content[i] != '>' {
		if h := content[i]; (h >= '0' && h <= '9') || (h >= 'a' && h <= 'f') || (h >= 'A' && h <= 'F') {
			digits = append(digits, h)
		}
		i++
	}
	if i < len(content) {
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	var b strings.Builder
	for j := 0; j+1 < len(digits); j += 2 {
		v := hexValue(digits[j])<<4 | hexValue(digits[j+1])
		if v >= 0x20 || v == '\n' {
			b.WriteRune(rune(v))
		}
	}
	return b.String(), i
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
