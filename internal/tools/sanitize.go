package tools

import "strings"

// SanitizeContent re-escapes control characters that JSON decoding of the
// tool-call arguments may have turned back into raw bytes: bare carriage
// returns anywhere, and raw newlines or carriage returns inside double-quoted
// string literals. CRLF line endings outside string literals pass through.
func SanitizeContent(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	inString := false
	escaped := false

	for i := 0; i < len(content); i++ {
		c := content[i]

		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteByte(c)
			case c == '\\':
				escaped = true
				b.WriteByte(c)
			case c == '"':
				inString = false
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '\r' && i+1 < len(content) && content[i+1] == '\n':
			b.WriteByte(c)
		case c == '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
