package logger

import (
	"fmt"
	"strings"
)

// SanitizeForLog escapes control characters before a user-supplied string
// (video titles, upload filenames) is written to a log line. Unicode is kept
// intact; newlines, tabs, null bytes, ANSI escapes and other control
// characters are replaced with visible escape sequences so a crafted filename
// cannot forge log entries or drive the terminal.
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch r {
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		case '\t':
			result.WriteString("\\t")
		case '\x00':
			result.WriteString("\\x00")
		default:
			if r < 32 || r == 127 {
				result.WriteString(fmt.Sprintf("\\x%02x", r))
			} else {
				result.WriteRune(r)
			}
		}
	}
	return result.String()
}
