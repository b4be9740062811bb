package validation

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength is the common filesystem limit.
const maxFilenameLength = 255

// dangerousChars are replaced because they enable header injection or path
// traversal when the name is echoed back or used in a path.
var dangerousChars = map[rune]bool{
	'"':  true,
	'\\': true,
	'/':  true,
	':':  true,
	'\n': true,
	'\r': true,
}

// SanitizeFilename makes an uploaded filename safe to store and display.
// Unicode is kept, dangerous and control characters become underscores, and
// overlong names are truncated preserving the extension. Empty input
// becomes "file".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))

	for _, r := range name {
		if shouldReplace(r) {
			sb.WriteRune('_')
		} else {
			sb.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sb.String())

	if result == "" || isOnlyUnderscores(result) {
		return "file"
	}

	if len(result) > maxFilenameLength {
		result = truncatePreservingExtension(result)
	}

	return result
}

func shouldReplace(r rune) bool {
	if r < 32 || r == 127 {
		return true
	}
	return dangerousChars[r]
}

func isOnlyUnderscores(s string) bool {
	for _, r := range s {
		if r != '_' {
			return false
		}
	}
	return true
}

func truncatePreservingExtension(name string) string {
	ext := filepath.Ext(name)
	extLen := len(ext)

	if extLen == 0 || extLen >= maxFilenameLength {
		return truncateToBytes(name, maxFilenameLength)
	}

	maxBaseLen := maxFilenameLength - extLen
	baseName := name[:len(name)-extLen]

	return truncateToBytes(baseName, maxBaseLen) + ext
}

// truncateToBytes cuts a UTF-8 string to at most maxBytes without splitting
// a multi-byte character.
func truncateToBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}

	for maxBytes > 0 && !utf8.ValidString(s[:maxBytes]) {
		maxBytes--
	}

	for maxBytes > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:maxBytes])
		if r != utf8.RuneError {
			break
		}
		maxBytes--
	}

	return s[:maxBytes]
}
