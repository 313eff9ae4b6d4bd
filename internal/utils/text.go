package utils

import "unicode/utf8"

// TruncateRunes returns s cut to at most n runes. Multi-byte characters are
// never split. n <= 0 yields "".
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
