package jit

import "strings"

// Normalize converts raw bracketed value into CSS value. Underscores stand
// for spaces since token itself cannot contain whitespace, url(...) values
// are returned unchanged.
func Normalize(raw string) string {
	if strings.HasPrefix(raw, "url(") {
		return raw
	}
	return strings.ReplaceAll(raw, "_", " ")
}
