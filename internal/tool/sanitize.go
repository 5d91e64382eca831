package tool

import "strings"

// Sanitize produces the caller-visible diagnostic for captured tool output:
// bounded to maxLen (keeping the tail), with any of the given host directories
// redacted so raw tool output cannot leak local paths to untrusted callers.
func Sanitize(output []byte, maxLen int, redactDirs ...string) string {
	s := strings.TrimSpace(string(output))
	for _, dir := range redactDirs {
		if dir == "" {
			continue
		}
		s = strings.ReplaceAll(s, dir, "<dir>")
	}
	if maxLen > 0 && len(s) > maxLen {
		s = "…" + s[len(s)-maxLen:]
	}
	return s
}
