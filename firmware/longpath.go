package firmware

import "strings"

// longPath turns an absolute Windows path into its \\?\ form. UNC shares
// (\\server\share\...) take the \\?\UNC\ prefix instead.
func longPath(abs string) string {
	switch {
	case strings.HasPrefix(abs, `\\?\`):
		return abs
	case strings.HasPrefix(abs, `\\`):
		return `\\?\UNC\` + abs[2:]
	}
	return `\\?\` + abs
}
