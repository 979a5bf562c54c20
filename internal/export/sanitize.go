package export

import (
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeName makes a course or template name safe for use as an archive
// path segment.
func sanitizeName(name string) string {
	s := strings.TrimSpace(name)
	s = unsafeNameChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed"
	}
	return s
}
