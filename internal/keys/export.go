package keys

import (
	"fmt"
	"strings"
	"time"
)

// sanitizeKey replaces spaces with hyphens and lowercases the string.
func sanitizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}

// Export returns the canonical object key for an archived export file.
func Export(sessionID, filename string, at time.Time) string {
	return fmt.Sprintf("exports/%s/%s/%s-%s",
		at.UTC().Format("2006-01-02"),
		sanitizeKey(sessionID),
		at.UTC().Format("150405.000"),
		sanitizeKey(filename),
	)
}

// IsExport reports whether key was produced by Export.
func IsExport(key string) bool {
	return strings.HasPrefix(key, "exports/") && strings.HasSuffix(key, ".csv")
}
