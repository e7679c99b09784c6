package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to interpolate as a SQL
// identifier (table or column name). Values never go through this path,
// they always travel as query placeholders.
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// SanitizeFilename cleans filename for safe storage by removing dangerous
// characters and limiting length. It trims spaces and dots, removes parent
// directory references, and filters out non-alphanumeric characters except
// for safe punctuation.
func SanitizeFilename(filename string) string {
	sanitized := strings.Trim(filename, " .")
	sanitized = strings.ReplaceAll(sanitized, "..", "")
	reg := regexp.MustCompile(`[^a-zA-Z0-9._\s-]`)
	sanitized = reg.ReplaceAllString(sanitized, "")
	if len(sanitized) > 255 {
		sanitized = sanitized[:255]
	}
	return sanitized
}

// VerifyFileExists checks if file exists at the given path and is not a
// directory.
func VerifyFileExists(dir, filename string) bool {
	safePath := filepath.Join(dir, filename)
	info, err := os.Stat(safePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
