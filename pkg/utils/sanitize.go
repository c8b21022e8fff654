package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// --- Filename Sanitization ---
var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`) // Characters invalid in Windows/Unix filenames
const maxFilenameLength = 180                                          // Max length for sanitized filenames

// SanitizeFilename replaces every character that is illegal in a filename with an underscore.
// Over-long names are truncated from the stem so the extension survives.
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = strings.TrimSpace(sanitized)

	if len(sanitized) > maxFilenameLength {
		ext := filepath.Ext(sanitized)
		if len(ext) >= maxFilenameLength {
			ext = ""
		}
		sanitized = sanitized[:maxFilenameLength-len(ext)] + ext
	}

	if sanitized == "" || sanitized == "." || sanitized == ".." {
		sanitized = "untitled"
	}
	return sanitized
}
