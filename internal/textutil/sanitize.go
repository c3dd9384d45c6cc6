package textutil

import (
	"path/filepath"
	"strings"
)

// MaxFileNameLength caps sanitized names; longer names are truncated before
// the extension.
const MaxFileNameLength = 200

var fileNameReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	"\"", "_",
	"/", "_",
	"\\", "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// SanitizeFileName replaces filesystem-unsafe characters with underscores and
// truncates the stem so the result stays within MaxFileNameLength bytes.
// Returns "" for blank input.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = fileNameReplacer.Replace(name)
	if name == "." || name == ".." {
		return strings.Repeat("_", len(name))
	}
	if len(name) <= MaxFileNameLength {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= MaxFileNameLength {
		ext = ""
	}
	stem := truncateRunes(strings.TrimSuffix(name, ext), MaxFileNameLength-len(ext))
	return stem + ext
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := 0
	for i := range s {
		if i > max {
			break
		}
		cut = i
	}
	return s[:cut]
}
