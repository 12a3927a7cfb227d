package constants

import "strings"

const (
	PDF  = "PDF"
	TEXT = "TEXT"
)

// DefaultExtensions holds the document extensions recognized by the scanner.
var DefaultExtensions = []string{"pdf", "txt"}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns the loader format for an extension, or "" when unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "txt", "text":
		return TEXT
	default:
		return ""
	}
}
