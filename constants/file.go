package constants

import "strings"

// Source formats a document extension maps to.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	WORD  = "WORD"
)

// MaxUploadBytes is the per-file upload limit.
const MaxUploadBytes int64 = 10 << 20

// AllowedExtensions holds the file extensions accepted on upload.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"doc":  {},
	"docx": {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without the dot) may be uploaded.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MapExtToFormat returns PDF, IMAGE, WORD or "" for an unknown extension.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	case "doc", "docx":
		return WORD
	default:
		return ""
	}
}
