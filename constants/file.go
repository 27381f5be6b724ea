package constants

import "strings"

// Format is the sniffed document format for the format field in extraction runs.
type Format string

const (
	PDF  Format = "PDF"
	DOCX Format = "DOCX"
	TXT  Format = "TXT"
)

// Formats holds the allowed document formats.
var Formats = []string{string(PDF), string(DOCX), string(TXT)}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a Format. Unknown extensions map
// to the empty Format; callers fall back to plaintext handling.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "doc", "docx":
		return DOCX
	case "txt", "text", "md":
		return TXT
	default:
		return ""
	}
}
