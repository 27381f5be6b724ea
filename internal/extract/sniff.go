package extract

import (
	"path/filepath"
	"strings"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
)

// DetectFormat classifies an upload as PDF, DOCX, or plaintext. The filename
// extension wins over the declared MIME type when they disagree: browsers
// and upload clients frequently mislabel files, the extension rarely lies.
// Anything unrecognized falls back to a plaintext decode attempt; there is
// no error path.
func DetectFormat(fileName, declaredMIME string) constants.Format {
	if f := constants.MapExtToFormat(filepath.Ext(fileName)); f != "" {
		return f
	}

	mime := strings.ToLower(declaredMIME)
	switch {
	case strings.Contains(mime, "pdf"):
		return constants.PDF
	case strings.Contains(mime, "word"), strings.Contains(mime, "officedocument"):
		return constants.DOCX
	default:
		return constants.TXT
	}
}
