// Package extract turns uploaded document bytes into raw text. It sniffs
// the format from the filename and declared MIME type, then runs a
// per-format extractor: a minimal DOCX reader, a heuristic PDF content
// scraper, and a passthrough decoder for plain text. Extraction is
// best-effort: unsupported or image-only PDFs degrade to a fixed notice
// instead of failing.
package extract

import (
	"context"
	"errors"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
)

// ErrUnreadablePackage signals a structurally corrupt DOCX archive (the zip
// cannot be opened, or the body XML part is missing or unparseable). This is
// the only error the extractor ever raises; all other inputs degrade.
var ErrUnreadablePackage = errors.New("unreadable document package")

// PDFDegradedNotice is returned when no text could be recovered from a PDF.
const PDFDegradedNotice = "No extractable text was found in this PDF; the document may be image-based or encrypted."

// Extraction methods reported in Result.Method.
const (
	MethodDOCX        = "docx-xml"
	MethodPDFStream   = "pdf-stream"
	MethodPDFSieve    = "pdf-sieve"
	MethodPDFDegraded = "pdf-degraded"
	MethodPlaintext   = "plaintext"
)

// Result is the outcome of a text extraction.
type Result struct {
	Text     string
	Method   string
	Warnings []string
}

// Extractor is the file-bytes → text strategy. The heuristic implementation
// below is the default; a rendering-based PDF extractor can be swapped in
// without touching the pipeline.
type Extractor interface {
	Extract(ctx context.Context, data []byte, format constants.Format) (Result, error)
}
