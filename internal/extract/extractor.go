package extract

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
)

// HeuristicExtractor is the default Extractor: pure Go, no rendering, no
// subprocesses. Safe to share across requests.
type HeuristicExtractor struct {
	log *slog.Logger
}

func NewHeuristicExtractor(log *slog.Logger) *HeuristicExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &HeuristicExtractor{log: log}
}

// Extract dispatches on the sniffed format. It returns a string for any
// input (possibly a degraded sentinel); the only error is
// ErrUnreadablePackage for a corrupt DOCX archive.
func (e *HeuristicExtractor) Extract(_ context.Context, data []byte, format constants.Format) (Result, error) {
	switch format {
	case constants.DOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text, Method: MethodDOCX}, nil
	case constants.PDF:
		res := extractPDF(data)
		for _, w := range res.Warnings {
			e.log.Warn("extract.pdf.degraded", "method", res.Method, "warning", w)
		}
		return res, nil
	default:
		return Result{Text: extractPlain(data), Method: MethodPlaintext}, nil
	}
}

// Sieve exposes the printable-character sieve for callers that need a
// best-effort recovery after ErrUnreadablePackage.
func Sieve(data []byte) string {
	return printableSieve(data)
}

// extractPlain decodes bytes as text. Invalid UTF-8 sequences are replaced
// rather than rejected; content is not validated.
func extractPlain(data []byte) string {
	s := string(data)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, " ")
	}
	return s
}
