package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// minSieveChars is the substance threshold for the printable sieve. Below
// this the file is treated as image-based or encrypted and the fixed notice
// is returned instead.
const minSieveChars = 200

var (
	// Uncompressed content stream regions.
	pdfStreamRe = regexp.MustCompile(`(?s)stream\r?\n?(.*?)endstream`)
	// Literal-string arguments immediately followed by a text-show operator.
	pdfTextShowRe = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*(?:Tj|TJ|')`)
)

// extractPDF is a heuristic, non-rendering text scraper. It scans the raw
// bytes for stream...endstream regions and pulls the literal strings fed to
// text-show operators, in file order. PDFs whose text lives in compressed or
// indirect objects yield no matches; those fall back to a printable-byte
// sieve over the whole file, and finally to the degraded notice. This path
// never fails: a well-formed but unsupported PDF degrades, it does not error.
func extractPDF(data []byte) Result {
	var parts []string
	for _, region := range pdfStreamRe.FindAllSubmatch(data, -1) {
		for _, m := range pdfTextShowRe.FindAllSubmatch(region[1], -1) {
			if s := unescapePDFString(string(m[1])); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) > 0 {
		return Result{Text: strings.Join(parts, "\n"), Method: MethodPDFStream}
	}

	if sieved := printableSieve(data); len(sieved) >= minSieveChars {
		return Result{
			Text:     sieved,
			Method:   MethodPDFSieve,
			Warnings: []string{"no text-show operators found; fell back to printable-character sieve"},
		}
	}

	return Result{
		Text:     PDFDegradedNotice,
		Method:   MethodPDFDegraded,
		Warnings: []string{"no extractable text; document may be image-based or encrypted"},
	}
}

// unescapePDFString resolves the escape sequences of a PDF literal string:
// \n \r \t \b \f, escaped delimiters, escaped backslash, octal codes, and
// backslash-newline continuations.
func unescapePDFString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			break
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '(', ')', '\\':
			b.WriteByte(s[i])
		case '\n':
			// line continuation, emit nothing
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			if v, err := strconv.ParseUint(s[i:j], 8, 16); err == nil {
				b.WriteByte(byte(v))
			}
			i = j - 1
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// printableSieve replaces every non-printable byte with a space and
// collapses whitespace runs. Crude, but recovers fragments from files whose
// structure the scraper does not understand.
func printableSieve(data []byte) string {
	mapped := make([]byte, len(data))
	for i, c := range data {
		if c >= 0x20 && c <= 0x7e {
			mapped[i] = c
		} else {
			mapped[i] = ' '
		}
	}
	return strings.Join(strings.Fields(string(mapped)), " ")
}
