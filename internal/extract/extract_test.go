package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mime     string
		want     constants.Format
	}{
		{"pdf extension", "report.pdf", "", constants.PDF},
		{"docx extension", "report.docx", "", constants.DOCX},
		{"doc extension", "report.doc", "", constants.DOCX},
		{"txt extension", "report.txt", "", constants.TXT},
		{"extension beats mime", "report.pdf", "text/plain", constants.PDF},
		{"pdf mime fallback", "report", "application/pdf", constants.PDF},
		{"word mime fallback", "report", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", constants.DOCX},
		{"no signal defaults to text", "report", "application/octet-stream", constants.TXT},
		{"empty everything", "", "", constants.TXT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.fileName, tt.mime))
		})
	}
}

func TestExtractDOCXParagraphOrder(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>FINDINGS:</w:t></w:r><w:r><w:t xml:space="preserve"> Left breast mass.</w:t></w:r></w:p>
    <w:p><w:r><w:t>IMPRESSION:</w:t></w:r><w:r><w:t xml:space="preserve"> BI-RADS 4.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	got, err := extractDOCX(buildDOCX(t, doc))
	require.NoError(t, err)
	assert.Equal(t, "FINDINGS: Left breast mass.\nIMPRESSION: BI-RADS 4.", got)
}

func TestExtractDOCXDiscardsMarkup(t *testing.T) {
	doc := `<w:document xmlns:w="x"><w:body>
<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:rPr><w:b/></w:rPr><w:t>Bold title</w:t></w:r></w:p>
<w:p><w:r><w:t>before</w:t><w:tab/><w:t>after</w:t></w:r></w:p>
</w:body></w:document>`

	got, err := extractDOCX(buildDOCX(t, doc))
	require.NoError(t, err)
	assert.Equal(t, "Bold title\nbefore\tafter", got)
}

func TestExtractDOCXCorruptArchive(t *testing.T) {
	_, err := extractDOCX([]byte("this is not a zip archive"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadablePackage)
}

func TestExtractDOCXMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte("<xml/>"))
	require.NoError(t, zw.Close())

	_, err = extractDOCX(buf.Bytes())
	assert.ErrorIs(t, err, ErrUnreadablePackage)
}

func TestExtractPDFTextShowOperators(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Length 60 >>\nstream\nBT /F1 12 Tf (Left breast mammogram.) Tj (BI-RADS 4.) Tj ET\nendstream\nendobj")

	res := extractPDF(pdf)
	assert.Equal(t, MethodPDFStream, res.Method)
	assert.Equal(t, "Left breast mammogram.\nBI-RADS 4.", res.Text)
	assert.Empty(t, res.Warnings)
}

func TestExtractPDFUnescapesLiterals(t *testing.T) {
	pdf := []byte("stream\n(Paren \\(left\\) and\\nnewline \\101) Tj\nendstream")

	res := extractPDF(pdf)
	assert.Equal(t, MethodPDFStream, res.Method)
	assert.Equal(t, "Paren (left) and\nnewline A", res.Text)
}

func TestExtractPDFSieveFallback(t *testing.T) {
	// No stream regions at all, but plenty of printable text mixed with
	// binary noise.
	body := strings.Repeat("The breast parenchyma is heterogeneously dense. ", 10)
	data := append([]byte{0x01, 0x02, 0xff}, []byte(body)...)

	res := extractPDF(data)
	assert.Equal(t, MethodPDFSieve, res.Method)
	assert.Contains(t, res.Text, "heterogeneously dense")
	assert.NotEmpty(t, res.Warnings)
}

func TestExtractPDFDegradedSentinel(t *testing.T) {
	res := extractPDF([]byte{0x00, 0x01, 0x02, 0x89, 0x50, 0x4e})
	assert.Equal(t, MethodPDFDegraded, res.Method)
	assert.Equal(t, PDFDegradedNotice, res.Text)
}

func TestPrintableSieveCollapsesWhitespace(t *testing.T) {
	got := printableSieve([]byte("a\x00\x00b   c\n\nd"))
	assert.Equal(t, "a b c d", got)
}

func TestExtractorDispatch(t *testing.T) {
	e := NewHeuristicExtractor(nil)
	ctx := context.Background()

	res, err := e.Extract(ctx, []byte("plain report text"), constants.TXT)
	require.NoError(t, err)
	assert.Equal(t, MethodPlaintext, res.Method)
	assert.Equal(t, "plain report text", res.Text)

	_, err = e.Extract(ctx, []byte("junk"), constants.DOCX)
	assert.ErrorIs(t, err, ErrUnreadablePackage)
}

func TestExtractPlainReplacesInvalidUTF8(t *testing.T) {
	got := extractPlain([]byte{'o', 'k', 0xff, 0xfe, '!'})
	assert.True(t, strings.HasPrefix(got, "ok"))
	assert.True(t, strings.HasSuffix(got, "!"))
}
