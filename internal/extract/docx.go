package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// documentXMLPath is the single part of a DOCX archive that holds body text.
const documentXMLPath = "word/document.xml"

// extractDOCX opens the byte buffer as a zip archive, reads word/document.xml,
// and reconstructs paragraphs: run text (<w:t>) concatenated within each
// paragraph (<w:p>), one line per paragraph, all other markup discarded.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open archive: %v", ErrUnreadablePackage, err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentXMLPath {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("%w: missing %s", ErrUnreadablePackage, documentXMLPath)
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrUnreadablePackage, documentXMLPath, err)
	}
	defer rc.Close()

	text, err := docxBodyText(rc)
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", ErrUnreadablePackage, documentXMLPath, err)
	}
	return text, nil
}

// docxBodyText walks the XML token stream collecting character data inside
// <w:t> runs and emitting a newline at each paragraph end.
func docxBodyText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var b strings.Builder
	inRun := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRun = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
