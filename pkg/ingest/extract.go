package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/dslipak/pdf"

	"github.com/docaihq/docai/pkg/domain"
)

// Extract dispatches on the filename extension and returns the document
// corpus as plain text.
func Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))

	var text string
	var err error
	switch ext {
	case "pdf":
		text, err = extractPDF(data)
	case "docx":
		text, err = extractDOCX(data)
	case "txt", "md":
		text = decodePlainText(data)
	default:
		return "", fmt.Errorf("%w: unsupported extension %q", domain.ErrInvalidInput, ext)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document contains no extractable text", domain.ErrExtractionFailed)
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to open PDF: %v", domain.ErrExtractionFailed, err)
	}

	var sb strings.Builder
	extracted := false
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(pageText) == "" {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
		extracted = true
	}
	if !extracted {
		return "", fmt.Errorf("%w: no page yielded text", domain.ErrExtractionFailed)
	}
	return sb.String(), nil
}

// extractDOCX reads word/document.xml from the OOXML container and
// joins non-empty paragraphs with blank lines.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to open DOCX container: %v", domain.ErrExtractionFailed, err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: failed to read DOCX body: %v", domain.ErrExtractionFailed, err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: DOCX has no document body", domain.ErrExtractionFailed)
	}
	defer docXML.Close()

	decoder := xml.NewDecoder(docXML)
	var paragraphs []string
	var current strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: malformed DOCX body: %v", domain.ErrExtractionFailed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		paragraphs = append(paragraphs, p)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// decodePlainText treats the bytes as UTF-8, falling back to a Latin-1
// widening when they are not valid UTF-8.
func decodePlainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
