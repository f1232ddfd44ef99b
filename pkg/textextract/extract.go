package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is one page of extracted contract text. Non-paginated formats (txt,
// docx) yield a single page numbered 1.
type Page struct {
	Number  int
	Content string
}

// Extract pulls plain text out of an uploaded contract, page by page.
// fileType accepts extensions or MIME types.
func Extract(data io.ReaderAt, size int64, fileType string) ([]Page, error) {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf", "application/pdf":
		return extractPDF(data, size)
	case "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return extractDOCX(data, size)
	case "txt", "text/plain":
		return extractTXT(data, size)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

// SupportedTypes lists the extensions Extract understands, for error
// messages and upload validation.
func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt"}
}

// Supported reports whether Extract can handle fileType, which may be an
// extension or a MIME type.
func Supported(fileType string) bool {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf", "application/pdf",
		"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"txt", "text/plain":
		return true
	default:
		return false
	}
}

func extractPDF(data io.ReaderAt, size int64) ([]Page, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Content: text})
	}
	return pages, nil
}

func extractDOCX(data io.ReaderAt, size int64) ([]Page, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if filepath.Base(f.Name) != "document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		return []Page{{Number: 1, Content: stripXMLTags(string(content))}}, nil
	}
	return nil, fmt.Errorf("document.xml not found in DOCX")
}

func extractTXT(data io.ReaderAt, size int64) ([]Page, error) {
	buf := make([]byte, size)
	if _, err := data.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read TXT: %w", err)
	}
	text := string(bytes.TrimSpace(buf))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Content: text}}, nil
}

func stripXMLTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
