// Package extract converts uploaded file bytes into plain text.
// Supported formats: PDF, DOCX and plain UTF-8 text.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// Text extracts plain text from the given file content, dispatching on
// the filename extension.
func Text(filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return fromPDF(content)
	case ".docx":
		return fromDOCX(content)
	case ".txt":
		return fromPlainText(content)
	default:
		return "", fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// fromPDF concatenates per-page text in page order. Pages that cannot
// be parsed are skipped rather than failing the whole document.
func fromPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: not a readable PDF: %v", apperr.ErrInvalidInput, err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
	}
	return text.String(), nil
}

func fromPlainText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: text file is not valid UTF-8", apperr.ErrInvalidInput)
	}
	return string(content), nil
}
