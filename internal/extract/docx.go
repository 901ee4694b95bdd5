package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// documentXML mirrors the structure of word/document.xml inside a DOCX
// container. Only paragraph text runs are extracted.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// fromDOCX concatenates paragraph texts in document order, each
// paragraph followed by a newline.
func fromDOCX(content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: not a valid DOCX container: %v", apperr.ErrInvalidInput, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: cannot open document.xml: %v", apperr.ErrInvalidInput, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: cannot read document.xml: %v", apperr.ErrInvalidInput, err)
		}

		var doc documentXML
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("%w: malformed document.xml: %v", apperr.ErrInvalidInput, err)
		}

		var text strings.Builder
		for _, para := range doc.Body.Paragraphs {
			for _, run := range para.Runs {
				for _, t := range run.Text {
					text.WriteString(t.Content)
				}
			}
			text.WriteString("\n")
		}
		return text.String(), nil
	}

	return "", fmt.Errorf("%w: DOCX container has no word/document.xml", apperr.ErrInvalidInput)
}
