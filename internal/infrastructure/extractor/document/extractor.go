// Package document turns uploaded file bytes into plain text. PDF uploads go
// through the pdf reader; anything else is accepted as UTF-8 plain text.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", domain.WrapError(domain.ErrExtraction, "extract document", errors.New("empty upload"))
	}

	var (
		text string
		err  error
	)
	if isPDF(filename, data) {
		text, err = extractPDF(data)
	} else {
		text, err = extractPlainText(filename, data)
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract document", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrExtraction, "extract document", errors.New("document contains no extractable text"))
	}
	return text, nil
}

// isPDF checks the magic header first; the extension alone is not trusted.
func isPDF(filename string, data []byte) bool {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single damaged page should not sink the whole document.
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func extractPlainText(filename string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("unsupported binary format: %s", filename)
	}
	return string(data), nil
}
