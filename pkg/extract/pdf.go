package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"questiongen/pkg/domain"
)

// Extractor turns a stored curriculum document into plain text.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// pdfSignature is the content signature every accepted upload must
// start with. Validation is by content, not filename.
const pdfSignature = "%PDF"

// IsPDF checks the leading bytes for the PDF content signature.
func IsPDF(header []byte) bool {
	return len(header) >= len(pdfSignature) && string(header[:len(pdfSignature)]) == pdfSignature
}

// PDFExtractor extracts plain text from PDF documents.
type PDFExtractor struct{}

// NewPDFExtractor builds a PDF text extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads the whole document and concatenates per-page plain
// text. Pages the library cannot decode are skipped; a document that
// yields no text at all is unreadable.
func (e *PDFExtractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if !IsPDF(data) {
		return "", fmt.Errorf("%w: missing PDF signature", domain.ErrUnreadableDocument)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}

	var sb strings.Builder
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := normalizeText(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text extracted", domain.ErrUnreadableDocument)
	}
	return text, nil
}

func normalizeText(text string) string {
	var sb strings.Builder
	lastSpace := false
	for _, r := range text {
		if r == '\n' {
			sb.WriteRune('\n')
			lastSpace = false
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				sb.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		sb.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(sb.String())
}
