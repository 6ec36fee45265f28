package extract

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"questiongen/pkg/domain"
)

func TestIsPDF(t *testing.T) {
	if !IsPDF([]byte("%PDF-1.7\n...")) {
		t.Fatalf("expected PDF signature to be recognized")
	}
	if IsPDF([]byte("PK\x03\x04")) {
		t.Fatalf("zip signature accepted as PDF")
	}
	if IsPDF([]byte("%P")) {
		t.Fatalf("truncated header accepted as PDF")
	}
}

func TestExtractRejectsNonPDF(t *testing.T) {
	e := NewPDFExtractor()
	_, err := e.Extract(context.Background(), bytes.NewReader([]byte("plain text, not a pdf")))
	if !errors.Is(err, domain.ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestNormalizeTextCollapsesWhitespace(t *testing.T) {
	got := normalizeText("  Course   plan\t\tunit  one \n\n next ")
	want := "Course plan unit one \n\n next"
	// Newlines are preserved, runs of other whitespace collapse.
	if got != want {
		t.Fatalf("normalizeText = %q, want %q", got, want)
	}
}
