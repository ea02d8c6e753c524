package document

import (
	"bytes"
	"strings"
	"testing"
)

func TestExtractTextRejectsGarbage(t *testing.T) {
	data := []byte("this is not a pdf")
	if _, err := ExtractText(bytes.NewReader(data), int64(len(data))); err == nil {
		t.Fatal("expected an error for non-pdf input")
	}
}

func TestExtractTextRejectsEmptyInput(t *testing.T) {
	if _, err := ExtractText(bytes.NewReader(nil), 0); err == nil {
		t.Fatal("expected an error for empty input")
	}
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	in := "Diploma  di\n\nmaturità\t scientifica "
	want := "Diploma di maturità scientifica"
	if got := normalize(in); got != want {
		t.Errorf("normalize(%q) = %q, want %q", in, got, want)
	}
	if got := normalize(" \n\t "); got != "" {
		t.Errorf("normalize(whitespace) = %q, want empty", got)
	}
	if !strings.Contains(normalize("a b"), "a b") {
		t.Error("normalize must keep single spaces")
	}
}
