// Package document extracts plain text from uploaded study documents
// (transcripts, CVs) so their contents can be run through the same
// extraction pipeline as chat messages.
package document

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyDocument is returned when a PDF parses but contains no
// extractable text, e.g. scanned pages without a text layer.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// ExtractText pulls the plain text out of a PDF. The reader must cover
// the whole file; size is its length in bytes.
func ExtractText(r io.ReaderAt, size int64) (string, error) {
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}

	body, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, body); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	text := normalize(sb.String())
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// normalize collapses runs of whitespace so the extraction prompt sees
// readable sentences instead of layout artifacts.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
