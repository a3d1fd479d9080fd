// Package resume turns an uploaded résumé into the section profile the interviewer works from.
package resume

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a document holds no extractable text.
var ErrNoText = errors.New("document contains no extractable text")

// ExtractPDFText returns the plain text of every page, joined with newlines.
// Pages without a text layer are skipped.
func ExtractPDFText(r io.ReaderAt, size int64) (text string, err error) {
	// The pdf reader panics on some malformed documents.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("read pdf: malformed document: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}

	if len(pages) == 0 {
		return "", ErrNoText
	}

	return strings.Join(pages, "\n"), nil
}
