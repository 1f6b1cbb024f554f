// Package extract converts uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnsupportedFormat signals bytes that are not a PDF at all.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrCorruptDocument signals a PDF that cannot be parsed.
	ErrCorruptDocument = errors.New("corrupt document")
)

var pdfHeader = []byte("%PDF-")

// Text extracts the plain text of a PDF, page by page. Pages that fail to
// decode (scanned images, exotic encodings) are skipped rather than failing
// the whole document; a fully image-only PDF therefore yields empty text,
// which is an accepted demo limitation, not an error.
func Text(data []byte) (string, error) {
	if !bytes.HasPrefix(data, pdfHeader) {
		return "", ErrUnsupportedFormat
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Msg("skipping unreadable page")
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n"), nil
}

// Truncate caps extracted text before it is used as model context, so a
// large report cannot grow the prompt without bound.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	return text[:max]
}
