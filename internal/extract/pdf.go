package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageSource is the slice of a PDF reader the extractor needs. Pages are
// numbered from 1.
type pageSource interface {
	NumPage() int
	PageText(n int) (string, error)
}

type pdfDocument struct {
	r *pdf.Reader
}

func openPDF(data []byte) (pageSource, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return pdfDocument{r: r}, nil
}

func (d pdfDocument) NumPage() int {
	return d.r.NumPage()
}

func (d pdfDocument) PageText(n int) (string, error) {
	page := d.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// extractPDF concatenates the trimmed text of every page that has any, one
// page per line. The parser panics on some malformed inputs; those surface as
// KindUnexpected.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Kind: KindUnexpected, MediaType: TypePDF, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	doc, err := e.openPDF(data)
	if err != nil {
		return "", &ExtractionError{Kind: KindUnreadable, MediaType: TypePDF, Err: err}
	}

	var b strings.Builder
	for n := 1; n <= doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return "", &ExtractionError{Kind: KindUnexpected, MediaType: TypePDF, Err: err}
		}
		pageText, err := doc.PageText(n)
		if err != nil {
			return "", &ExtractionError{Kind: KindUnexpected, MediaType: TypePDF, Err: fmt.Errorf("page %d: %w", n, err)}
		}
		// The reader emits a newline per text object, so blank pages are not empty.
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(pageText)
	}
	return b.String(), nil
}
