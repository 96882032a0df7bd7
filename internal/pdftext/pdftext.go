// Package pdftext reads the text layer of manifest PDFs.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

var ErrNoText = eris.New("pdftext: document has no extractable text")

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// ExtractText concatenates the plain text of every page, each preceded by
// a page marker line.
func (e *Extractor) ExtractText(ctx context.Context, content []byte) (text string, err error) {
	defer func() {
		// the pdf reader panics on some corrupt cross-reference tables
		if rec := recover(); rec != nil {
			err = eris.Errorf("pdftext: corrupt document: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", eris.Wrap(err, "pdftext: open")
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", eris.Wrap(err, "pdftext: cancelled")
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", eris.Wrapf(err, "pdftext: page %d", i)
		}
		fmt.Fprintf(&b, "\n--- PÁGINA %d ---\n", i)
		b.WriteString(pageText)
	}

	if strings.TrimSpace(stripMarkers(b.String())) == "" {
		return "", ErrNoText
	}
	return b.String(), nil
}

func stripMarkers(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(l, "--- PÁGINA ") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
