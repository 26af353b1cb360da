package ocr

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// Native extracts text in-process with the ledongthuc/pdf parser. No external
// binaries needed, which keeps the default setup dependency-free.
type Native struct{}

// NewNative creates a Native extractor.
func NewNative() *Native {
	return &Native{}
}

// ExtractText returns the concatenated plain text of every page. A page that
// fails to decode is skipped; the document only fails when it cannot be
// opened as a PDF at all.
func (n *Native) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: not a readable PDF: %s", pdfPath)
	}
	defer f.Close() //nolint:errcheck

	var builder strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if ctx.Err() != nil {
			return "", eris.Wrap(ctx.Err(), "ocr: context cancelled")
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
