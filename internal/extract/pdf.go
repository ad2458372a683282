package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF concatenates the plain text of every page. Pages that fail to
// parse abort the extraction; a partially extracted document would index
// misleading content.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < pages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}
