package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// odContentPath is the main content part inside OpenDocument packages.
const odContentPath = "content.xml"

// odText matches text:p, text:h, and text:span elements with or without
// attributes. One pattern keeps matches in document order.
var odText = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)

// extractOpenDoc extracts text from OpenDocument presentations (.odp) and
// spreadsheets (.ods), which both keep their content in content.xml.
// Writer documents (.odt) go through lu4p/cat instead.
func extractOpenDoc(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open OpenDocument: not a zip: %w", err)
	}
	contentXML, err := readZipEntry(zr, odContentPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", odContentPath, err)
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", odContentPath)
	}
	var b strings.Builder
	appendMatchText(&b, odText.FindAllStringSubmatch(string(contentXML), -1))
	return strings.TrimSpace(b.String()), nil
}
