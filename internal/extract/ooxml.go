package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	// docxDefaultDocumentPath is the conventional main document part.
	docxDefaultDocumentPath = "word/document.xml"
	// ooxmlContentTypesPath lists part content types in OOXML packages.
	ooxmlContentTypesPath = "[Content_Types].xml"
	// docxMainContentType identifies the main document part in .docx files.
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	// pptxSlidePrefix is the path prefix of slide parts in .pptx files.
	pptxSlidePrefix = "ppt/slides/slide"
)

// wordText matches <w:t>text</w:t> runs, with or without attributes.
var wordText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// drawText matches <a:t>text</a:t> runs in slides, with or without attributes.
var drawText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// Override elements in [Content_Types].xml can list their attributes in
// either order, so both are probed.
var (
	docxPartFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	docxTypeFirst = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// readZipEntry returns the named entry's bytes, or nil when the package has
// no such entry.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, nil
}

// docxMainDocumentPath resolves the main document part from
// [Content_Types].xml, falling back to the conventional path.
func docxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipEntry(zr, ooxmlContentTypesPath)
	if err != nil || data == nil {
		return docxDefaultDocumentPath
	}
	s := string(data)
	if m := docxPartFirst.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := docxTypeFirst.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return docxDefaultDocumentPath
}

// extractDocx pulls every <w:t> text run out of the main document part.
// Matching runs rather than paragraphs keeps content from real-world
// documents whose <w:p> and <w:r> elements carry attributes.
func extractDocx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: not a zip: %w", err)
	}
	docPath := docxMainDocumentPath(zr)
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", docPath, err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	var b strings.Builder
	appendMatchText(&b, wordText.FindAllStringSubmatch(string(docXML), -1))
	return strings.TrimSpace(b.String()), nil
}

// extractPptx pulls every <a:t> text run out of every slide part.
func extractPptx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PPTX: not a zip: %w", err)
	}
	var b strings.Builder
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		appendMatchText(&b, drawText.FindAllStringSubmatch(string(data), -1))
	}
	return strings.TrimSpace(b.String()), nil
}

// appendMatchText appends submatch 1 of every match, space separated.
func appendMatchText(b *strings.Builder, matches [][]string) {
	for _, m := range matches {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(m[1]))
	}
}
