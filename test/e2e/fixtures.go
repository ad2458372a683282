// Minimal binary files for every upload format the extractor handles.
package e2e

import (
	"archive/zip"
	"bytes"

	"github.com/xuri/excelize/v2"
)

// UploadExtensions lists the file extensions the upload tests exercise.
// PDF is left out: a minimal PDF with extractable text cannot be produced
// without a writer library, and PDF extraction has its own unit tests.
var UploadExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx",
	".odt", ".odp", ".ods", ".rtf",
}

// MinimalFile returns the bytes of a minimal file of the given extension
// whose extracted text contains the given content.
func MinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return minimalDocx(text), nil
	case ".pptx":
		return minimalPptx(text), nil
	case ".odt":
		return minimalOpenDoc(`<office:document-content><office:body><office:text><text:p>` + text + `</text:p></office:text></office:body></office:document-content>`), nil
	case ".odp":
		return minimalOpenDoc(`<office:document><office:body><draw:page><text:p>` + text + `</text:p></draw:page></office:body></office:document>`), nil
	case ".ods":
		return minimalOpenDoc(`<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>` + text + `</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`), nil
	case ".rtf":
		return []byte(`{\rtf1\ansi ` + text + `}`), nil
	case ".xlsx":
		return minimalXlsx(text)
	default:
		// Plain-text formats carry the content as is.
		return []byte(text), nil
	}
}

func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalPptx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("ppt/slides/slide1.xml")
	_, _ = fw.Write([]byte(`<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalOpenDoc(contentXML string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(contentXML))
	_ = w.Close()
	return buf.Bytes()
}

func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
