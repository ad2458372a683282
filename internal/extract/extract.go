// Package extract pulls plain text out of document files so they can be
// chunked and indexed. One extractor per format; unknown formats are
// rejected rather than guessed at.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat reports a file extension no extractor is registered
// for.
var ErrUnsupportedFormat = errors.New("unsupported file format")

type extractFunc func(content []byte) (string, error)

// formats maps a lowercase file extension (with leading dot) to its
// extractor. Legacy .doc is routed through the DOCX parser: files that are
// really OOXML extract fine, true binary .doc fails with a clear error.
var formats = map[string]extractFunc{
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".pdf":  extractPDF,
	".docx": extractDocx,
	".doc":  extractDocx,
	".xlsx": extractXlsx,
	".pptx": extractPptx,
	".odt":  extractODT,
	".rtf":  extractRTF,
	".odp":  extractOpenDoc,
	".ods":  extractOpenDoc,
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content, dispatching
// on the file extension.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"); case is ignored.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := formats[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return fn(content)
}

// Supported returns the registered file extensions, sorted.
func Supported() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether an extractor is registered for ext.
func IsSupported(ext string) bool {
	_, ok := formats[strings.ToLower(ext)]
	return ok
}
