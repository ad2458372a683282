package extract

import (
	"fmt"
	"strings"

	"github.com/lu4p/cat/odtxt"
	"github.com/lu4p/cat/rtftxt"
)

// extractODT extracts text from OpenDocument Writer files.
func extractODT(content []byte) (string, error) {
	text, err := odtxt.BytesToStr(content)
	if err != nil {
		return "", fmt.Errorf("extract ODT: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// extractRTF extracts text from Rich Text Format files.
func extractRTF(content []byte) (string, error) {
	text, err := rtftxt.BytesToStr(content)
	if err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	return strings.TrimSpace(text), nil
}
