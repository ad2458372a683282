// Package cli provides output formatting for the kotaeru CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat. The empty string
// means OutputText.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteQueryResult writes an answer with its cited source chunks to w in the
// given format. Use OutputJSON for parseable output consumable by other apps.
func WriteQueryResult(w io.Writer, result *models.QueryResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		writeQueryResultText(w, result)
		return nil
	}
}

func writeQueryResultText(w io.Writer, result *models.QueryResult) {
	fmt.Fprintf(w, "\n%s\n", result.Answer)
	if len(result.SourceChunks) == 0 {
		return
	}
	fmt.Fprintf(w, "\n--- Sources (%d chunks) ---\n", len(result.SourceChunks))
	for _, chunk := range result.SourceChunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s (chunk %d) | Similarity: %.4f\n", chunk.Source, chunk.ChunkID, chunk.SimilarityScore)
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(chunk.Content, 200))
		fmt.Fprintln(w)
	}
}

// WriteSourceList writes the ingested documents listing to w.
func WriteSourceList(w io.Writer, sources []models.SourceInfo, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if sources == nil {
			sources = []models.SourceInfo{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sources)
	default:
		if len(sources) == 0 {
			fmt.Fprintln(w, "No documents ingested.")
			return nil
		}
		fmt.Fprintf(w, "%d document(s):\n", len(sources))
		for _, s := range sources {
			fmt.Fprintf(w, "  %s  (%d chunks, last uploaded %s)\n",
				s.Source, s.Chunks, s.LastUploadedAt.Format(time.RFC3339))
		}
		return nil
	}
}

// WriteSourceMatches writes keyword search matches over documents to w,
// best match first.
func WriteSourceMatches(w io.Writer, matches []models.SourceMatch, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if matches == nil {
			matches = []models.SourceMatch{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	default:
		if len(matches) == 0 {
			fmt.Fprintln(w, "No matching documents.")
			return nil
		}
		fmt.Fprintf(w, "%d matching document(s):\n", len(matches))
		for _, m := range matches {
			fmt.Fprintf(w, "  %s  (%d matching chunks, score %.4f)\n", m.Source, m.Chunks, m.Score)
		}
		return nil
	}
}
