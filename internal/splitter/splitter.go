// Package splitter provides recursive character text splitting for
// chunk-based retrieval. Text is split on a priority list of separators and
// the pieces are merged back into overlapping, size-bounded chunks.
package splitter

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators is the split priority: paragraph break, line break, word
// break, then single characters as a last resort. The empty string must stay
// last; it guarantees every text can be split down to chunk size.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// ErrInvalidParams reports invalid chunking parameters.
var ErrInvalidParams = errors.New("invalid chunking parameters")

// RecursiveSplitter splits text into chunks of at most chunkSize characters,
// re-including up to chunkOverlap trailing characters of the previous chunk
// at the start of the next one. Splitting is deterministic: the same text and
// parameters always produce the same chunk sequence.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a splitter. chunkSize must be positive and chunkOverlap must be
// in [0, chunkSize); anything else fails with ErrInvalidParams.
func New(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidParams, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, chunk size), got overlap %d with size %d", ErrInvalidParams, chunkOverlap, chunkSize)
	}
	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// ChunkSize returns the configured maximum chunk length in characters.
func (s *RecursiveSplitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap length in characters.
func (s *RecursiveSplitter) ChunkOverlap() int { return s.chunkOverlap }

// Split returns the chunk sequence for text, in document order. Chunks are
// whitespace-trimmed and never empty; empty or whitespace-only input yields
// no chunks. Lengths are measured in characters, not bytes.
func (s *RecursiveSplitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	// Pick the first separator that appears in the text. The empty string
	// always matches and splits into single characters.
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	pieces := splitKeepingSeparator(text, separator)

	var chunks []string
	var pending []string
	for _, piece := range pieces {
		if runeLen(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}
		if len(finer) == 0 {
			// No finer separator remains; the piece is emitted as-is even
			// though it exceeds the chunk size. Unreachable with the default
			// separator list, which ends in the character split.
			chunks = append(chunks, piece)
			continue
		}
		chunks = append(chunks, s.split(piece, finer)...)
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending)...)
	}
	return chunks
}

// merge greedily packs pieces into chunks of at most chunkSize characters.
// When a chunk is emitted, the trailing pieces totaling at most chunkOverlap
// characters are retained as the head of the next chunk, so the overlap comes
// from the boundary already consumed rather than a re-scan.
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.chunkSize && len(current) > 0 {
			if chunk := joinPieces(current); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.chunkOverlap || (total+n > s.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if chunk := joinPieces(current); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepingSeparator splits text on sep, prefixing the separator onto the
// following piece so that concatenating the pieces restores the text. Empty
// sep splits into single characters; empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		pieces := make([]string, 0, len(runes))
		for _, r := range runes {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func joinPieces(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
