package embedding

import "strings"

const (
	clsTokenID       = 101
	sepTokenID       = 102
	tokenIDBuckets   = 30000
	defaultMaxTokens = 256
)

// Tokenizer produces token IDs for BERT-style models (input_ids,
// attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer is a whitespace tokenizer with hash-derived token IDs.
// It is not vocabulary-accurate; it exists so the local model path works
// without shipping a tokenizer file.
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to
// maxTokens, with [CLS] and [SEP] markers.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	// [CLS], hashed words, [SEP]; words stop one short of the last slot so
	// the [SEP] always fits.
	tokens := []int64{clsTokenID}
	for _, word := range SplitWords(text) {
		if len(tokens) >= maxTokens-1 {
			break
		}
		tokens = append(tokens, int64(HashString(word)%tokenIDBuckets))
	}
	if len(tokens) < maxTokens {
		tokens = append(tokens, sepTokenID)
	}

	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i, id := range tokens {
		inputIDs[i] = id
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text on spaces, tabs, and newlines, dropping empty
// words. Returns nil when text holds no words.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t'
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash for use as a simple
// token ID. The empty string hashes to zero.
func HashString(s string) int {
	h := 0
	for _, r := range s {
		h = h*31 + int(r)
	}
	if h < 0 {
		return -h
	}
	return h
}
