// Package llm generates grounded answers from retrieved context through a
// chat completion provider. OpenAI and Anthropic are supported, plus a mock
// for tests and keyless setups.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Generation parameters shared by all providers.
const (
	// DefaultMaxTokens caps the length of a generated answer.
	DefaultMaxTokens = 500
	// answerTemperature keeps answers close to the provided context.
	answerTemperature = 0.3
)

// systemPrompt frames every completion request.
const systemPrompt = "You are a helpful assistant that answers questions based only on the provided context."

// answerInstruction opens the user prompt and pins the refusal phrasing.
const answerInstruction = `Answer the question based only on the following context. If the answer is not in the context, say "I don't have enough information to answer this question."`

// Generator produces an answer to a question grounded in the given context
// chunks.
type Generator interface {
	GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error)
}

// BuildPrompt renders the user prompt: the instruction, numbered context
// blocks in retrieval order, then the question.
func BuildPrompt(question string, contexts []string) string {
	var b strings.Builder
	b.WriteString(answerInstruction)
	b.WriteString("\n\n")
	for i, chunk := range contexts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Context %d:%s", i+1, chunk)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
