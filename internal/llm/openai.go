package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-5-mini"
)

// OpenAIGenerator answers questions through the OpenAI chat completions API
// (or any compatible endpoint).
type OpenAIGenerator struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
}

// NewOpenAIGenerator creates a generator for the given model. Empty model or
// baseURL select the defaults; maxTokens of 0 or less selects
// DefaultMaxTokens.
func NewOpenAIGenerator(apiKey, model, baseURL string, maxTokens int) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai generator requires an API key")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &OpenAIGenerator{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GenerateAnswer sends the grounded prompt and returns the trimmed
// completion.
func (g *OpenAIGenerator) GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(question, contexts)},
		},
		MaxTokens:   g.maxTokens,
		Temperature: answerTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse completion response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API returned status %d: %s", resp.StatusCode, truncateBody(body))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
