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
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-latest"
	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// AnthropicGenerator answers questions through the Anthropic messages API.
type AnthropicGenerator struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
}

// NewAnthropicGenerator creates a generator for the given model. Empty model
// or baseURL select the defaults; maxTokens of 0 or less selects
// DefaultMaxTokens.
func NewAnthropicGenerator(apiKey, model, baseURL string, maxTokens int) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic generator requires an API key")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicGenerator{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type messagesRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateAnswer sends the grounded prompt and returns the trimmed text
// blocks of the reply.
func (g *AnthropicGenerator) GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error) {
	payload, err := json.Marshal(messagesRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "user", Content: BuildPrompt(question, contexts)},
		},
		MaxTokens:   g.maxTokens,
		System:      systemPrompt,
		Temperature: answerTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal messages request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create messages request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read messages response: %w", err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse messages response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("messages API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("messages API returned status %d: %s", resp.StatusCode, truncateBody(body))
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("messages response has no content")
	}

	var b strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
