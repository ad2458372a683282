package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
	// openAIMaxBatch is the most inputs sent in one embeddings request.
	openAIMaxBatch = 100
)

// openAIModelDims maps known embedding models to their native output
// dimensionality.
var openAIModelDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder embeds text through the OpenAI embeddings API (or any
// compatible endpoint). Batches are capped at openAIMaxBatch inputs per
// request and results are cached by text.
type OpenAIEmbedder struct {
	apiKey      string
	model       string
	baseURL     string
	dimensions  int
	requestDims int
	cache       *Cache
	client      *http.Client
}

// NewOpenAIEmbedder creates an embedder for the given model. An empty model
// or baseURL selects the defaults. dimensions overrides the model's native
// dimensionality (supported by the v3 models); pass 0 to use the native one.
func NewOpenAIEmbedder(apiKey, model, baseURL string, dimensions, cacheSize int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embedder requires an API key")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	requestDims := 0
	dims, ok := openAIModelDims[model]
	if !ok {
		dims = 1536
	}
	if dimensions > 0 {
		dims = dimensions
		requestDims = dimensions
	}

	return &OpenAIEmbedder{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		dimensions:  dims,
		requestDims: requestDims,
		cache:       NewCache(cacheSize),
		client:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type openAIEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data  []openAIEmbedData `json:"data"`
	Error *openAIAPIError   `json:"error,omitempty"`
}

type openAIEmbedData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch returns embeddings for all texts in input order. Cached texts
// are not re-requested; the rest go out in batches of openAIMaxBatch.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			embeddings[i] = cached
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += openAIMaxBatch {
		end := start + openAIMaxBatch
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch, err := e.requestEmbeddings(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, emb := range batch {
			i := missIdx[start+j]
			embeddings[i] = emb
			e.cache.Set(texts[i], emb)
		}
	}
	return embeddings, nil
}

// requestEmbeddings performs one embeddings API call for texts.
func (e *OpenAIEmbedder) requestEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(openAIEmbedRequest{
		Input:      texts,
		Model:      e.model,
		Dimensions: e.requestDims,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings API returned status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var parsed openAIEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse embeddings response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embeddings API error: %s", parsed.Error.Message)
	}

	out := make([][]float32, len(texts))
	for _, data := range parsed.Data {
		if data.Index < 0 || data.Index >= len(out) {
			return nil, fmt.Errorf("embeddings response index %d out of range", data.Index)
		}
		out[data.Index] = data.Embedding
	}
	for i, emb := range out {
		if emb == nil {
			return nil, fmt.Errorf("embeddings response missing input %d", i)
		}
		if len(emb) != e.dimensions {
			return nil, fmt.Errorf("model %s returned %d dimensions, embedder configured for %d",
				e.model, len(emb), e.dimensions)
		}
	}
	return out, nil
}

// Dimensions returns the embedding dimensionality.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
