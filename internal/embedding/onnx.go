//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/kotaeru/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// LocalEmbedder runs a BERT-style sentence embedding model through ONNX
// Runtime. It requires CGO and the onnxruntime shared library. Inference is
// serialized on a single pre-allocated tensor set; embeddings are cached by
// text and L2-normalized.
type LocalEmbedder struct {
	session    *ort.AdvancedSession
	tensors    modelTensors
	dimensions int
	maxTokens  int
	cache      *Cache
	tokenizer  Tokenizer
	mu         sync.Mutex
}

// modelTensors holds the pre-allocated input and output tensors reused
// across Run calls.
type modelTensors struct {
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

func (t *modelTensors) destroy() {
	if t.inputIDs != nil {
		_ = t.inputIDs.Destroy()
		t.inputIDs = nil
	}
	if t.attentionMask != nil {
		_ = t.attentionMask.Destroy()
		t.attentionMask = nil
	}
	if t.tokenTypeIDs != nil {
		_ = t.tokenTypeIDs.Destroy()
		t.tokenTypeIDs = nil
	}
	if t.output != nil {
		_ = t.output.Destroy()
		t.output = nil
	}
}

// NewLocalEmbedder loads the ONNX model at modelPath and prepares a session
// producing embeddings of the given dimensionality. InitializeEnvironment is
// called if not already done.
func NewLocalEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*LocalEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)

	var t modelTensors
	var err error
	t.inputIDs, err = ort.NewTensor(ort.NewShape(1, int64(maxTokens)), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	t.attentionMask, err = ort.NewTensor(ort.NewShape(1, int64(maxTokens)), attentionMask)
	if err != nil {
		t.destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	t.tokenTypeIDs, err = ort.NewTensor(ort.NewShape(1, int64(maxTokens)), tokenTypeIDs)
	if err != nil {
		t.destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	t.output, err = ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		t.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{t.inputIDs, t.attentionMask, t.tokenTypeIDs},
		[]ort.ArbitraryTensor{t.output},
		nil,
	)
	if err != nil {
		t.destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &LocalEmbedder{
		session:    session,
		tensors:    t,
		dimensions: dimensions,
		maxTokens:  maxTokens,
		cache:      NewCache(cacheSize),
		tokenizer:  tokenizer,
	}, nil
}

// Embed returns the embedding for text, using the cache when available.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.tensors.inputIDs.GetData(), inputIDs)
	copy(e.tensors.attentionMask.GetData(), attentionMask)
	copy(e.tensors.tokenTypeIDs.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	embedding := make([]float32, e.dimensions)
	copy(embedding, e.tensors.output.GetData()[:e.dimensions])
	utils.NormalizeL2(embedding)

	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedBatch embeds each text in order.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimensionality.
func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and its tensors.
func (e *LocalEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	e.tensors.destroy()
	return err
}
