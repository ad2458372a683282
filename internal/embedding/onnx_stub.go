//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("local embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// LocalEmbedder stub when built without CGO (see onnx.go for the real
// implementation). The constructor always fails; the methods exist so the
// type satisfies Embedder in both build modes.
type LocalEmbedder struct{}

// NewLocalEmbedder fails when built without CGO; the local provider needs
// the onnxruntime shared library.
func NewLocalEmbedder(_ string, _, _, _ int) (*LocalEmbedder, error) {
	return nil, errNoCGO
}

// Embed is unreachable in builds without CGO.
func (e *LocalEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoCGO
}

// EmbedBatch is unreachable in builds without CGO.
func (e *LocalEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errNoCGO
}

// Dimensions returns 0 in builds without CGO.
func (e *LocalEmbedder) Dimensions() int {
	return 0
}

// Close is a no-op.
func (e *LocalEmbedder) Close() error {
	return nil
}
