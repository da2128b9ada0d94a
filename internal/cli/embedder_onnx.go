//go:build onnx

package cli

import (
	"fmt"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
)

func newONNXEmbedder(cfg *Config) (memory.Embedder, func(), error) {
	e, err := onnx.New(onnx.Config{
		LibraryPath:   cfg.ONNXLibraryPath,
		ModelPath:     cfg.ONNXModelPath,
		TokenizerPath: cfg.ONNXTokenizerPath,
		Dimensions:    cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("onnx embedder: %w", err)
	}
	return e, func() { e.Close() }, nil
}
