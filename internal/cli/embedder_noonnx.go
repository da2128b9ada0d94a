//go:build !onnx

package cli

import (
	"fmt"

	"github.com/becomeliminal/nim-memory/memory"
)

func newONNXEmbedder(*Config) (memory.Embedder, func(), error) {
	return nil, nil, fmt.Errorf("onnx embedder: binary built without -tags onnx")
}
