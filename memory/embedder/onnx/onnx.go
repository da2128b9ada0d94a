//go:build onnx

package onnx

import (
	"context"
	"fmt"
	"log"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultDimensions = 384
	defaultMaxTokens  = 128
)

// Config configures the ONNX embedder.
type Config struct {
	// LibraryPath points at libonnxruntime. Empty uses the loader's default.
	LibraryPath string

	// ModelPath is the ONNX model file. Required.
	ModelPath string

	// TokenizerPath is the model's tokenizer.json. Required.
	TokenizerPath string

	// Dimensions is the hidden size (default: 384).
	Dimensions int

	// MaxTokens caps the sequence length including [CLS] and [SEP]
	// (default: 128).
	MaxTokens int
}

var initOnce struct {
	sync.Once
	err error
}

// Embedder runs inference in-process. Runs are serialized.
type Embedder struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tokenizer  *Tokenizer
	dimensions int
	maxTokens  int
}

// New loads the runtime, tokenizer and model.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("ModelPath and TokenizerPath are required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaultDimensions
	}
	if cfg.MaxTokens < 2 {
		cfg.MaxTokens = defaultMaxTokens
	}

	initOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		initOnce.err = ort.InitializeEnvironment()
	})
	if initOnce.err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", initOnce.err)
	}

	tok, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	log.Printf("[ONNX] Loaded %s (%d dims)", cfg.ModelPath, cfg.Dimensions)

	return &Embedder{
		session:    session,
		tokenizer:  tok,
		dimensions: cfg.Dimensions,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

// Embed tokenizes text, runs the model and mean-pools the last hidden state.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := e.tokenizer.Encode(text, e.maxTokens)
	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	types := make([]int64, len(ids))
	shape := ort.NewShape(1, int64(len(ids)))

	inputs := make([]ort.Value, 0, 3)
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, data := range [][]int64{ids, mask, types} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create input tensor: %w", err)
		}
		inputs = append(inputs, t)
	}

	outputs := []ort.Value{nil}
	e.mu.Lock()
	err := e.session.Run(inputs, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("onnx inference: no output")
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx inference: unexpected output type %T", outputs[0])
	}
	return meanPool(hidden.GetData(), mask, e.dimensions)
}

// Dimensions returns the hidden size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases the session.
func (e *Embedder) Close() error {
	return e.session.Destroy()
}
