package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// scriptedEmbedder returns fixed vectors so tests can reason about
// distances exactly.
type scriptedEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    error
	calls   int
}

func newScripted(vectors map[string][]float32) *scriptedEmbedder {
	return &scriptedEmbedder{vectors: vectors}
}

func (e *scriptedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector scripted for %q", text)
	}
	return append([]float32(nil), v...), nil
}

func (e *scriptedEmbedder) Dimensions() int {
	for _, v := range e.vectors {
		return len(v)
	}
	return 0
}

func (e *scriptedEmbedder) setFail(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

func (e *scriptedEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var errServiceDown = errors.New("embedding service unavailable")

// line places texts on a 1-D line; distance between them is (a-b)^2.
func line(points map[string]float32) map[string][]float32 {
	out := make(map[string][]float32, len(points))
	for text, x := range points {
		out[text] = []float32{x}
	}
	return out
}
