// Package mock provides a deterministic, offline Embedder for tests and
// for running the assistant without an embeddings API.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// Embedder maps each text to a pseudo-random unit vector seeded by its
// FNV-1a hash. Equal texts embed identically; the vectors carry no meaning,
// so only exact-text matches rank meaningfully.
type Embedder struct {
	dims  int
	calls atomic.Int64
}

// New returns an Embedder with DefaultDimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions returns an Embedder producing dims-sized vectors.
func NewWithDimensions(dims int) *Embedder {
	return &Embedder{dims: max(dims, 1)}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)

	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	raw := make([]float64, e.dims)
	var sum float64
	for i := range raw {
		state += 0x9e3779b97f4a7c15
		raw[i] = float64(int64(splitmix(state))) / math.MaxInt64
		sum += raw[i] * raw[i]
	}

	norm := math.Sqrt(sum)
	vec := make([]float32, e.dims)
	for i, v := range raw {
		if norm > 0 {
			v /= norm
		}
		vec[i] = float32(v)
	}
	return vec, nil
}

func (e *Embedder) Dimensions() int { return e.dims }

// Calls reports how many embeddings have been computed.
func (e *Embedder) Calls() int { return int(e.calls.Load()) }

// splitmix is the SplitMix64 output function.
func splitmix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
