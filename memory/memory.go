package memory

import (
	"context"
)

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), OpenAI (remote), ONNX (local),
// and a caching decorator that wraps any of them.
//
// Embed may fail on network or service errors; the store reports such
// failures as ErrEmbeddingFailure.
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}

// Manager is the interface the conversation layer uses to reach long-term
// memory. Registry is the standard implementation.
//
// The conversation layer is opinionated about WHEN to touch memory
// (evicted history goes in, every user message is a query). The Manager
// decides HOW: which store, which path, which lock.
type Manager interface {
	// AddFragment embeds text and appends it to the user's store.
	AddFragment(ctx context.Context, userID string, text string) error

	// SearchContext returns up to k stored texts closest to query,
	// closest first.
	SearchContext(ctx context.Context, userID string, query string, k int) ([]string, error)

	// Persist writes the user's store to durable storage.
	// The store never saves on its own.
	Persist(userID string) error
}
