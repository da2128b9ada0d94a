package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/becomeliminal/nim-memory/memory/index"
)

const (
	// DefaultMaxSize is the per-user fragment cap.
	DefaultMaxSize = 300

	// DefaultSearchK is the number of fragments Search returns for k < 1.
	DefaultSearchK = 3
)

// Store is one user's long-term semantic memory: an ordered list of text
// fragments, their embeddings, and a similarity index over them.
//
// texts and embeddings are index-aligned and are the source of truth. The
// index is a cache rebuilt from embeddings after every mutation, lazily,
// on the next Search or Save.
//
// A Store does no locking. Callers must not run two operations on the same
// Store at once; Registry serializes access per user.
type Store struct {
	embedder Embedder
	builder  index.Builder
	maxSize  int
	searchK  int
	path     string

	texts      []string
	embeddings [][]float32
	dim        int // 0 until the first vector is added or loaded

	idx   index.Index
	dirty bool
}

// Option configures a Store.
type Option func(*Store)

// WithMaxSize sets the fragment cap. Values below 1 are ignored.
func WithMaxSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithSearchK sets the default k used when Search is called with k < 1.
func WithSearchK(k int) Option {
	return func(s *Store) {
		if k > 0 {
			s.searchK = k
		}
	}
}

// WithIndexBuilder sets the similarity index implementation.
func WithIndexBuilder(b index.Builder) Option {
	return func(s *Store) {
		if b != nil {
			s.builder = b
		}
	}
}

// NewStore creates an empty store.
func NewStore(embedder Embedder, opts ...Option) *Store {
	s := &Store{
		embedder: embedder,
		builder:  index.FlatBuilder{},
		maxSize:  DefaultMaxSize,
		searchK:  DefaultSearchK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add embeds text and appends it. When the store is over capacity the
// oldest fragment is evicted (insertion order, not access order).
//
// Add is atomic: if embedding fails or the embedding has the wrong
// dimension, the store is unchanged.
func (s *Store) Add(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyText
	}

	emb, err := s.embed(ctx, text)
	if err != nil {
		return err
	}

	s.texts = append(s.texts, text)
	s.embeddings = append(s.embeddings, emb)
	if s.dim == 0 {
		s.dim = len(emb)
	}
	if over := len(s.texts) - s.maxSize; over > 0 {
		s.evictOldest(over)
	}
	s.dirty = true
	return nil
}

// Search returns up to k fragments closest to query under squared L2
// distance, closest first. Equal distances keep insertion order.
//
// An empty store returns an empty result without calling the embedder.
func (s *Store) Search(ctx context.Context, query string, k int) ([]string, error) {
	if len(s.texts) == 0 {
		return []string{}, nil
	}
	if k < 1 {
		k = s.searchK
	}

	q, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.ensureIndex(); err != nil {
		return nil, err
	}

	if k > len(s.texts) {
		k = len(s.texts)
	}
	hits, err := s.idx.Query(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(s.texts) {
			continue
		}
		results = append(results, s.texts[h.Position])
	}
	return results, nil
}

// Len returns the number of fragments.
func (s *Store) Len() int {
	return len(s.texts)
}

// Texts returns a copy of the fragments, oldest first.
func (s *Store) Texts() []string {
	return slices.Clone(s.texts)
}

// Dimensions returns the established embedding size, 0 if none yet.
func (s *Store) Dimensions() int {
	return s.dim
}

// MaxSize returns the fragment cap.
func (s *Store) MaxSize() int {
	return s.maxSize
}

// Path returns the path prefix the store was loaded from or last saved to.
func (s *Store) Path() string {
	return s.path
}

// embed calls the embedder and checks the result against the store's
// dimension. The returned slice is owned by the store.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if len(emb) == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", ErrEmbeddingFailure)
	}
	if s.dim != 0 && len(emb) != s.dim {
		return nil, fmt.Errorf("%w: store has %d, embedding has %d", ErrDimensionMismatch, s.dim, len(emb))
	}
	return slices.Clone(emb), nil
}

// evictOldest drops the n oldest fragments from both sequences.
func (s *Store) evictOldest(n int) {
	s.texts = slices.Delete(s.texts, 0, n)
	s.embeddings = slices.Delete(s.embeddings, 0, n)
}

// ensureIndex rebuilds the index from embeddings if it is missing or stale.
func (s *Store) ensureIndex() error {
	if s.idx != nil && !s.dirty {
		return nil
	}
	idx, err := s.builder.Build(s.embeddings)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	s.idx = idx
	s.dirty = false
	return nil
}
