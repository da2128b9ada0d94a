package cli

import (
	"fmt"
	"log"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cache"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/embedder/openai"
)

// newEmbedder builds the configured embedder behind the cache. The returned
// func releases it.
func newEmbedder(cfg *Config) (memory.Embedder, func(), error) {
	var (
		inner   memory.Embedder
		release = func() {}
	)
	switch cfg.Embedder {
	case EmbedderOpenAI:
		e, err := openai.New(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai embedder: %w", err)
		}
		inner = e
	case EmbedderONNX:
		e, closeFn, err := newONNXEmbedder(cfg)
		if err != nil {
			return nil, nil, err
		}
		inner, release = e, closeFn
	case EmbedderMock:
		log.Printf("[EMBED] Using mock embedder, search results are not semantic")
		if cfg.EmbeddingDimensions > 0 {
			inner = mock.NewWithDimensions(cfg.EmbeddingDimensions)
		} else {
			inner = mock.New()
		}
	default:
		return nil, nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}

	cached, err := cache.New(inner, cfg.CacheSize)
	if err != nil {
		release()
		return nil, nil, err
	}
	log.Printf("[EMBED] %s embedder ready (%d dims, cache %d)", cfg.Embedder, inner.Dimensions(), cfg.CacheSize)
	return cached, func() {
		cached.Close()
		release()
	}, nil
}
