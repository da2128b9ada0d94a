package memory

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/becomeliminal/nim-memory/memory/index"
	"github.com/becomeliminal/nim-memory/memory/index/chromem"
)

// Index kinds accepted by Config.Index.
const (
	IndexFlat    = "flat"
	IndexChromem = "chromem"
)

// Config holds Registry configuration.
type Config struct {
	// DataDir is the directory holding one <user>.index/<user>.json pair
	// per user.
	// Default: "data"
	DataDir string `envconfig:"DATA_DIR" default:"data"`

	// MaxSize caps fragments per user. The oldest fragment is evicted
	// first.
	// Default: 300
	MaxSize int `envconfig:"MAX_SIZE" default:"300"`

	// SearchK is the number of fragments returned when a caller passes
	// k < 1.
	// Default: 3
	SearchK int `envconfig:"SEARCH_K" default:"3"`

	// Index selects the similarity index: "flat" (exact squared L2) or
	// "chromem" (chromem-go, for unit-length embeddings).
	// Default: "flat"
	Index string `envconfig:"INDEX" default:"flat"`
}

// DefaultConfig returns sensible defaults for a single-process bot.
var DefaultConfig = &Config{
	DataDir: "data",
	MaxSize: DefaultMaxSize,
	SearchK: DefaultSearchK,
	Index:   IndexFlat,
}

// LoadConfig reads configuration from the environment, e.g. with prefix
// "NIM_MEMORY": NIM_MEMORY_DATA_DIR, NIM_MEMORY_MAX_SIZE, ...
func LoadConfig(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load memory config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.MaxSize < 1 {
		return fmt.Errorf("max size must be >= 1, got %d", c.MaxSize)
	}
	if c.SearchK < 1 {
		return fmt.Errorf("search k must be >= 1, got %d", c.SearchK)
	}
	if _, err := c.IndexBuilder(); err != nil {
		return err
	}
	return nil
}

// IndexBuilder returns the Builder named by c.Index.
func (c *Config) IndexBuilder() (index.Builder, error) {
	switch strings.ToLower(strings.TrimSpace(c.Index)) {
	case IndexFlat, "":
		return index.FlatBuilder{}, nil
	case IndexChromem:
		return chromem.Builder{}, nil
	default:
		return nil, fmt.Errorf("unsupported index: %s (must be 'flat' or 'chromem')", c.Index)
	}
}
