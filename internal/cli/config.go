package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/becomeliminal/nim-memory/chat"
	"github.com/becomeliminal/nim-memory/memory"
)

// Embedder kinds.
const (
	EmbedderOpenAI = "openai"
	EmbedderONNX   = "onnx"
	EmbedderMock   = "mock"
)

// Config is the application configuration, read from NIM_* variables.
// API keys also fall back to their conventional unprefixed names.
type Config struct {
	AnthropicAPIKey  string   `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string   `envconfig:"ANTHROPIC_BASE_URL"`
	Model            string   `envconfig:"MODEL" default:"claude-sonnet-4-20250514"`
	MaxTokens        int64    `envconfig:"MAX_TOKENS" default:"4096"`
	SystemPrompt     string   `envconfig:"SYSTEM_PROMPT" default:"You are a helpful assistant."`
	HistorySize      int      `envconfig:"HISTORY_SIZE" default:"15"`
	AllowedUsers     []string `envconfig:"ALLOWED_USERS"`

	Embedder            string `envconfig:"EMBEDDER" default:"openai"`
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS"`
	ONNXLibraryPath     string `envconfig:"ONNX_LIBRARY_PATH"`
	ONNXModelPath       string `envconfig:"ONNX_MODEL_PATH"`
	ONNXTokenizerPath   string `envconfig:"ONNX_TOKENIZER_PATH"`
	CacheSize           int64  `envconfig:"EMBED_CACHE_SIZE" default:"10000"`

	Addr      string        `envconfig:"ADDR" default:":8080"`
	IdleEvict time.Duration `envconfig:"IDLE_EVICT" default:"30m"`

	Memory *memory.Config `ignored:"true"`
}

// LoadConfig reads the application config and the memory config
// (NIM_MEMORY_*).
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("NIM", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Embedder = strings.ToLower(strings.TrimSpace(cfg.Embedder))

	mem, err := memory.LoadConfig("NIM_MEMORY")
	if err != nil {
		return nil, err
	}
	cfg.Memory = mem
	return &cfg, nil
}

// ChatConfig returns the engine configuration.
func (c *Config) ChatConfig() *chat.Config {
	return &chat.Config{
		HistorySize:  c.HistorySize,
		SearchK:      c.Memory.SearchK,
		SystemPrompt: c.SystemPrompt,
		AllowedUsers: c.AllowedUsers,
	}
}
