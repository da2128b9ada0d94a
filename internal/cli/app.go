package cli

import (
	"fmt"

	"github.com/becomeliminal/nim-memory/chat"
	"github.com/becomeliminal/nim-memory/memory"
)

// app holds the wired components shared by the commands.
type app struct {
	config   *Config
	registry *memory.Registry
	release  func()
}

func newApp() (*app, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	embedder, release, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	registry, err := memory.NewRegistry(embedder, cfg.Memory)
	if err != nil {
		release()
		return nil, err
	}
	return &app{config: cfg, registry: registry, release: release}, nil
}

func (a *app) engine() (*chat.Engine, error) {
	model, err := chat.NewAnthropicModel(chat.AnthropicConfig{
		APIKey:    a.config.AnthropicAPIKey,
		BaseURL:   a.config.AnthropicBaseURL,
		Model:     a.config.Model,
		MaxTokens: a.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic model: %w", err)
	}
	return chat.NewEngine(model, a.registry, a.config.ChatConfig()), nil
}

// Close saves every loaded store and releases the embedder.
func (a *app) Close() error {
	defer a.release()
	return a.registry.PersistAll()
}
