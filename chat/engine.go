// Package chat runs a conversation turn for a user: short-term history,
// long-term semantic memory, and a language model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/becomeliminal/nim-memory/memory"
)

var (
	// ErrBusy is returned when the user already has a turn in flight.
	ErrBusy = errors.New("chat: previous message still in progress")

	// ErrAccessDenied is returned for users outside Config.AllowedUsers.
	ErrAccessDenied = errors.New("chat: access denied")
)

// Config configures an Engine.
type Config struct {
	// HistorySize is how many messages stay in short-term history before
	// the oldest move to long-term memory (default: 15).
	HistorySize int

	// SearchK is how many memories are recalled per turn (default: 3).
	SearchK int

	// SystemPrompt is sent with every request.
	SystemPrompt string

	// ContextHeader introduces recalled memories in the system prompt.
	ContextHeader string

	// AllowedUsers restricts who may chat. Empty allows everyone.
	AllowedUsers []string
}

// DefaultConfig is the engine configuration used when none is given.
var DefaultConfig = &Config{
	HistorySize:   15,
	SearchK:       3,
	SystemPrompt:  "You are a helpful assistant.",
	ContextHeader: "Additional context:",
}

// Engine handles chat turns. Each user has one turn in flight at a time.
type Engine struct {
	model  Model
	memory memory.Manager
	config Config

	mu       sync.Mutex
	sessions map[string]*session
}

// NewEngine creates an engine. A nil config uses DefaultConfig; zero fields
// take their defaults.
func NewEngine(model Model, mem memory.Manager, config *Config) *Engine {
	cfg := *DefaultConfig
	if config != nil {
		cfg = *config
		if cfg.HistorySize <= 0 {
			cfg.HistorySize = DefaultConfig.HistorySize
		}
		if cfg.SearchK <= 0 {
			cfg.SearchK = DefaultConfig.SearchK
		}
		if cfg.ContextHeader == "" {
			cfg.ContextHeader = DefaultConfig.ContextHeader
		}
	}
	return &Engine{
		model:    model,
		memory:   mem,
		config:   cfg,
		sessions: make(map[string]*session),
	}
}

// Handle processes one user message and returns the model's reply.
// The user's memory is persisted before Handle returns, whatever the
// outcome of the turn.
func (e *Engine) Handle(ctx context.Context, userID, text string) (reply string, err error) {
	if !e.allowed(userID) {
		return "", ErrAccessDenied
	}

	s := e.session(userID)
	if !s.turn.TryLock() {
		return "", ErrBusy
	}
	defer s.turn.Unlock()

	defer func() {
		if perr := e.memory.Persist(userID); perr != nil {
			log.Printf("[CHAT] Persist failed for %s: %v", userID, perr)
			err = errors.Join(err, perr)
		}
	}()

	e.remember(ctx, userID, s, Message{Role: RoleUser, Content: text})

	system := e.config.SystemPrompt
	recalled, serr := e.memory.SearchContext(ctx, userID, text, e.config.SearchK)
	if serr != nil {
		log.Printf("[CHAT] Memory search failed for %s: %v", userID, serr)
	} else if len(recalled) > 0 {
		log.Printf("[CHAT] Recalled %d memories for %s", len(recalled), userID)
		system = joinPrompt(system, e.config.ContextHeader+"\n"+strings.Join(recalled, "\n"))
	}

	reply, err = e.model.Complete(ctx, &Request{
		System:   system,
		Messages: s.snapshot(),
	})
	if err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}

	e.remember(ctx, userID, s, Message{Role: RoleAssistant, Content: reply})
	return reply, nil
}

// History returns a copy of the user's short-term history.
func (e *Engine) History(userID string) []Message {
	e.mu.Lock()
	s, ok := e.sessions[userID]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return s.snapshot()
}

func (e *Engine) allowed(userID string) bool {
	if len(e.config.AllowedUsers) == 0 {
		return true
	}
	for _, u := range e.config.AllowedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

func (e *Engine) session(userID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok {
		s = &session{}
		e.sessions[userID] = s
	}
	return s
}

// remember appends msg and moves overflow into long-term memory. A message
// leaves history only once memory has accepted it, so a failing embedder
// lets history run long until the next successful turn.
func (e *Engine) remember(ctx context.Context, userID string, s *session, msg Message) {
	s.push(msg)
	for {
		oldest, ok := s.overflow(e.config.HistorySize)
		if !ok {
			return
		}
		if strings.TrimSpace(oldest.Content) != "" {
			if err := e.memory.AddFragment(ctx, userID, oldest.Content); err != nil {
				log.Printf("[CHAT] Archiving history for %s failed: %v", userID, err)
				return
			}
		}
		s.dropOldest()
	}
}

func joinPrompt(base, extra string) string {
	if base == "" {
		return extra
	}
	return base + "\n\n" + extra
}
