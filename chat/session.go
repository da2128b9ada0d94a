package chat

import (
	"slices"
	"sync"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of short-term history.
type Message struct {
	Role    Role
	Content string
}

// session is a user's short-term history. turn is held for the whole of
// a Handle call; mu only guards history.
type session struct {
	turn sync.Mutex

	mu      sync.Mutex
	history []Message
}

func (s *session) push(m Message) {
	s.mu.Lock()
	s.history = append(s.history, m)
	s.mu.Unlock()
}

// overflow returns the oldest message if history is longer than limit.
func (s *session) overflow(limit int) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) <= limit {
		return Message{}, false
	}
	return s.history[0], true
}

func (s *session) dropOldest() {
	s.mu.Lock()
	s.history = slices.Delete(s.history, 0, 1)
	s.mu.Unlock()
}

func (s *session) snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}
