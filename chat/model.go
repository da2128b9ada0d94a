package chat

import "context"

// Request is what the engine sends to a Model for one turn.
type Request struct {
	// System is the system prompt, including any recalled memories.
	System string

	// Messages is the short-term history, oldest first, ending with the
	// user's message.
	Messages []Message
}

// Model produces the assistant's reply.
type Model interface {
	Complete(ctx context.Context, req *Request) (string, error)
}
