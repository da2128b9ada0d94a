// Package server exposes a chat Handler over WebSocket.
//
// Clients connect to /ws?user_id=<id> and send JSON frames:
//
//	{"type": "message", "content": "hi"}
//
// Replies arrive as "text", "busy" or "error" frames. /health reports
// liveness.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/becomeliminal/nim-memory/chat"
)

// Frame types.
const (
	FrameMessage = "message"
	FrameText    = "text"
	FrameBusy    = "busy"
	FrameError   = "error"
)

// Frame is the JSON envelope exchanged with clients.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Handler answers one user message. *chat.Engine implements it.
type Handler interface {
	Handle(ctx context.Context, userID, text string) (string, error)
}

// Config configures the server.
type Config struct {
	// Handler processes messages. Required.
	Handler Handler

	// BusyMessage is sent when the user already has a turn in flight.
	BusyMessage string

	// CheckOrigin validates the Origin header. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
}

// Server serves the chat WebSocket.
type Server struct {
	handler  Handler
	busy     string
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	// baseCtx parents every turn; Close cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("Handler is required")
	}
	if cfg.BusyMessage == "" {
		cfg.BusyMessage = "Hold on, I'm still answering your previous message."
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	s := &Server{
		handler: cfg.Handler,
		busy:    cfg.BusyMessage,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		mux: http.NewServeMux(),
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.mux.HandleFunc("/ws", s.serveWS)
	s.mux.HandleFunc("/health", s.serveHealth)
	return s, nil
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close cancels every in-flight and future turn. Open connections stay up
// and answer further messages with error frames.
func (s *Server) Close() {
	s.cancel()
}

// Run listens on addr until ctx is cancelled, then cancels in-flight turns
// and shuts down.
func (s *Server) Run(ctx context.Context, addr string) error {
	defer s.Close()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SERVER] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Upgrade failed: %v", err)
		return
	}
	c := &connection{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
	}
	log.Printf("[SERVER] Connection %s opened for user=%s", c.id, userID)

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer func() {
		cancel()
		c.wg.Wait()
		conn.Close()
		log.Printf("[SERVER] Connection %s closed", c.id)
	}()

	for {
		var in Frame
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[SERVER] Connection %s read failed: %v", c.id, err)
			}
			return
		}
		if in.Type != FrameMessage {
			c.write(Frame{Type: FrameError, Content: fmt.Sprintf("unknown frame type %q", in.Type)})
			continue
		}

		// Turns run concurrently so a second message can be told the
		// first is still in progress.
		c.wg.Add(1)
		go func(text string) {
			defer c.wg.Done()
			c.write(s.respond(ctx, c, text))
		}(in.Content)
	}
}

func (s *Server) respond(ctx context.Context, c *connection, text string) Frame {
	reply, err := s.handler.Handle(ctx, c.userID, text)
	switch {
	case errors.Is(err, chat.ErrBusy):
		return Frame{Type: FrameBusy, Content: s.busy}
	case errors.Is(err, chat.ErrAccessDenied):
		return Frame{Type: FrameError, Content: "access denied"}
	case err != nil && reply == "":
		log.Printf("[SERVER] Connection %s: handling message failed: %v", c.id, err)
		return Frame{Type: FrameError, Content: "failed to process message"}
	case err != nil:
		// The turn produced a reply but saving memory failed.
		log.Printf("[SERVER] Connection %s: %v", c.id, err)
	}
	return Frame{Type: FrameText, Content: reply}
}

// connection serializes writes; gorilla allows one concurrent writer.
type connection struct {
	id     string
	userID string
	conn   *websocket.Conn
	wg     sync.WaitGroup

	writeMu sync.Mutex
}

func (c *connection) write(f Frame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		log.Printf("[SERVER] Connection %s write failed: %v", c.id, err)
	}
}
