package cart

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"poscart/internal/connectivity"
	"poscart/internal/coordinator"
)

// Sessions manages the live editors of one register process, one per open
// cart. Each editor carries its own coordinator and offline queue, so
// resilience state never leaks between carts.
type Sessions struct {
	sender  coordinator.Sender
	monitor *connectivity.Monitor
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	editors map[string]*Editor
}

// NewSessions creates an empty session registry. All editors it opens share
// the sender, the connectivity monitor and the options.
func NewSessions(sender coordinator.Sender, monitor *connectivity.Monitor, opts Options) *Sessions {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		sender:  sender,
		monitor: monitor,
		opts:    opts,
		logger:  logger,
		editors: make(map[string]*Editor),
	}
}

// Open creates an editor for a new cart and returns it. The cart ID is
// generated locally; the first mutation creates the cart upstream.
func (s *Sessions) Open() *Editor {
	return s.GetOrOpen(uuid.NewString())
}

// Get returns the editor for cartID, or nil if no session is open.
func (s *Sessions) Get(cartID string) *Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editors[cartID]
}

// GetOrOpen returns the existing editor for cartID or opens a new one.
func (s *Sessions) GetOrOpen(cartID string) *Editor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.editors[cartID]; ok {
		return e
	}
	e := NewEditor(cartID, s.sender, s.monitor, s.opts)
	s.editors[cartID] = e
	s.logger.Info("cart session opened", slog.String("cart_id", cartID))
	return e
}

// Close disposes the editor for cartID. Returns false if no session existed.
func (s *Sessions) Close(cartID string) bool {
	s.mu.Lock()
	e, ok := s.editors[cartID]
	delete(s.editors, cartID)
	s.mu.Unlock()

	if !ok {
		return false
	}
	e.Close()
	s.logger.Info("cart session closed", slog.String("cart_id", cartID))
	return true
}

// CloseAll disposes every open editor. Called on shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	editors := s.editors
	s.editors = make(map[string]*Editor)
	s.mu.Unlock()

	for _, e := range editors {
		e.Close()
	}
}

// Len reports the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.editors)
}
