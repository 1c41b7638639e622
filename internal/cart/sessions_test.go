package cart

import (
	"context"
	"testing"
	"time"

	"poscart/internal/api"
	"poscart/internal/connectivity"
	"poscart/internal/coordinator"
)

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	sender := &fakeSender{handler: func(_ context.Context, req api.Request) (*api.Response, error) {
		return &api.Response{Status: "success"}, nil
	}}
	s := NewSessions(sender, connectivity.New(nil, nil), Options{
		DebounceWindow: 10 * time.Millisecond,
		Coordinator:    coordinator.Options{MaxAttempts: 1, BackoffBase: time.Millisecond},
	})
	t.Cleanup(s.CloseAll)
	return s
}

func TestSessionsGetOrOpenReturnsSameEditor(t *testing.T) {
	s := newTestSessions(t)

	a := s.GetOrOpen("c1")
	b := s.GetOrOpen("c1")
	if a != b {
		t.Error("GetOrOpen returned a new editor for an open cart")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestSessionsOpenGeneratesUniqueCarts(t *testing.T) {
	s := newTestSessions(t)

	a := s.Open()
	b := s.Open()
	if a.CartID() == b.CartID() {
		t.Errorf("two opened sessions share cart ID %q", a.CartID())
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestSessionsClose(t *testing.T) {
	s := newTestSessions(t)
	e := s.GetOrOpen("c1")

	if !s.Close("c1") {
		t.Fatal("Close() = false for an open session")
	}
	if s.Get("c1") != nil {
		t.Error("Get() returned an editor after Close")
	}
	if s.Close("c1") {
		t.Error("Close() = true for an already-closed session")
	}
	if !e.isClosed() {
		t.Error("editor not disposed by Close")
	}
}

func TestSessionsCloseAll(t *testing.T) {
	s := newTestSessions(t)
	a := s.GetOrOpen("c1")
	b := s.GetOrOpen("c2")

	s.CloseAll()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after CloseAll, want 0", s.Len())
	}
	if !a.isClosed() || !b.isClosed() {
		t.Error("editors not disposed by CloseAll")
	}
}
