package connectivity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func silent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartsOnline(t *testing.T) {
	m := New(nil, silent())
	if !m.Online() {
		t.Error("Online() = false at boot, want true")
	}
}

func TestTransitionsFireSubscribers(t *testing.T) {
	m := New(nil, silent())

	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })

	m.SetOnline(false)
	m.SetOnline(false) // duplicate, must not fire
	m.SetOnline(true)

	want := []bool{false, true}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMultipleSubscribersInOrder(t *testing.T) {
	m := New(nil, silent())

	var order []string
	m.Subscribe(func(bool) { order = append(order, "first") })
	m.Subscribe(func(bool) { order = append(order, "second") })

	m.SetOnline(false)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestProbeLoopDrivesState(t *testing.T) {
	var mu sync.Mutex
	probeErr := error(nil)

	m := New(func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return probeErr
	}, silent())

	transitions := make(chan bool, 8)
	m.Subscribe(func(online bool) { transitions <- online })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx, 5*time.Millisecond)

	// Backend goes away: expect an offline transition.
	mu.Lock()
	probeErr = errors.New("unreachable")
	mu.Unlock()
	waitForTransition(t, transitions, false)

	// Backend recovers: expect an online transition.
	mu.Lock()
	probeErr = nil
	mu.Unlock()
	waitForTransition(t, transitions, true)
}

func waitForTransition(t *testing.T, ch <-chan bool, want bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for transition to online=%v", want)
		}
	}
}
