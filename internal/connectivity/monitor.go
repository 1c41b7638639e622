// Package connectivity tracks whether the billing backend is reachable.
// The monitor is a gate checked before any mutation is sent; it never
// inspects individual requests.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultProbeInterval = 5 * time.Second

// ProbeFunc checks reachability of the billing backend. A nil error means
// online. Satisfied by api.Client.Ping.
type ProbeFunc func(ctx context.Context) error

// Monitor holds the current online/offline state and notifies subscribers on
// transitions. State changes come from two sources: the background probe loop
// and direct reports (a failed mutation is itself evidence of being offline).
type Monitor struct {
	logger *slog.Logger
	probe  ProbeFunc

	mu     sync.Mutex
	online bool
	subs   []func(online bool)
}

// New creates a monitor that starts in the online state: registers boot with
// connectivity assumed until proven otherwise, so the first scan of a shift
// is never queued spuriously.
func New(probe ProbeFunc, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{logger: logger, probe: probe, online: true}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition callback. Callbacks fire on every
// transition, in registration order, outside the monitor's lock.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// SetOnline records the given state, firing subscribers if it changed.
// Called by the probe loop and by the editor when a request fails with a
// connectivity-class error.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if online {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Warn("connectivity lost")
	}
	for _, fn := range subs {
		fn(online)
	}
}

// Start launches the background probe loop. It returns immediately and
// probes at the given cadence until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if m.probe == nil {
		return
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			err := m.probe(probeCtx)
			cancel()
			m.SetOnline(err == nil)
		}
	}()
}
