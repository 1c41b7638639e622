// Package coordinator owns the resilience policy for billing API calls:
// at most one in-flight request per coordinator, cancellation of superseded
// requests, and bounded retry with exponential backoff.
//
// An attempt chain moves through: idle → sending → one of
// {success, superseded, retry-pending → sending, exhausted}. Success,
// supersession and exhaustion are terminal for that chain.
package coordinator

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"poscart/internal/api"
	"poscart/internal/model"
)

// Defaults. Tunable via Options; zero values fall back to these.
const (
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 1 * time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// Sender executes a single billing API request with no retry of its own.
// Satisfied by *api.Client; narrow interface for testability.
type Sender interface {
	Do(ctx context.Context, req api.Request) (*api.Response, error)
}

// Options tunes the retry policy.
type Options struct {
	// MaxAttempts is the retry ceiling including the first attempt.
	MaxAttempts int

	// BackoffBase is the delay before the first retry; each further retry
	// doubles it (base, 2·base, 4·base, ...).
	BackoffBase time.Duration

	// AttemptTimeout bounds each individual attempt so a hung request
	// surfaces as a retryable timeout instead of blocking the register.
	AttemptTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	return o
}

// Coordinator serializes mutation traffic for one cart editor instance.
// Issuing a new Send cancels any previous in-flight attempt chain: last
// intent wins at the transport layer. Each editor owns its own coordinator;
// there is no process-wide request state.
type Coordinator struct {
	sender Sender
	opts   Options

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc

	// sleep is swapped in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a coordinator around the given sender.
func New(sender Sender, opts Options) *Coordinator {
	return &Coordinator{
		sender: sender,
		opts:   opts.withDefaults(),
		sleep:  sleepCtx,
	}
}

// Send executes req with the full resilience policy.
// Outcomes:
//   - success → the parsed response
//   - superseded by a newer Send → model.ErrSuperseded (never retried, not a failure)
//   - caller context cancelled → the context error
//   - terminal failure (rejection, validation, auth) → the error as-is, no retry
//   - retryable failures → retried with backoff; after the ceiling,
//     *model.RetryExhaustedError annotated with the attempt count
func (c *Coordinator) Send(ctx context.Context, req api.Request) (*api.Response, error) {
	attemptCtx, gen := c.begin(ctx)
	defer c.finish(gen)

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		resp, err := c.attempt(attemptCtx, req)
		if err == nil {
			return resp, nil
		}

		// A dead chain context means either the caller gave up or a newer
		// Send took over. The attempt error itself is noise at that point.
		if attemptCtx.Err() != nil {
			return nil, c.supersededOrCancelled(ctx)
		}

		if !Retryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt < c.opts.MaxAttempts {
			delay := c.opts.BackoffBase << (attempt - 1)
			if err := c.sleep(attemptCtx, delay); err != nil {
				return nil, c.supersededOrCancelled(ctx)
			}
		}
	}

	return nil, &model.RetryExhaustedError{Attempts: c.opts.MaxAttempts, Err: lastErr}
}

// Cancel aborts any in-flight attempt chain without starting a new one.
// Used when the owning editor is disposed.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// InFlight reports whether an attempt chain is currently outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// begin supersedes any previous chain and registers the new one.
func (c *Coordinator) begin(ctx context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	chainCtx, cancel := context.WithCancel(ctx)
	c.generation++
	c.cancel = cancel
	return chainCtx, c.generation
}

// finish clears bookkeeping, unless a newer chain already took ownership.
func (c *Coordinator) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen == c.generation && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// attempt runs one bounded try against the sender.
func (c *Coordinator) attempt(ctx context.Context, req api.Request) (*api.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
	defer cancel()
	return c.sender.Do(attemptCtx, req)
}

// supersededOrCancelled distinguishes "the caller gave up" from "a newer
// mutation took over". Callers silently drop the latter.
func (c *Coordinator) supersededOrCancelled(callerCtx context.Context) error {
	if err := callerCtx.Err(); err != nil {
		return err
	}
	return model.ErrSuperseded
}

// Retryable reports whether the failure class can be fixed by retrying:
// network errors, timeouts, upstream 5xx and rate limiting. Application
// rejections, validation and auth failures are terminal, since retrying a
// well-formed "insufficient stock" cannot succeed.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, model.ErrUpstreamError) || errors.Is(err, model.ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
