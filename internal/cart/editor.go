// Package cart implements the mutation engine behind one register cart:
// optimistic edits with rollback snapshots, supersede-aware request
// coordination, offline queueing and debounced totals.
//
// Every edit follows the same shape: validate, snapshot, apply locally,
// then either park the request offline or send it through the coordinator
// and resolve with exactly one of {reconcile, rollback, ignore}.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"poscart/internal/aggregate"
	"poscart/internal/api"
	"poscart/internal/connectivity"
	"poscart/internal/coordinator"
	"poscart/internal/debounce"
	"poscart/internal/model"
	"poscart/internal/queue"
	"poscart/internal/reconcile"
)

const (
	// totalsKey is the debounce key for totals recomputation. One key per
	// editor: a burst of edits to any lines coalesces into one recompute.
	totalsKey = "totals"

	defaultDebounceWindow = 100 * time.Millisecond
	defaultRefreshTimeout = 15 * time.Second

	// replayPassTimeout bounds one full drain of the offline queue.
	replayPassTimeout = 2 * time.Minute
)

// Options tunes one editor instance. Zero values get defaults.
type Options struct {
	Logger   *slog.Logger
	Notifier Notifier

	// Coordinator is the retry/backoff policy for this editor's requests.
	Coordinator coordinator.Options

	// DebounceWindow is how long totals recomputation waits for the edit
	// burst to settle.
	DebounceWindow time.Duration

	// RefreshTimeout bounds the background cart refresh that runs after the
	// offline queue drains.
	RefreshTimeout time.Duration
}

// Editor owns the mutation lifecycle for exactly one cart. All exported
// methods are safe for concurrent use; internally the cart state is guarded
// by one mutex and every mutation resolves at most once.
type Editor struct {
	cartID   string
	logger   *slog.Logger
	notifier Notifier

	coord   *coordinator.Coordinator
	queue   *queue.Queue
	monitor *connectivity.Monitor
	sched   *debounce.Scheduler

	window         time.Duration
	refreshTimeout time.Duration

	mu     sync.Mutex
	cart   *model.Cart
	closed bool
}

// NewEditor creates an editor for the given cart. The sender executes single
// requests (normally *api.Client); the monitor is shared across editors and
// gates whether mutations go out or get queued.
func NewEditor(cartID string, sender coordinator.Sender, monitor *connectivity.Monitor, opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("cart_id", cartID))

	notifier := opts.Notifier
	if notifier == nil {
		notifier = &logNotifier{logger: logger}
	}

	window := opts.DebounceWindow
	if window <= 0 {
		window = defaultDebounceWindow
	}
	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = defaultRefreshTimeout
	}

	e := &Editor{
		cartID:         cartID,
		logger:         logger,
		notifier:       notifier,
		coord:          coordinator.New(sender, opts.Coordinator),
		queue:          queue.New(logger),
		monitor:        monitor,
		sched:          debounce.NewScheduler(),
		window:         window,
		refreshTimeout: refreshTimeout,
		cart:           &model.Cart{ID: cartID},
	}

	e.queue.OnDrained(func() {
		e.notifier.Notify("info", "QUEUE_DRAINED", "offline queue drained, refreshing cart")
		ctx, cancel := context.WithTimeout(context.Background(), e.refreshTimeout)
		defer cancel()
		if err := e.Refresh(ctx); err != nil {
			e.logger.Warn("post-drain refresh failed", slog.String("error", err.Error()))
		}
	})

	monitor.Subscribe(func(online bool) {
		if e.isClosed() {
			return
		}
		if !online {
			e.notifier.Notify("warn", "OFFLINE", "billing unreachable, edits will be queued")
			return
		}
		go e.replay()
	})

	return e
}

// CartID returns the cart this editor mutates.
func (e *Editor) CartID() string { return e.cartID }

// Cart returns a copy of the current local cart state.
func (e *Editor) Cart() model.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := *e.cart
	out.Lines = make([]model.LineItem, len(e.cart.Lines))
	copy(out.Lines, e.cart.Lines)
	return out
}

// Totals derives the display totals from the current line set, bypassing the
// debounce window. Read path for handlers.
func (e *Editor) Totals() aggregate.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return aggregate.Recompute(e.cart.Lines)
}

// QueueDepth reports how many mutations are parked offline.
func (e *Editor) QueueDepth() int { return e.queue.Len() }

// Close disposes the editor: cancels any in-flight request chain and stops
// pending debounced work. Parked queue entries are dropped with the editor.
func (e *Editor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.coord.Cancel()
	e.sched.Stop()
}

func (e *Editor) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// === Mutations ===

// Scan adds an item by barcode. The row appears immediately with the scanned
// quantity and no price; the server response fills in catalog data, price and
// the confirmed line ID.
func (e *Editor) Scan(ctx context.Context, barcode string, qty decimal.Decimal) (*model.LineItem, error) {
	if barcode == "" {
		return nil, model.NewValidationError("barcode", "barcode is required")
	}
	if qty.Sign() <= 0 {
		return nil, model.NewValidationError("quantity", "quantity must be positive")
	}

	req, err := api.ScanRequest(e.cartID, barcode, qty)
	if err != nil {
		return nil, err
	}

	offline := !e.monitor.Online()

	e.mu.Lock()
	line := model.LineItem{
		ID:       uuid.NewString(),
		Barcode:  barcode,
		Quantity: qty,
		Pending:  true,
	}
	e.cart.Lines = append(e.cart.Lines, line)
	snap := captureCreated(line.ID, e.cart.Total)
	e.mu.Unlock()

	e.notifier.RenderLine(line)
	e.scheduleTotals()

	if offline {
		snap.Discard()
		e.park(req, line.ID)
		return e.lineCopy(line.ID), model.ErrQueued
	}
	return e.resolve(ctx, req, snap, line.ID)
}

// SetQuantity changes a line's quantity. Fractional quantities are allowed
// for weighed goods; zero and negative are rejected locally (removal is an
// explicit separate operation).
func (e *Editor) SetQuantity(ctx context.Context, lineID string, qty decimal.Decimal) (*model.LineItem, error) {
	if qty.Sign() <= 0 {
		return nil, model.NewValidationError("quantity", "quantity must be positive")
	}
	return e.updateLine(ctx, lineID, &qty, nil)
}

// SetPrice overrides a line's unit price. The discount against the catalog
// reference price is recomputed locally for immediate display.
func (e *Editor) SetPrice(ctx context.Context, lineID string, price decimal.Decimal) (*model.LineItem, error) {
	if price.Sign() < 0 {
		return nil, model.NewValidationError("price", "price must not be negative")
	}
	return e.updateLine(ctx, lineID, nil, &price)
}

func (e *Editor) updateLine(ctx context.Context, lineID string, qty, price *decimal.Decimal) (*model.LineItem, error) {
	req, err := api.UpdateRequest(e.cartID, lineID, qty, price)
	if err != nil {
		return nil, err
	}

	offline := !e.monitor.Online()

	e.mu.Lock()
	live := e.cart.Line(lineID)
	if live == nil {
		e.mu.Unlock()
		return nil, model.NewNotFoundError("line item")
	}
	snap := captureLine(live, e.cart.Total)
	if qty != nil {
		live.Quantity = *qty
	}
	if price != nil {
		live.UnitPrice = *price
	}
	live.Recompute()
	if offline {
		live.Pending = true
	}
	rendered := *live
	e.mu.Unlock()

	e.notifier.RenderLine(rendered)
	e.scheduleTotals()

	if offline {
		snap.Discard()
		e.park(req, lineID)
		return &rendered, model.ErrQueued
	}
	return e.resolve(ctx, req, snap, lineID)
}

// Remove deletes a line. The row disappears immediately and is never
// resurrected: when the server reports the line unknown the local and remote
// states already agree, and for anything else the next refresh restores
// truth. The operator is always told about a failed delete.
func (e *Editor) Remove(ctx context.Context, lineID string) error {
	e.mu.Lock()
	live := e.cart.Line(lineID)
	if live == nil {
		e.mu.Unlock()
		return model.NewNotFoundError("line item")
	}
	e.cart.RemoveLine(lineID)
	e.mu.Unlock()

	e.notifier.RenderRemoval(lineID)
	e.scheduleTotals()

	req, err := api.DeleteRequest(e.cartID, lineID)
	if err != nil {
		return err
	}

	if !e.monitor.Online() {
		e.park(req, lineID)
		return model.ErrQueued
	}

	resp, err := e.coord.Send(ctx, req)
	if err != nil {
		if errors.Is(err, model.ErrSuperseded) || errors.Is(err, context.Canceled) {
			return err
		}
		e.reportIfExhausted(err)
		e.notifyFailure(err)
		return err
	}

	e.applyTotal(resp)
	return nil
}

// Refresh replaces local state with the server's cart and re-renders totals
// immediately. Runs after every offline-queue drain and on demand.
func (e *Editor) Refresh(ctx context.Context) error {
	resp, err := e.coord.Send(ctx, api.FetchRequest(e.cartID))
	if err != nil {
		if errors.Is(err, model.ErrSuperseded) || errors.Is(err, context.Canceled) {
			return err
		}
		e.reportIfExhausted(err)
		e.logger.Warn("cart refresh failed", slog.String("error", err.Error()))
		return err
	}
	if resp.Cart == nil {
		return fmt.Errorf("cart fetch returned no cart body")
	}

	fresh := resp.Cart.ToCart()

	e.mu.Lock()
	fresh.ID = e.cartID
	diff := reconcile.DiffLines(e.cart.Lines, fresh.Lines)
	e.cart = fresh
	e.mu.Unlock()

	for _, line := range diff.Added {
		e.notifier.RenderLine(line)
	}
	for _, line := range diff.Changed {
		e.notifier.RenderLine(line)
	}
	for _, id := range diff.Removed {
		e.notifier.RenderRemoval(id)
	}

	e.sched.Cancel(totalsKey)
	e.publishTotals()
	return nil
}

// === Resolution ===

// resolve awaits the coordinator outcome for one optimistic mutation and
// applies exactly one of the three resolutions: server reconcile on success,
// rollback on terminal failure, nothing when superseded.
func (e *Editor) resolve(ctx context.Context, req api.Request, snap *snapshot, lineID string) (*model.LineItem, error) {
	resp, err := e.coord.Send(ctx, req)
	if err != nil {
		if errors.Is(err, model.ErrSuperseded) || errors.Is(err, context.Canceled) {
			// A newer mutation owns this row's outcome now.
			e.mu.Lock()
			snap.Discard()
			e.mu.Unlock()
			return nil, err
		}
		e.reportIfExhausted(err)
		e.rollback(snap)
		e.notifyFailure(err)
		return nil, err
	}
	return e.reconcile(resp, snap, lineID), nil
}

// reconcile overwrites the optimistic row with server-confirmed state.
func (e *Editor) reconcile(resp *api.Response, snap *snapshot, lineID string) *model.LineItem {
	e.mu.Lock()
	snap.Discard()

	var rendered *model.LineItem
	if resp.Item != nil {
		confirmed := resp.Item.ToLineItem()
		if live := e.cart.Line(lineID); live != nil {
			*live = confirmed
			cp := confirmed
			rendered = &cp
		}
		// A missing row means a removal won the race; the confirmed state
		// is stale and must not resurrect it.
	}
	if resp.CartTotal != "" {
		e.cart.Total = resp.Total()
	}
	e.mu.Unlock()

	if rendered != nil {
		e.notifier.RenderLine(*rendered)
	}
	e.scheduleTotals()
	return rendered
}

// rollback restores the pre-mutation state from the snapshot.
func (e *Editor) rollback(snap *snapshot) {
	e.mu.Lock()
	restored := snap.Restore(e.cart)
	var rendered *model.LineItem
	removedID := ""
	if restored {
		switch snap.kind {
		case snapCreated:
			removedID = snap.line.ID
		default:
			if live := e.cart.Line(snap.line.ID); live != nil {
				cp := *live
				rendered = &cp
			}
		}
	}
	e.mu.Unlock()

	if rendered != nil {
		e.notifier.RenderLine(*rendered)
	}
	if removedID != "" {
		e.notifier.RenderRemoval(removedID)
	}
	e.scheduleTotals()
}

func (e *Editor) applyTotal(resp *api.Response) {
	if resp == nil || resp.CartTotal == "" {
		e.scheduleTotals()
		return
	}
	e.mu.Lock()
	e.cart.Total = resp.Total()
	e.mu.Unlock()
	e.scheduleTotals()
}

// reportIfExhausted feeds a retry-exhausted outcome back into the
// connectivity monitor when the underlying failure was network-class.
func (e *Editor) reportIfExhausted(err error) {
	var exhausted *model.RetryExhaustedError
	if errors.As(err, &exhausted) && errors.Is(err, model.ErrUpstreamError) {
		e.monitor.SetOnline(false)
	}
}

func (e *Editor) notifyFailure(err error) {
	var exhausted *model.RetryExhaustedError
	if errors.As(err, &exhausted) {
		e.notifier.Notify("error", "RETRY_EXHAUSTED", err.Error())
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		e.notifier.Notify("error", apiErr.Code, apiErr.Message)
		return
	}
	e.notifier.Notify("error", "REQUEST_FAILED", err.Error())
}

// === Offline path ===

// park buffers a mutation for replay and tells the operator.
func (e *Editor) park(req api.Request, lineID string) {
	e.queue.Enqueue(req, lineID)
	e.notifier.Notify("warn", "QUEUED",
		fmt.Sprintf("offline, change queued for replay (%d pending)", e.queue.Len()))
}

// replay drains the offline queue through the coordinator. Replay is strictly
// sequential; a live user edit during the pass supersedes the replayed entry,
// which then lands back at the tail for the next pass.
func (e *Editor) replay() {
	ctx, cancel := context.WithTimeout(context.Background(), replayPassTimeout)
	defer cancel()

	e.queue.ReplayAll(ctx, func(ctx context.Context, m model.PendingMutation) error {
		resp, err := e.coord.Send(ctx, api.Request{
			Path:    m.Endpoint,
			Method:  m.Method,
			Payload: m.Payload,
		})
		if err != nil {
			return err
		}
		e.applyReplay(m, resp)
		return nil
	})
}

// applyReplay folds one confirmed replayed mutation back into local state.
func (e *Editor) applyReplay(m model.PendingMutation, resp *api.Response) {
	e.mu.Lock()
	var rendered *model.LineItem
	if m.LineID != "" {
		if live := e.cart.Line(m.LineID); live != nil {
			if resp.Item != nil {
				*live = resp.Item.ToLineItem()
			} else {
				live.Pending = false
			}
			cp := *live
			rendered = &cp
		}
	}
	if resp.CartTotal != "" {
		e.cart.Total = resp.Total()
	}
	e.mu.Unlock()

	if rendered != nil {
		e.notifier.RenderLine(*rendered)
	}
	e.scheduleTotals()
}

// === Totals ===

func (e *Editor) scheduleTotals() {
	e.sched.Schedule(totalsKey, e.window, e.publishTotals)
}

func (e *Editor) publishTotals() {
	e.mu.Lock()
	totals := aggregate.Recompute(e.cart.Lines)
	total := e.cart.Total
	e.mu.Unlock()
	e.notifier.RenderTotals(totals, total)
}

func (e *Editor) lineCopy(lineID string) *model.LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	if live := e.cart.Line(lineID); live != nil {
		cp := *live
		return &cp
	}
	return nil
}
