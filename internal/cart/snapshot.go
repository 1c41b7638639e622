package cart

import (
	"github.com/shopspring/decimal"

	"poscart/internal/model"
)

type snapshotKind int

const (
	// snapExisting captures a row that existed before the mutation.
	// Restore copies the saved fields back over the live row.
	snapExisting snapshotKind = iota

	// snapCreated marks a row inserted optimistically by the mutation
	// itself. Restore deletes it.
	snapCreated
)

// snapshot captures the pre-mutation state needed to undo exactly one
// optimistic edit. Each snapshot resolves at most once: whichever of
// Restore or Discard runs first wins, later calls are no-ops. Callers
// hold the editor lock around both.
type snapshot struct {
	kind      snapshotKind
	line      model.LineItem
	cartTotal decimal.Decimal
	used      bool
}

func captureLine(line *model.LineItem, cartTotal decimal.Decimal) *snapshot {
	return &snapshot{kind: snapExisting, line: *line, cartTotal: cartTotal}
}

func captureCreated(lineID string, cartTotal decimal.Decimal) *snapshot {
	return &snapshot{kind: snapCreated, line: model.LineItem{ID: lineID}, cartTotal: cartTotal}
}

// Restore rolls the cart back to the captured state. Returns false if the
// snapshot was already consumed by an earlier resolution.
func (s *snapshot) Restore(c *model.Cart) bool {
	if s.used {
		return false
	}
	s.used = true
	switch s.kind {
	case snapCreated:
		c.RemoveLine(s.line.ID)
	default:
		if live := c.Line(s.line.ID); live != nil {
			*live = s.line
		}
	}
	c.Total = s.cartTotal
	return true
}

// Discard consumes the snapshot without touching the cart. Called when the
// server confirmed the mutation or a newer mutation superseded it.
func (s *snapshot) Discard() {
	s.used = true
}
