// Package reconcile computes the delta between two cart snapshots. Used after
// a refresh to re-render only the rows that actually changed instead of
// repainting the whole cart on every backend round trip.
package reconcile

import (
	"github.com/shopspring/decimal"

	"poscart/internal/model"
)

// LineDiff describes the row-level changes between a local cart snapshot and
// the state fetched from the billing backend.
type LineDiff struct {
	Added   []model.LineItem // Rows present on the backend but not locally
	Removed []string         // Local line IDs no longer present on the backend
	Changed []model.LineItem // Rows present in both with different contents
}

// IsEmpty returns true if the two snapshots describe the same rows.
func (d *LineDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffLines computes the delta from local rows to backend rows.
// Matching is by line ID first, then by barcode as a fallback so that an
// optimistic row carrying a register-generated ID pairs up with the
// backend row it became.
//
// Algorithm:
//  1. Build lookup maps for O(1) access
//  2. For each backend row: matched local row with different content → changed;
//     no matching local row → added
//  3. For each local row: no matching backend row → removed
func DiffLines(local, backend []model.LineItem) *LineDiff {
	diff := &LineDiff{}

	localByID := make(map[string]model.LineItem, len(local))
	localByBarcode := make(map[string]model.LineItem, len(local))
	for _, line := range local {
		localByID[line.ID] = line
		localByBarcode[line.Barcode] = line
	}

	claimed := make(map[string]bool, len(local))

	for _, row := range backend {
		prev, ok := localByID[row.ID]
		if !ok {
			prev, ok = localByBarcode[row.Barcode]
		}
		if !ok {
			diff.Added = append(diff.Added, row)
			continue
		}
		claimed[prev.ID] = true
		if lineChanged(prev, row) {
			diff.Changed = append(diff.Changed, row)
		}
	}

	for _, line := range local {
		if !claimed[line.ID] {
			diff.Removed = append(diff.Removed, line.ID)
		}
	}

	return diff
}

// lineChanged reports whether any field a register display shows differs.
// Decimal fields compare by value, not representation, so "2.0" and "2.00"
// do not count as a change.
func lineChanged(prev, next model.LineItem) bool {
	return prev.ID != next.ID ||
		prev.Name != next.Name ||
		prev.Pending != next.Pending ||
		!decEqual(prev.Quantity, next.Quantity) ||
		!decEqual(prev.UnitPrice, next.UnitPrice) ||
		!decEqual(prev.Amount, next.Amount) ||
		!decEqual(prev.ReferencePrice, next.ReferencePrice)
}

func decEqual(a, b decimal.Decimal) bool {
	return a.Equal(b)
}
