// Package model defines data structures shared by the cart engine and the
// billing API client.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// === Cart ===

// Cart is the locally rendered view of one billing cart.
// The server remains the source of truth: Total is only ever written from a
// confirmed server response, while Lines may carry optimistic values that a
// response has not confirmed yet.
type Cart struct {
	ID    string          `json:"id"`
	Lines []LineItem      `json:"lines"`
	Total decimal.Decimal `json:"total"` // server-authoritative, 2dp
}

// Line returns a pointer to the line with the given ID, or nil.
func (c *Cart) Line(id string) *LineItem {
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			return &c.Lines[i]
		}
	}
	return nil
}

// LineByBarcode returns a pointer to the first line matching the barcode, or nil.
func (c *Cart) LineByBarcode(barcode string) *LineItem {
	for i := range c.Lines {
		if c.Lines[i].Barcode == barcode {
			return &c.Lines[i]
		}
	}
	return nil
}

// RemoveLine deletes the line with the given ID preserving order.
// Returns false if no such line exists.
func (c *Cart) RemoveLine(id string) bool {
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// === Line Items ===

// LineItem is one product row in the cart.
// Amount and DiscountPct are derived locally on every optimistic edit and
// overwritten with server-confirmed values once a mutation resolves.
type LineItem struct {
	ID        string          `json:"id"`
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`   // > 0, fractional for weighed goods
	UnitPrice decimal.Decimal `json:"unit_price"` // >= 0
	Amount    decimal.Decimal `json:"amount"`     // quantity × unit price, 2dp

	// ReferencePrice is the catalog selling price the discount is computed
	// against. Zero means no reference and therefore no discount display.
	ReferencePrice decimal.Decimal `json:"reference_price,omitempty"`
	DiscountPct    decimal.Decimal `json:"discount_pct,omitempty"` // 2dp

	// StockHint is informational remaining stock supplied by the server.
	StockHint decimal.Decimal `json:"stock_hint,omitempty"`

	// Pending marks a line whose latest edit is queued offline and has not
	// been confirmed by the server.
	Pending bool `json:"pending,omitempty"`
}

// Recompute refreshes the derived Amount and DiscountPct from the current
// quantity, unit price and reference price. Called synchronously after every
// optimistic edit so the row renders with zero latency.
func (li *LineItem) Recompute() {
	li.Amount = li.Quantity.Mul(li.UnitPrice).Round(2)
	li.DiscountPct = DiscountPercent(li.UnitPrice, li.ReferencePrice)
}

// DiscountPercent derives the discount percentage of price against the
// reference selling price, rounded to 2 decimals. A missing (zero) reference
// or a price at or above the reference yields zero.
func DiscountPercent(price, reference decimal.Decimal) decimal.Decimal {
	if reference.Sign() <= 0 || price.GreaterThanOrEqual(reference) {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	return reference.Sub(price).Div(reference).Mul(hundred).Round(2)
}

// === Pending Mutations ===

// PendingMutation is one mutating request parked in the offline queue.
// Created when a mutation cannot be sent due to connectivity loss, destroyed
// when its replay succeeds.
type PendingMutation struct {
	ID         string          `json:"id"`
	Endpoint   string          `json:"endpoint"`
	Method     string          `json:"method"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	// LineID ties the mutation back to the optimistic row so the editor can
	// clear its Pending marker after a successful replay.
	LineID string `json:"line_id,omitempty"`
}
