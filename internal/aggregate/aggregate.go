// Package aggregate derives display totals from the current line-item set.
// Recompute is pure and idempotent: it reads only its argument and is safe to
// call redundantly, however many network calls are in flight.
package aggregate

import (
	"github.com/shopspring/decimal"

	"poscart/internal/model"
)

// Totals are the two derived numbers the billing UI shows above the cart.
type Totals struct {
	// ItemCount is the summed quantity across lines (fractional quantities
	// from weighed goods included).
	ItemCount decimal.Decimal `json:"item_count"`

	// Subtotal is the summed line amount, rounded to 2 decimals.
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Recompute derives totals from the given lines.
// Defensive against bad rows: a non-positive quantity or negative amount
// contributes zero, so corrupted input can never push NaN-like garbage or
// negative drift into the displayed totals.
func Recompute(lines []model.LineItem) Totals {
	count := decimal.Zero
	subtotal := decimal.Zero

	for i := range lines {
		q := lines[i].Quantity
		if q.Sign() > 0 {
			count = count.Add(q)
		}
		a := lines[i].Amount
		if a.Sign() > 0 {
			subtotal = subtotal.Add(a)
		}
	}

	return Totals{
		ItemCount: count,
		Subtotal:  subtotal.Round(2),
	}
}
