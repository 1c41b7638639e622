// Package api implements the client for the remote billing API.
// The server owns cart truth; every mutating endpoint returns the confirmed
// line state and the new cart-level total in its response body.
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"poscart/internal/model"
)

// Request describes one billing API call. This is the unit the coordinator
// retries and the offline queue replays, so it must be self-contained.
type Request struct {
	Path    string          `json:"path"`   // e.g. "/api/carts/c1/items"
	Method  string          `json:"method"` // GET, POST, PUT, DELETE
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope every billing endpoint returns.
// Status is the application-level outcome: a 200 with Status "error" is a
// well-formed rejection (e.g. insufficient stock) and must not be retried.
type Response struct {
	Status    string     `json:"status"` // "success" or "error"
	Code      string     `json:"code,omitempty"`
	Message   string     `json:"message,omitempty"`
	Item      *ItemState `json:"item,omitempty"`
	Cart      *CartState `json:"cart,omitempty"`
	CartTotal string     `json:"cart_total,omitempty"` // decimal string, 2dp
}

// Ok reports whether the response carries an application-level success.
func (r *Response) Ok() bool {
	return r.Status == "success"
}

// Total parses the cart-level total. Zero when the server omitted it.
func (r *Response) Total() decimal.Decimal {
	return model.ParseAmount(r.CartTotal)
}

// ItemState is the server-confirmed state of one line item.
// All numeric fields travel as decimal strings.
type ItemState struct {
	ID             string `json:"id"`
	Barcode        string `json:"barcode"`
	Name           string `json:"name,omitempty"`
	Quantity       string `json:"quantity"`
	UnitPrice      string `json:"unit_price"`
	Amount         string `json:"amount"`
	ReferencePrice string `json:"reference_price,omitempty"`
	DiscountPct    string `json:"discount_pct,omitempty"`
	Stock          string `json:"stock,omitempty"` // remaining-stock hint
}

// ToLineItem converts confirmed wire state into the local model.
func (s *ItemState) ToLineItem() model.LineItem {
	li := model.LineItem{
		ID:             s.ID,
		Barcode:        s.Barcode,
		Name:           s.Name,
		Quantity:       model.ParseAmount(s.Quantity),
		UnitPrice:      model.ParseAmount(s.UnitPrice),
		Amount:         model.ParseAmount(s.Amount),
		ReferencePrice: model.ParseAmount(s.ReferencePrice),
		DiscountPct:    model.ParseAmount(s.DiscountPct),
		StockHint:      model.ParseAmount(s.Stock),
	}
	// Servers older than 1.2 omit the derived amount on item responses.
	if li.Amount.IsZero() && !li.Quantity.IsZero() {
		li.Amount = li.Quantity.Mul(li.UnitPrice).Round(2)
	}
	return li
}

// CartState is the full cart as returned by GET.
type CartState struct {
	ID    string      `json:"id"`
	Total string      `json:"total"`
	Lines []ItemState `json:"lines"`
}

// ToCart converts the wire cart into the local model.
func (s *CartState) ToCart() *model.Cart {
	cart := &model.Cart{
		ID:    s.ID,
		Total: model.ParseAmount(s.Total),
		Lines: make([]model.LineItem, len(s.Lines)),
	}
	for i := range s.Lines {
		cart.Lines[i] = s.Lines[i].ToLineItem()
	}
	return cart
}

// === Mutation payloads ===

// ScanPayload adds an item by barcode.
type ScanPayload struct {
	Barcode  string `json:"barcode"`
	Quantity string `json:"quantity"`
}

// UpdatePayload changes quantity and/or unit price of a line.
// Empty fields are left unchanged by the server.
type UpdatePayload struct {
	Quantity  string `json:"quantity,omitempty"`
	UnitPrice string `json:"unit_price,omitempty"`
}

// ErrorBody is the body billing endpoints return alongside non-2xx statuses.
type ErrorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
