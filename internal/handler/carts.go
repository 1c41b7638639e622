package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"poscart/internal/aggregate"
	"poscart/internal/cart"
	"poscart/internal/model"
)

// cartView is the full editor state returned to the page renderer.
type cartView struct {
	Cart       model.Cart       `json:"cart"`
	Totals     aggregate.Totals `json:"totals"`
	QueueDepth int              `json:"queue_depth"`
	Online     bool             `json:"online"`
}

// lineResult is the outcome of one line mutation. Queued is true when the
// change was parked offline and the line state is still optimistic.
type lineResult struct {
	Line   *model.LineItem `json:"line,omitempty"`
	Queued bool            `json:"queued,omitempty"`
}

func (h *Handler) cartView(e *cart.Editor) cartView {
	return cartView{
		Cart:       e.Cart(),
		Totals:     e.Totals(),
		QueueDepth: e.QueueDepth(),
		Online:     h.monitor.Online(),
	}
}

// editorFor resolves the editor for the {id} path segment, or writes 404.
func (h *Handler) editorFor(w http.ResponseWriter, r *http.Request) *cart.Editor {
	e := h.sessions.Get(r.PathValue("id"))
	if e == nil {
		h.writeError(w, model.NewNotFoundError("cart session"))
	}
	return e
}

// handleOpenCart opens a new cart session.
// POST /carts
func (h *Handler) handleOpenCart(w http.ResponseWriter, r *http.Request) {
	e := h.sessions.Open()
	h.logger.InfoContext(r.Context(), "cart opened", slog.String("cart_id", e.CartID()))
	h.writeJSON(w, http.StatusCreated, h.cartView(e))
}

// handleGetCart returns the current editor state.
// GET /carts/{id}
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	e := h.editorFor(w, r)
	if e == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartView(e))
}

// handleCloseCart disposes the cart session.
// DELETE /carts/{id}
func (h *Handler) handleCloseCart(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(r.PathValue("id")) {
		h.writeError(w, model.NewNotFoundError("cart session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scanRequest is the body for the scan endpoint. Quantity defaults to 1.
type scanRequest struct {
	Barcode  string `json:"barcode"`
	Quantity string `json:"quantity,omitempty"`
}

// handleScan adds an item by barcode.
// POST /carts/{id}/scan
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	e := h.editorFor(w, r)
	if e == nil {
		return
	}

	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	qty := decimal.NewFromInt(1)
	if req.Quantity != "" {
		parsed, err := decimal.NewFromString(req.Quantity)
		if err != nil {
			h.writeError(w, model.NewValidationError("quantity", "not a decimal number"))
			return
		}
		qty = parsed
	}

	line, err := e.Scan(r.Context(), req.Barcode, qty)
	h.writeLineResult(w, http.StatusCreated, line, err)
}

// updateLineRequest carries a quantity or unit price change. Exactly one
// field must be set: quantity and price edits are distinct mutations with
// distinct supersede semantics.
type updateLineRequest struct {
	Quantity  string `json:"quantity,omitempty"`
	UnitPrice string `json:"unit_price,omitempty"`
}

// handleUpdateLine changes a line's quantity or unit price.
// PUT /carts/{id}/lines/{line}
func (h *Handler) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	e := h.editorFor(w, r)
	if e == nil {
		return
	}
	lineID := r.PathValue("line")

	var req updateLineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if (req.Quantity == "") == (req.UnitPrice == "") {
		h.writeError(w, model.NewValidationError("body", "exactly one of quantity or unit_price required"))
		return
	}

	var (
		line *model.LineItem
		err  error
	)
	if req.Quantity != "" {
		qty, perr := decimal.NewFromString(req.Quantity)
		if perr != nil {
			h.writeError(w, model.NewValidationError("quantity", "not a decimal number"))
			return
		}
		line, err = e.SetQuantity(r.Context(), lineID, qty)
	} else {
		price, perr := decimal.NewFromString(req.UnitPrice)
		if perr != nil {
			h.writeError(w, model.NewValidationError("unit_price", "not a decimal number"))
			return
		}
		line, err = e.SetPrice(r.Context(), lineID, price)
	}
	h.writeLineResult(w, http.StatusOK, line, err)
}

// handleRemoveLine deletes a line.
// DELETE /carts/{id}/lines/{line}
func (h *Handler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	e := h.editorFor(w, r)
	if e == nil {
		return
	}

	err := e.Remove(r.Context(), r.PathValue("line"))
	if errors.Is(err, model.ErrQueued) {
		h.writeJSON(w, http.StatusAccepted, lineResult{Queued: true})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh re-reads the cart from the billing backend.
// POST /carts/{id}/refresh
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	e := h.editorFor(w, r)
	if e == nil {
		return
	}

	if err := e.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartView(e))
}

// writeLineResult maps a mutation outcome to HTTP: queued mutations are
// accepted rather than failed, since the optimistic state stands.
func (h *Handler) writeLineResult(w http.ResponseWriter, okStatus int, line *model.LineItem, err error) {
	if errors.Is(err, model.ErrQueued) {
		h.writeJSON(w, http.StatusAccepted, lineResult{Line: line, Queued: true})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, okStatus, lineResult{Line: line})
}
