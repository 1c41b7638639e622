// Package handler provides HTTP handlers for the register cart API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"poscart/internal/cart"
	"poscart/internal/connectivity"
	"poscart/internal/model"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions *cart.Sessions
	monitor  *connectivity.Monitor
	logger   *slog.Logger
}

// New creates a new Handler with the given session registry, connectivity
// monitor, and logger.
func New(sessions *cart.Sessions, monitor *connectivity.Monitor, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		monitor:  monitor,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// REST transport - cart editing operations
	mux.HandleFunc("POST /carts", h.handleOpenCart)
	mux.HandleFunc("GET /carts/{id}", h.handleGetCart)
	mux.HandleFunc("DELETE /carts/{id}", h.handleCloseCart)
	mux.HandleFunc("POST /carts/{id}/scan", h.handleScan)
	mux.HandleFunc("POST /carts/{id}/refresh", h.handleRefresh)
	mux.HandleFunc("PUT /carts/{id}/lines/{line}", h.handleUpdateLine)
	mux.HandleFunc("DELETE /carts/{id}/lines/{line}", h.handleRemoveLine)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": h.monitor.Online(),
	})
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, mapping engine outcomes to HTTP:
// superseded → 409, retry exhaustion → 503, APIError → its status code,
// anything else → 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, code, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}
	h.writeJSON(w, status, errorResponse{
		Error: errorBody{Code: code, Message: message},
	})
}

func errorStatus(err error) (int, string, string) {
	if errors.Is(err, model.ErrSuperseded) {
		return http.StatusConflict, "SUPERSEDED", "a newer mutation replaced this request"
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusConflict, "CANCELLED", "request cancelled"
	}

	var exhausted *model.RetryExhaustedError
	if errors.As(err, &exhausted) {
		return http.StatusServiceUnavailable, "RETRY_EXHAUSTED", exhausted.Error()
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, apiErr.Code, apiErr.Message
	}

	return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
