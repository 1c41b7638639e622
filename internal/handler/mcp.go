// MCP transport handler for the register cart API using the official MCP Go
// SDK. Exposes cart editing operations as MCP tools so agent frontends can
// drive the same engine as the REST transport.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"poscart/internal/cart"
	"poscart/internal/model"
)

// === MCP Tool Input Types ===

// OpenCartInput is the input schema for the open_cart tool.
type OpenCartInput struct {
	// CartID resumes an existing session when set; empty opens a new cart.
	CartID string `json:"cart_id,omitempty" jsonschema:"existing cart session to resume"`
}

// GetCartInput is the input schema for the get_cart tool.
type GetCartInput struct {
	CartID string `json:"cart_id" jsonschema:"cart session ID,required"`
}

// ScanItemInput is the input schema for the scan_item tool.
type ScanItemInput struct {
	CartID   string `json:"cart_id" jsonschema:"cart session ID,required"`
	Barcode  string `json:"barcode" jsonschema:"product barcode,required"`
	Quantity string `json:"quantity,omitempty" jsonschema:"decimal quantity, default 1"`
}

// SetQuantityInput is the input schema for the set_quantity tool.
type SetQuantityInput struct {
	CartID   string `json:"cart_id" jsonschema:"cart session ID,required"`
	LineID   string `json:"line_id" jsonschema:"line item ID,required"`
	Quantity string `json:"quantity" jsonschema:"decimal quantity, must be positive,required"`
}

// SetPriceInput is the input schema for the set_price tool.
type SetPriceInput struct {
	CartID    string `json:"cart_id" jsonschema:"cart session ID,required"`
	LineID    string `json:"line_id" jsonschema:"line item ID,required"`
	UnitPrice string `json:"unit_price" jsonschema:"decimal unit price override,required"`
}

// RemoveLineInput is the input schema for the remove_line tool.
type RemoveLineInput struct {
	CartID string `json:"cart_id" jsonschema:"cart session ID,required"`
	LineID string `json:"line_id" jsonschema:"line item ID,required"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "poscart",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Point-of-sale cart editing. Open a cart, scan items by " +
				"barcode, adjust quantities and prices, remove lines. Mutations " +
				"return queued=true when the register is offline; the change " +
				"replays automatically once connectivity returns.",
		},
	)

	// decimal.Decimal marshals to a JSON string, but schema inference would
	// see its struct fields and infer "object". Map it explicitly so the
	// generated output schemas match the serialized form.
	schemaOpts := &jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[decimal.Decimal](): {Type: "string"},
		},
	}
	cartViewSchema, err := jsonschema.For[cartView](schemaOpts)
	if err != nil {
		panic(fmt.Sprintf("deriving cart view schema: %v", err))
	}
	lineResultSchema, err := jsonschema.For[lineResult](schemaOpts)
	if err != nil {
		panic(fmt.Sprintf("deriving line result schema: %v", err))
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         "open_cart",
		Description:  "Open a new cart session, or resume an existing one by ID.",
		OutputSchema: cartViewSchema,
	}, h.mcpOpenCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:         "get_cart",
		Description:  "Get the current cart state with derived totals and offline queue depth.",
		OutputSchema: cartViewSchema,
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:         "scan_item",
		Description:  "Add an item to the cart by barcode. Quantity defaults to 1 and may be fractional for weighed goods.",
		OutputSchema: lineResultSchema,
	}, h.mcpScanItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:         "set_quantity",
		Description:  "Change the quantity of a cart line. The row updates immediately and reconciles with the billing backend.",
		OutputSchema: lineResultSchema,
	}, h.mcpSetQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:         "set_price",
		Description:  "Override the unit price of a cart line. The discount against the catalog price is derived automatically.",
		OutputSchema: lineResultSchema,
	}, h.mcpSetPrice)

	mcp.AddTool(server, &mcp.Tool{
		Name:         "remove_line",
		Description:  "Remove a line from the cart.",
		OutputSchema: lineResultSchema,
	}, h.mcpRemoveLine)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpOpenCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input OpenCartInput,
) (*mcp.CallToolResult, *cartView, error) {
	var e *cart.Editor
	if input.CartID != "" {
		e = h.sessions.GetOrOpen(input.CartID)
	} else {
		e = h.sessions.Open()
	}
	view := h.cartView(e)
	return nil, &view, nil
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, *cartView, error) {
	e, err := h.mcpEditor(input.CartID)
	if err != nil {
		return nil, nil, err
	}
	view := h.cartView(e)
	return nil, &view, nil
}

func (h *Handler) mcpScanItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ScanItemInput,
) (*mcp.CallToolResult, *lineResult, error) {
	e, err := h.mcpEditor(input.CartID)
	if err != nil {
		return nil, nil, err
	}

	qty := decimal.NewFromInt(1)
	if input.Quantity != "" {
		qty, err = decimal.NewFromString(input.Quantity)
		if err != nil {
			return nil, nil, fmt.Errorf("quantity is not a decimal number")
		}
	}

	line, err := e.Scan(ctx, input.Barcode, qty)
	return h.mcpLineResult(line, err)
}

func (h *Handler) mcpSetQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SetQuantityInput,
) (*mcp.CallToolResult, *lineResult, error) {
	e, err := h.mcpEditor(input.CartID)
	if err != nil {
		return nil, nil, err
	}

	qty, err := decimal.NewFromString(input.Quantity)
	if err != nil {
		return nil, nil, fmt.Errorf("quantity is not a decimal number")
	}

	line, err := e.SetQuantity(ctx, input.LineID, qty)
	return h.mcpLineResult(line, err)
}

func (h *Handler) mcpSetPrice(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SetPriceInput,
) (*mcp.CallToolResult, *lineResult, error) {
	e, err := h.mcpEditor(input.CartID)
	if err != nil {
		return nil, nil, err
	}

	price, err := decimal.NewFromString(input.UnitPrice)
	if err != nil {
		return nil, nil, fmt.Errorf("unit_price is not a decimal number")
	}

	line, err := e.SetPrice(ctx, input.LineID, price)
	return h.mcpLineResult(line, err)
}

func (h *Handler) mcpRemoveLine(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveLineInput,
) (*mcp.CallToolResult, *lineResult, error) {
	e, err := h.mcpEditor(input.CartID)
	if err != nil {
		return nil, nil, err
	}

	err = e.Remove(ctx, input.LineID)
	return h.mcpLineResult(nil, err)
}

// mcpEditor resolves a live session, failing the tool call when none exists.
func (h *Handler) mcpEditor(cartID string) (*cart.Editor, error) {
	if cartID == "" {
		return nil, fmt.Errorf("cart_id is required")
	}
	e := h.sessions.Get(cartID)
	if e == nil {
		return nil, fmt.Errorf("NOT_FOUND: cart session %s not found", cartID)
	}
	return e, nil
}

// mcpLineResult maps a mutation outcome to a tool result. Queued mutations
// succeed with queued=true, mirroring the REST 202 semantics.
func (h *Handler) mcpLineResult(line *model.LineItem, err error) (*mcp.CallToolResult, *lineResult, error) {
	if errors.Is(err, model.ErrQueued) {
		return nil, &lineResult{Line: line, Queued: true}, nil
	}
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &lineResult{Line: line}, nil
}

// mcpError converts engine errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	var exhausted *model.RetryExhaustedError
	if errors.As(err, &exhausted) {
		return fmt.Errorf("RETRY_EXHAUSTED: %s", exhausted.Error())
	}
	if errors.Is(err, model.ErrSuperseded) {
		return fmt.Errorf("SUPERSEDED: a newer mutation replaced this request")
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
