package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"poscart/internal/model"
	"poscart/internal/transport"
)

// apiBasePath is the base path for billing cart endpoints.
const apiBasePath = "/api/v1"

// versionHeader carries the server's API version on every response.
const versionHeader = "Billing-Api-Version"

// MinServerVersion is the oldest billing API this client understands.
// Responses advertising an older version fail fast instead of producing
// silently wrong cart state.
const MinServerVersion = "1.1.0"

// Config holds billing API client configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	RegisterID string

	// Timeout bounds each HTTP exchange. Zero means 30s.
	Timeout time.Duration

	// PlainTransport disables the Chrome TLS fingerprint. Hosted billing
	// backends sit behind CDNs that JA3-fingerprint clients; self-hosted
	// deployments don't need the masquerade.
	PlainTransport bool
}

// Client talks to the remote billing API. Safe for concurrent use.
// It performs no retries and owns no in-flight bookkeeping: resilience policy
// belongs to the coordinator layer above it.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientHeader string
}

// New creates a billing API client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.RegisterID == "" {
		return nil, fmt.Errorf("register ID is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	hc := &http.Client{Timeout: timeout}
	if !cfg.PlainTransport {
		hc.Transport = transport.NewChromeTransport(timeout)
	}

	header, err := BuildClientHeader(cfg.RegisterID, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("building client header: %w", err)
	}

	return &Client{
		httpClient:   hc,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		clientHeader: header,
	}, nil
}

// === Endpoint builders ===
// The coordinator and offline queue work on Request values, so path
// construction lives here in one place.

// ScanRequest builds the add-item-by-barcode mutation.
func ScanRequest(cartID string, barcode string, qty decimal.Decimal) (Request, error) {
	return marshalRequest(
		fmt.Sprintf("/carts/%s/items", cartID),
		http.MethodPost,
		ScanPayload{Barcode: barcode, Quantity: qty.String()},
	)
}

// UpdateRequest builds the quantity/price mutation for one line.
// Pass nil for a field that should stay unchanged.
func UpdateRequest(cartID, lineID string, qty, price *decimal.Decimal) (Request, error) {
	var p UpdatePayload
	if qty != nil {
		p.Quantity = qty.String()
	}
	if price != nil {
		p.UnitPrice = price.String()
	}
	return marshalRequest(
		fmt.Sprintf("/carts/%s/items/%s", cartID, lineID),
		http.MethodPut,
		p,
	)
}

// DeleteRequest builds the line removal mutation.
func DeleteRequest(cartID, lineID string) (Request, error) {
	return Request{
		Path:   fmt.Sprintf("/carts/%s/items/%s", cartID, lineID),
		Method: http.MethodDelete,
	}, nil
}

// FetchRequest builds the full cart read.
func FetchRequest(cartID string) Request {
	return Request{
		Path:   fmt.Sprintf("/carts/%s", cartID),
		Method: http.MethodGet,
	}
}

func marshalRequest(path, method string, payload any) (Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("marshaling payload: %w", err)
	}
	return Request{Path: path, Method: method, Payload: body}, nil
}

// === Execution ===

// Do executes one billing API request and parses the response envelope.
// Outcomes:
//   - transport failure → *model.APIError wrapping ErrUpstreamError (retryable class)
//   - non-2xx status → classified *model.APIError (see classifyStatus)
//   - 2xx with status "error" → rejection, terminal
//   - 2xx with status "success" → parsed Response
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var bodyReader io.Reader
	if len(req.Payload) > 0 {
		bodyReader = bytes.NewReader(req.Payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+apiBasePath+req.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Cancellation must stay visible to the coordinator, which maps it
		// to supersede semantics. Everything else is an upstream failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, model.NewUpstreamError("billing", err)
	}
	defer resp.Body.Close()

	if err := checkServerVersion(resp.Header.Get(versionHeader)); err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewUpstreamError("billing", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	var envelope Response
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, model.NewUpstreamError("billing", fmt.Errorf("parsing response: %w", err))
	}

	if !envelope.Ok() {
		// Well-formed rejection: the server understood the request and said
		// no. Retrying cannot succeed.
		return nil, model.NewRejectionError(envelope.Code, envelope.Message)
	}

	return &envelope, nil
}

// Ping probes the billing health endpoint. Used by the connectivity monitor.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiBasePath+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("billing", err)
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return model.NewUpstreamError("billing",
			fmt.Errorf("health check failed with status %d", resp.StatusCode))
	}
	return nil
}

// userAgent identifies this client to upstream servers.
// Required: hosted billing CDN/WAF rate-limits requests without User-Agent.
const userAgent = "poscart/1.0"

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(ClientHeaderName, c.clientHeader)
}

// classifyStatus converts a billing error response to an APIError.
// 4xx statuses are terminal; 429 and 5xx belong to the retryable class.
func classifyStatus(statusCode int, body []byte) error {
	var errBody ErrorBody
	json.Unmarshal(body, &errBody) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError("line item")
	case 401, 403:
		return model.NewUnauthorizedError("billing authentication failed")
	case 400:
		msg := errBody.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case 409, 422:
		return model.NewRejectionError(errBody.Code, errBody.Message)
	case 429:
		return model.NewRateLimitError("billing")
	default:
		return model.NewUpstreamError("billing",
			fmt.Errorf("status %d: %s - %s", statusCode, errBody.Code, errBody.Message))
	}
}
