package cart

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"poscart/internal/aggregate"
	"poscart/internal/model"
)

// Notifier is the sink the engine renders through. The billing application
// owns markup and styling; the engine only announces what changed.
// Implementations must be cheap and non-blocking.
type Notifier interface {
	// Notify announces a transient message (validation failure, offline
	// transition, replay progress). Level is "info", "warn" or "error".
	Notify(level, code, message string)

	// RenderLine signals that one row changed and should be redrawn.
	RenderLine(line model.LineItem)

	// RenderRemoval signals that a row disappeared.
	RenderRemoval(lineID string)

	// RenderTotals signals new derived totals and the authoritative cart
	// total to display.
	RenderTotals(totals aggregate.Totals, cartTotal decimal.Decimal)
}

// logNotifier is the default sink: it just logs. Real deployments plug in
// the page-rendering layer instead.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Notify(level, code, message string) {
	switch level {
	case "error":
		n.logger.Error(message, slog.String("code", code))
	case "warn":
		n.logger.Warn(message, slog.String("code", code))
	default:
		n.logger.Info(message, slog.String("code", code))
	}
}

func (n *logNotifier) RenderLine(line model.LineItem) {
	n.logger.Debug("render line",
		slog.String("line_id", line.ID),
		slog.String("amount", model.FormatAmount(line.Amount)),
	)
}

func (n *logNotifier) RenderRemoval(lineID string) {
	n.logger.Debug("render removal", slog.String("line_id", lineID))
}

func (n *logNotifier) RenderTotals(totals aggregate.Totals, cartTotal decimal.Decimal) {
	n.logger.Debug("render totals",
		slog.String("item_count", totals.ItemCount.String()),
		slog.String("subtotal", model.FormatAmount(totals.Subtotal)),
		slog.String("cart_total", model.FormatAmount(cartTotal)),
	)
}
