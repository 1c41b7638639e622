package model

import "github.com/shopspring/decimal"

// ParseAmount converts decimal string amounts from the billing API into
// decimal values. The API ships all money and quantity fields as strings
// (e.g. "99.00", "1.250") to avoid float drift in transit.
// Handles edge cases: empty strings, missing decimals, malformed values.
// Examples: "99.00" → 99.00, "1234.5" → 1234.5, "" → 0
func ParseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders a monetary value the way the billing UI displays it:
// fixed two decimal places, standard rounding.
// Examples: 99 → "99.00", 12.345 → "12.35"
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
