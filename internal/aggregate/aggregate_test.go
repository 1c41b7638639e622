package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"

	"poscart/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func line(qty, amount string) model.LineItem {
	return model.LineItem{Quantity: dec(qty), Amount: dec(amount)}
}

func TestRecompute(t *testing.T) {
	tests := []struct {
		name      string
		lines     []model.LineItem
		wantCount string
		wantSub   string
	}{
		{"empty set", nil, "0", "0.00"},
		{"single line", []model.LineItem{line("2", "20.00")}, "2", "20.00"},
		{
			"multiple lines",
			[]model.LineItem{line("2", "20.00"), line("1", "5.50"), line("3", "9.99")},
			"6", "35.49",
		},
		{
			"fractional quantities",
			[]model.LineItem{line("1.250", "6.00"), line("0.5", "1.00")},
			"1.75", "7.00",
		},
		{
			"negative quantity contributes zero",
			[]model.LineItem{line("-3", "10.00"), line("2", "20.00")},
			"2", "30.00",
		},
		{
			"negative amount contributes zero",
			[]model.LineItem{line("2", "-20.00"), line("1", "5.00")},
			"3", "5.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recompute(tt.lines)
			if !got.ItemCount.Equal(dec(tt.wantCount)) {
				t.Errorf("ItemCount = %s, want %s", got.ItemCount, tt.wantCount)
			}
			if !got.Subtotal.Equal(dec(tt.wantSub)) {
				t.Errorf("Subtotal = %s, want %s", got.Subtotal, tt.wantSub)
			}
			if model.FormatAmount(got.Subtotal) != model.FormatAmount(dec(tt.wantSub)) {
				t.Errorf("Subtotal display = %s, want %s",
					model.FormatAmount(got.Subtotal), model.FormatAmount(dec(tt.wantSub)))
			}
		})
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	lines := []model.LineItem{line("2", "20.00"), line("1.5", "4.50")}

	first := Recompute(lines)
	second := Recompute(lines)

	if !first.ItemCount.Equal(second.ItemCount) || !first.Subtotal.Equal(second.Subtotal) {
		t.Errorf("Recompute not idempotent: %+v vs %+v", first, second)
	}
}

func TestRecomputeDoesNotMutateInput(t *testing.T) {
	lines := []model.LineItem{line("2", "20.00")}
	Recompute(lines)

	if !lines[0].Quantity.Equal(dec("2")) || !lines[0].Amount.Equal(dec("20.00")) {
		t.Error("Recompute mutated its input")
	}
}
