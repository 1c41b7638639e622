package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLineItemRecompute(t *testing.T) {
	tests := []struct {
		name         string
		qty          string
		price        string
		reference    string
		wantAmount   string
		wantDiscount string
	}{
		{"whole quantities", "5", "10.00", "0", "50.00", "0"},
		{"fractional quantity", "1.250", "4.80", "0", "6.00", "0"},
		{"rounding half up", "3", "0.335", "0", "1.01", "0"},
		{"discount from reference", "2", "8.75", "10.00", "17.50", "12.5"},
		{"price above reference", "1", "12.00", "10.00", "12.00", "0"},
		{"price equals reference", "1", "10.00", "10.00", "10.00", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			li := LineItem{
				Quantity:       dec(tt.qty),
				UnitPrice:      dec(tt.price),
				ReferencePrice: dec(tt.reference),
			}
			li.Recompute()

			if !li.Amount.Equal(dec(tt.wantAmount)) {
				t.Errorf("Amount = %s, want %s", li.Amount, tt.wantAmount)
			}
			if !li.DiscountPct.Equal(dec(tt.wantDiscount)) {
				t.Errorf("DiscountPct = %s, want %s", li.DiscountPct, tt.wantDiscount)
			}
		})
	}
}

func TestDiscountPercent_Rounding(t *testing.T) {
	// 1/3 off → 33.333...% → 33.33%
	got := DiscountPercent(dec("2.00"), dec("3.00"))
	if !got.Equal(dec("33.33")) {
		t.Errorf("DiscountPercent = %s, want 33.33", got)
	}
}

func TestCartLineLookup(t *testing.T) {
	cart := &Cart{
		ID: "cart-1",
		Lines: []LineItem{
			{ID: "l1", Barcode: "111"},
			{ID: "l2", Barcode: "222"},
		},
	}

	if li := cart.Line("l2"); li == nil || li.Barcode != "222" {
		t.Errorf("Line(l2) = %v, want barcode 222", li)
	}
	if li := cart.Line("missing"); li != nil {
		t.Errorf("Line(missing) = %v, want nil", li)
	}
	if li := cart.LineByBarcode("111"); li == nil || li.ID != "l1" {
		t.Errorf("LineByBarcode(111) = %v, want l1", li)
	}
}

func TestCartLine_ReturnsMutablePointer(t *testing.T) {
	// Callers edit rows in place; Line must point into the backing slice.
	cart := &Cart{Lines: []LineItem{{ID: "l1", Quantity: dec("1")}}}

	cart.Line("l1").Quantity = dec("4")

	if !cart.Lines[0].Quantity.Equal(dec("4")) {
		t.Errorf("Quantity = %s, want 4", cart.Lines[0].Quantity)
	}
}

func TestCartRemoveLine(t *testing.T) {
	cart := &Cart{
		Lines: []LineItem{{ID: "l1"}, {ID: "l2"}, {ID: "l3"}},
	}

	if !cart.RemoveLine("l2") {
		t.Fatal("RemoveLine(l2) = false, want true")
	}
	if len(cart.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(cart.Lines))
	}
	// Order preserved
	if cart.Lines[0].ID != "l1" || cart.Lines[1].ID != "l3" {
		t.Errorf("Lines = [%s %s], want [l1 l3]", cart.Lines[0].ID, cart.Lines[1].ID)
	}

	if cart.RemoveLine("l2") {
		t.Error("RemoveLine(l2) second call = true, want false")
	}
}
