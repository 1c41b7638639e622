package model

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"99.00", "99"},
		{"1234.56", "1234.56"},
		{"0.1", "0.1"},
		{"1.250", "1.25"},
		{"", "0"},
		{"not-a-number", "0"},
		{"-5.00", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAmount(tt.input)
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"99", "99.00"},
		{"12.345", "12.35"},
		{"12.344", "12.34"},
		{"0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := FormatAmount(dec(tt.input))
			if got != tt.want {
				t.Errorf("FormatAmount(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
