package api

import "testing"

func TestClientHeaderRoundTrip(t *testing.T) {
	header, err := BuildClientHeader("r-42", "secret-key")
	if err != nil {
		t.Fatalf("BuildClientHeader: %v", err)
	}

	register, err := ParseClientHeader(header)
	if err != nil {
		t.Fatalf("ParseClientHeader(%q): %v", header, err)
	}
	if register != "r-42" {
		t.Errorf("register = %q, want r-42", register)
	}
}

func TestBuildClientHeaderRequiresRegister(t *testing.T) {
	if _, err := BuildClientHeader("", "key"); err == nil {
		t.Error("BuildClientHeader with empty register = nil error, want error")
	}
}

func TestParseClientHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", `register="r-1";key="k";agent="poscart/1.0"`, "r-1", false},
		{"register only", `register="r-9"`, "r-9", false},
		{"params ignored", `register="r-1";v=2`, "r-1", false},
		{"empty", "", "", true},
		{"whitespace", "   ", "", true},
		{"missing register", `agent="poscart/1.0"`, "", true},
		{"malformed", `register=`, "", true},
		{"register not a string", `register=7`, "", true},
		{"register is inner list", `register=("a" "b")`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClientHeader(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseClientHeader(%q) = %q, want error", tt.header, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClientHeader(%q): %v", tt.header, err)
			}
			if got != tt.want {
				t.Errorf("register = %q, want %q", got, tt.want)
			}
		})
	}
}
