package common

import (
	"errors"
	"testing"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		input     string
		want      string
		wantKind  SymbolKind
		wantCode  string
		tadawul   bool
		wantError error
	}{
		{"2222.SR", "2222.SR", SymbolEquity, "2222", true, nil},
		{" 2222.sr ", "2222.SR", SymbolEquity, "2222", true, nil},
		{"1120", "1120.SR", SymbolEquity, "1120", true, nil},
		{"^tasi.sr", "^TASI.SR", SymbolIndex, "TASI", true, nil},
		{"BZ=F", "BZ=F", SymbolCommodity, "BZ", false, nil},
		{"sar=x", "SAR=X", SymbolCurrency, "SAR", false, nil},
		{"", "", "", "", false, ErrEmptySymbol},
		{"   ", "", "", "", false, ErrEmptySymbol},
		{"22;22.SR", "", "", "", false, ErrInvalidSymbol},
		{"../etc/passwd", "", "", "", false, ErrInvalidSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSymbol(tt.input)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("ParseSymbol(%q) error = %v, want %v", tt.input, err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSymbol(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("String() = %q, want %q", got.String(), tt.want)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.IsTadawul() != tt.tadawul {
				t.Errorf("IsTadawul() = %v, want %v", got.IsTadawul(), tt.tadawul)
			}
		})
	}
}

func TestSymbolProviderForms(t *testing.T) {
	s := MustParseSymbol("2222.SR")
	if got := s.WithSuffix(".SAU"); got != "2222.SAU" {
		t.Errorf("WithSuffix = %q", got)
	}
	if got := s.ExchangeCode("TADAWUL"); got != "2222:TADAWUL" {
		t.Errorf("ExchangeCode = %q", got)
	}
	if s.IsMacro() {
		t.Error("equity must not be macro")
	}
	if !MustParseSymbol("^TASI.SR").IsMacro() {
		t.Error("index must be macro")
	}
}

func TestParseSymbols(t *testing.T) {
	got, err := ParseSymbols("2222.SR, 1120.sr,,2222.SR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].String() != "2222.SR" || got[1].String() != "1120.SR" {
		t.Errorf("ParseSymbols = %v", got)
	}

	if _, err := ParseSymbols("2222.SR,bad symbol"); !errors.Is(err, ErrInvalidSymbol) {
		t.Errorf("expected ErrInvalidSymbol, got %v", err)
	}
}
