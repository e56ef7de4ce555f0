package normalize

import (
	"math"
	"testing"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"uppercases", "an16-51", "AN16-51"},
		{"strips punctuation", "123.4567 890!", "1234567890"},
		{"collapses double slash", "AB//CD", "AB/CD"},
		{"keeps hyphen and slash distinct", "AN16/51", "AN16/51"},
		{"empty after cleaning", "???", ""},
		{"empty input", "", ""},
		{"whitespace trimmed", "  sku-99  ", "SKU-99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identifier(tt.input)
			if got != tt.want {
				t.Errorf("Identifier(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIdentifierIdempotent(t *testing.T) {
	inputs := []string{"an16-51", "AB//CD//EF", "A///B", "gtin 1234", "Päckchen-22", "x/y/z"}
	for _, input := range inputs {
		once := Identifier(input)
		twice := Identifier(once)
		if once != twice {
			t.Errorf("Identifier not idempotent for %q: %q -> %q", input, once, twice)
		}
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Acer  Nitro 16", "ACER NITRO 16"},
		{"Panadol (500mg)!", "PANADOL 500MG"},
		{"café au lait", "CAFE AU LAIT"},
		{"", ""},
	}

	for _, tt := range tests {
		got := Text(tt.input)
		if got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestVariantKey(t *testing.T) {
	if got := VariantKey("500 mg"); got != "500MG" {
		t.Errorf("VariantKey(\"500 mg\") = %q, want 500MG", got)
	}
	if VariantKey("Tablet") != VariantKey("tablet") {
		t.Error("VariantKey should be case-insensitive")
	}
}

func TestDiscountPct(t *testing.T) {
	promo := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		regular float64
		promo   *float64
		want    *float64
	}{
		{"half price", 100, promo(50), promo(50)},
		{"rounds to 2dp", 1969, promo(1499), promo(23.87)},
		{"promo above regular", 100, promo(120), nil},
		{"promo equals regular", 100, promo(100), nil},
		{"no promo", 100, nil, nil},
		{"zero regular", 0, promo(10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiscountPct(tt.regular, tt.promo)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("DiscountPct(%v, %v) = %v, want %v", tt.regular, tt.promo, got, tt.want)
			}
			if got != nil && math.Abs(*got-*tt.want) > 0.001 {
				t.Errorf("DiscountPct(%v, %v) = %v, want %v", tt.regular, *tt.promo, *got, *tt.want)
			}
		})
	}
}

func TestTokenSetRatio(t *testing.T) {
	if got := TokenSetRatio("Acer Nitro 16 Gaming", "Acer Nitro 16 Gaming"); got < 0.999 {
		t.Errorf("identical names scored %v, want 1.0", got)
	}

	// Token-spacing variants of the same product name count as equal sets.
	if got := TokenSetRatio("Acer Nitro16 Gaming Laptop", "Acer Nitro 16 Gaming"); got < 0.999 {
		t.Errorf("token-spacing variant scored %v, want 1.0", got)
	}

	if got := TokenSetRatio("Acer Nitro 16", "Whiskas Cat Food"); got > 0.5 {
		t.Errorf("unrelated names scored %v, want low", got)
	}

	a, b := "Panadol Tablets 500mg", "Panadol 500mg Tablets"
	if TokenSetRatio(a, b) != TokenSetRatio(b, a) {
		t.Error("TokenSetRatio should be symmetric")
	}
}

func TestTokenJaccard(t *testing.T) {
	got := TokenJaccard("Acer Nitro16 Gaming Laptop", "Acer Nitro 16 Gaming")
	want := 2.0 / 6.0
	if math.Abs(got-want) > 0.001 {
		t.Errorf("TokenJaccard = %v, want %v", got, want)
	}

	if TokenJaccard("", "anything") != 0 {
		t.Error("empty input should score 0")
	}
}

func TestIsGenericValue(t *testing.T) {
	for _, generic := range []string{"", "unknown", "Generic", "OTHER", "  unknown  "} {
		if !IsGenericValue(generic) {
			t.Errorf("IsGenericValue(%q) = false, want true", generic)
		}
	}
	for _, real := range []string{"Acer", "Panadol", "laptops"} {
		if IsGenericValue(real) {
			t.Errorf("IsGenericValue(%q) = true, want false", real)
		}
	}
}
