package domain

import "testing"

func TestParseCurrency(t *testing.T) {
	for raw, want := range map[string]Currency{
		"WL":   CurrencyWL,
		"wl":   CurrencyWL,
		" dl ": CurrencyDL,
		"BGL":  CurrencyBGL,
	} {
		got, err := ParseCurrency(raw)
		if err != nil || got != want {
			t.Fatalf("ParseCurrency(%q): got %q, %v", raw, got, err)
		}
	}
	if _, err := ParseCurrency("USD"); err == nil {
		t.Fatal("expected error for unknown currency")
	}
	if _, err := ParseCurrency(""); err == nil {
		t.Fatal("expected error for empty currency")
	}
}

func TestCoerceCurrency(t *testing.T) {
	got, coerced := CoerceCurrency("bgl")
	if coerced || got != CurrencyBGL {
		t.Fatalf("expected BGL without coercion, got %q %v", got, coerced)
	}
	got, coerced = CoerceCurrency("GEMS")
	if !coerced || got != CurrencyWL {
		t.Fatalf("unknown currency must coerce to WL, got %q %v", got, coerced)
	}
}

func TestLotStatus(t *testing.T) {
	if LotStatus(3) != LotStatusOpen {
		t.Fatal("positive remainder must be open")
	}
	if LotStatus(0) != LotStatusClosed {
		t.Fatal("zero remainder must be closed")
	}
}
