package domain

import (
	"fmt"
	"strings"
)

// Currency is an in-game denomination. There is no conversion between
// denominations anywhere in the ledger: costs and revenues are summed
// per their stored unit.
type Currency string

const (
	CurrencyWL  Currency = "WL"
	CurrencyDL  Currency = "DL"
	CurrencyBGL Currency = "BGL"
)

// ParseCurrency validates a currency string strictly. API paths use
// this; bulk import uses CoerceCurrency instead.
func ParseCurrency(raw string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(raw))) {
	case CurrencyWL:
		return CurrencyWL, nil
	case CurrencyDL:
		return CurrencyDL, nil
	case CurrencyBGL:
		return CurrencyBGL, nil
	default:
		return "", fmt.Errorf("unknown currency unit %q", raw)
	}
}

// CoerceCurrency maps anything outside the known denominations to WL.
// The bool reports whether coercion happened so callers can surface it.
func CoerceCurrency(raw string) (Currency, bool) {
	cur, err := ParseCurrency(raw)
	if err != nil {
		return CurrencyWL, true
	}
	return cur, false
}
