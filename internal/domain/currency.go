// Package domain defines core data structures used throughout the exchange wallet.
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is a supported currency code. The set is closed: codes are
// validated at the boundary and never looked up by case-juggled strings.
type Currency string

const (
	TON  Currency = "TON"
	USDT Currency = "USDT"
)

// Scale is the number of decimal places kept for every balance and amount.
const Scale = 4

var supportedCurrencies = map[Currency]struct{}{
	TON:  {},
	USDT: {},
}

// String returns the currency code.
func (c Currency) String() string { return string(c) }

// Valid reports whether the currency is in the supported set.
func (c Currency) Valid() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

// ParseCurrency validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := supportedCurrencies[c]; !ok {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// SupportedCurrencies returns the closed currency set.
func SupportedCurrencies() []Currency {
	return []Currency{TON, USDT}
}

// Pair currency pair.
type Pair struct {
	// From base currency symbol.
	From Currency
	// To quote currency symbol.
	To Currency
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// Inverted returns the pair with sides swapped.
func (p Pair) Inverted() Pair {
	return Pair{From: p.To, To: p.From}
}

// Amount bounds accepted for any single operation.
var (
	MinAmount = decimal.RequireFromString("0.0001")
	MaxAmount = decimal.NewFromInt(1_000_000)
)
