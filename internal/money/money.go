// Package money defines the currency set the platform supports and the
// arithmetic helpers for amounts expressed as integers in each currency's
// minor unit. Ledger arithmetic never leaves big.Int; decimal conversion
// happens only at the serialization boundary.
package money

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Currency is one of the closed set of currencies the platform supports.
type Currency string

const (
	USD  Currency = "USD"
	EUR  Currency = "EUR"
	USDC Currency = "USDC"
	USDT Currency = "USDT"
)

// Currencies lists every supported currency in a stable order.
var Currencies = []Currency{USD, EUR, USDC, USDT}

type currencyConfig struct {
	decimals int32
	symbol   string
	fiat     bool
}

var configs = map[Currency]currencyConfig{
	USD:  {decimals: 2, symbol: "$", fiat: true},
	EUR:  {decimals: 2, symbol: "€", fiat: true},
	USDC: {decimals: 6, symbol: "USDC"},
	USDT: {decimals: 6, symbol: "USDT"},
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	_, ok := configs[c]
	return ok
}

// Decimals returns the number of minor-unit decimal places for c
// (2 for fiat, 6 for the stablecoins).
func (c Currency) Decimals() int32 {
	return configs[c].decimals
}

// ToMinorUnits converts a major-unit decimal string (e.g. "97.50") into
// minor units. The value must not carry more fractional digits than the
// currency supports.
func ToMinorUnits(major string, c Currency) (*big.Int, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unsupported currency %q", c)
	}
	d, err := decimal.NewFromString(major)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", major, err)
	}
	shifted := d.Shift(c.Decimals())
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", major, c.Decimals())
	}
	return shifted.BigInt(), nil
}

// FromMinorUnits renders minor units as a major-unit decimal string with
// the currency's full precision, e.g. 9750 USD -> "97.50".
func FromMinorUnits(minor *big.Int, c Currency) string {
	d := decimal.NewFromBigInt(minor, -c.Decimals())
	return d.StringFixed(c.Decimals())
}

// Format renders minor units the way the dashboard displays them:
// symbol-prefixed for fiat, symbol-suffixed for stablecoins.
func Format(minor *big.Int, c Currency) string {
	cfg := configs[c]
	s := FromMinorUnits(minor, c)
	if cfg.fiat {
		return cfg.symbol + s
	}
	return s + " " + cfg.symbol
}

// ParseMinorUnits parses a minor-unit integer string ("10000") as used on
// the API wire. Sign is accepted so balances round-trip.
func ParseMinorUnits(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	return n, nil
}

// CalculateFee returns amount * feePercent / 100, truncated toward zero.
// feePercent is scaled by 100 internally so fractional percentages like
// 2.5 stay in integer math: 2.5% of 10000 -> 250.
func CalculateFee(amount *big.Int, feePercent float64) *big.Int {
	feeNumerator := big.NewInt(int64(feePercent*100 + 0.5))
	fee := new(big.Int).Mul(amount, feeNumerator)
	return fee.Div(fee, big.NewInt(10000))
}

// SplitAmount divides amount into the merchant's share and the platform
// fee. merchantShare + fee == amount always holds, regardless of rounding.
func SplitAmount(amount *big.Int, feePercent float64) (merchantShare, fee *big.Int) {
	fee = CalculateFee(amount, feePercent)
	merchantShare = new(big.Int).Sub(amount, fee)
	return merchantShare, fee
}
