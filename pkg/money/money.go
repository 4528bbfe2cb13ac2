// Package money holds fixed-point helpers for amounts stored as integer minor units.
//
// Amounts never pass through floating point: API input is parsed with shopspring/decimal,
// checked against the currency's minor-unit exponent and kept as int64 from then on.
package money

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityScale is the fixed-point scale of quantities (thousandths of a unit).
const QuantityScale = 1000

const quantityExponent = 3

var (
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrNegativeAmount  = errors.New("negative_amount")
	ErrTooPrecise      = errors.New("too_precise")
	ErrOverflow        = errors.New("amount_overflow")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)

// minorUnits lists currencies whose exponent differs from the default of 2.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// NormalizeCurrency upper-cases and validates a three letter currency code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}

// Exponent returns the number of minor-unit digits of currency.
func Exponent(currency string) int32 {
	if exp, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ToMinor converts a non-negative decimal major-unit amount into minor units.
func ToMinor(currency string, amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	exp := Exponent(currency)
	scaled := amount.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrOverflow
	}
	return scaled.IntPart(), nil
}

// Parse reads a decimal string such as "12.50" into minor units of currency.
func Parse(currency, value string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return ToMinor(currency, d)
}

// FromMinor returns minor as a major-unit decimal.
func FromMinor(currency string, minor int64) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Format renders minor units with exactly the currency's number of fraction digits.
func Format(currency string, minor int64) string {
	return FromMinor(currency, minor).StringFixed(Exponent(currency))
}

// ToQuantity converts a non-negative decimal quantity into thousandths.
func ToQuantity(q decimal.Decimal) (int64, error) {
	if q.IsNegative() {
		return 0, ErrInvalidQuantity
	}
	scaled := q.Shift(quantityExponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrOverflow
	}
	return scaled.IntPart(), nil
}

// FormatQuantity renders a thousandths quantity without trailing zeros.
func FormatQuantity(milli int64) string {
	return decimal.New(milli, -quantityExponent).String()
}

// LineAmount computes unitPrice*quantity + fee in minor units. quantity is in
// thousandths; the product is rounded half-up to a whole minor unit.
func LineAmount(unitPrice, quantity, fee int64) (int64, error) {
	if unitPrice < 0 || quantity < 0 || fee < 0 {
		return 0, ErrNegativeAmount
	}
	if unitPrice != 0 && quantity > math.MaxInt64/unitPrice {
		return 0, ErrOverflow
	}
	product := unitPrice * quantity
	line := product / QuantityScale
	if product%QuantityScale >= QuantityScale/2 {
		line++
	}
	if line > math.MaxInt64-fee {
		return 0, ErrOverflow
	}
	return line + fee, nil
}

// Amount is a minor-unit amount in one currency.
type Amount struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// Totals accumulates amounts per currency. Different currencies are never merged.
type Totals map[string]int64

// Add adds amount to the currency's running total.
func (t Totals) Add(currency string, amount int64) error {
	current := t[currency]
	if amount > 0 && current > math.MaxInt64-amount {
		return ErrOverflow
	}
	t[currency] = current + amount
	return nil
}

// Merge adds every total of other into t.
func (t Totals) Merge(other Totals) error {
	for currency, amount := range other {
		if err := t.Add(currency, amount); err != nil {
			return err
		}
	}
	return nil
}

// Sorted returns the totals ordered by currency code.
func (t Totals) Sorted() []Amount {
	out := make([]Amount, 0, len(t))
	for currency, amount := range t {
		out = append(out, Amount{Currency: currency, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
