// Package types provides common value types used across Vesting.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MaxDecimals is the largest decimal exponent an asset may declare.
const MaxDecimals = 36

// Sentinel errors for amount arithmetic and parsing.
var (
	ErrOverflow       = errors.New("amount: overflow")
	ErrUnderflow      = errors.New("amount: underflow")
	ErrDivisionByZero = errors.New("amount: division by zero")
	ErrInvalidAmount  = errors.New("amount: invalid amount")
	ErrDecimals       = errors.New("amount: decimals out of range")
)

// Amount is a non-negative quantity of an asset expressed in base units
// (the asset's smallest indivisible unit). It is backed by a 256-bit
// unsigned integer so that 18-decimal token quantities never overflow.
//
// All arithmetic is integer-only and checked. Division truncates toward zero.
//
//nolint:recvcheck // Value receivers for arithmetic, pointer receivers for decoding.
type Amount struct {
	v uint256.Int
}

// Zero returns the zero amount.
func Zero() Amount { return Amount{} }

// NewAmount creates an Amount from a uint64 base-unit quantity.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Units returns n whole units of an asset with the given decimals,
// i.e. n * 10^decimals base units. It panics on overflow.
func Units(n uint64, decimals uint8) Amount {
	scale, err := Pow10(decimals)
	if err != nil {
		panic(err.Error())
	}
	a, err := NewAmount(n).Mul(scale)
	if err != nil {
		panic(fmt.Sprintf("amount: units %d at %d decimals: %v", n, decimals, err))
	}
	return a
}

// Pow10 returns 10^exp as an Amount. Exponents above MaxDecimals fail with
// ErrDecimals.
func Pow10(exp uint8) (Amount, error) {
	if exp > MaxDecimals {
		return Amount{}, fmt.Errorf("%w: %d exceeds %d", ErrDecimals, exp, MaxDecimals)
	}
	var a Amount
	a.v.Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp)))
	return a, nil
}

// FromBig converts a big.Int to an Amount.
func FromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: negative value %s", ErrInvalidAmount, b.String())
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, fmt.Errorf("%w: %s", ErrOverflow, b.String())
	}
	return Amount{v: *v}, nil
}

// ParseAmount parses a base-10 integer string of base units.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return a, nil
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseUnits parses a human-readable decimal quantity ("252.36585") into base
// units of an asset with the given decimals. Quantities with more fractional
// digits than the asset supports are rejected rather than rounded.
func ParseUnits(s string, decimals uint8) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: negative value %q", ErrInvalidAmount, s)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return Amount{}, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, s, decimals)
	}
	return FromBig(shifted.BigInt())
}

// MustParseUnits is like ParseUnits but panics on error.
func MustParseUnits(s string, decimals uint8) Amount {
	a, err := ParseUnits(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// ──────────────────────────────────────────────────
// Arithmetic
// ──────────────────────────────────────────────────

// Add returns a + b.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// Sub returns a - b. It fails with ErrUnderflow if b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return out, nil
}

// SaturatingSub returns a - b, or zero if b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	out, err := a.Sub(b)
	if err != nil {
		return Amount{}
	}
	return out
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.MulOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// MulDiv returns floor(a * num / den) using a 512-bit intermediate product,
// so the multiplication itself never overflows.
func (a Amount) MulDiv(num, den Amount) (Amount, error) {
	if den.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var out Amount
	if _, overflow := out.v.MulDivOverflow(&a.v, &num.v, &den.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// Div returns floor(a / b).
func (a Amount) Div(b Amount) (Amount, error) {
	if b.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var out Amount
	out.v.Div(&a.v, &b.v)
	return out, nil
}

// Percent returns floor(a * pct / 100).
func (a Amount) Percent(pct uint64) (Amount, error) {
	return a.MulDiv(NewAmount(pct), NewAmount(100))
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// ──────────────────────────────────────────────────
// Comparison
// ──────────────────────────────────────────────────

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return !a.v.IsZero() }

// Equal returns true if both amounts are equal.
func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }

// LessThan returns true if a < b.
func (a Amount) LessThan(b Amount) bool { return a.v.Lt(&b.v) }

// GreaterThan returns true if a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.v.Gt(&b.v) }

// ──────────────────────────────────────────────────
// Conversion and formatting
// ──────────────────────────────────────────────────

// Big returns the amount as a new big.Int.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// Uint64 returns the amount as a uint64 and whether it fit.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

// Float64 returns an approximate float representation in whole units.
// Only suitable for metrics and display.
func (a Amount) Float64(decimals uint8) float64 {
	f, _ := decimal.NewFromBigInt(a.v.ToBig(), -int32(decimals)).Float64()
	return f
}

// String returns the base-unit amount as a base-10 integer string.
func (a Amount) String() string { return a.v.ToBig().String() }

// Format returns the amount in whole units for an asset with the given
// decimals, without trailing zeros (e.g. "63.0914625").
func (a Amount) Format(decimals uint8) string {
	return decimal.NewFromBigInt(a.v.ToBig(), -int32(decimals)).String()
}

// FormatFixed is like Format but always prints places fractional digits.
func (a Amount) FormatFixed(decimals uint8, places int32) string {
	return decimal.NewFromBigInt(a.v.ToBig(), -int32(decimals)).Truncate(places).StringFixed(places)
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Amount{}
		return nil
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a JSON string to avoid float precision loss.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
		}
		s = n.String()
	}
	return a.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer. Amounts are stored as decimal strings.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: negative value %d", ErrInvalidAmount, v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Amount", src)
	}
}

// Sum adds all amounts together.
func Sum(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}
