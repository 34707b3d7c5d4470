// Package tokens provides scale-tagged token amounts.
//
// Every Amount carries the decimal scale of the ledger it belongs to. Mixing
// scales in arithmetic is a programming error and panics; the only way to move
// between scales is ToNewScale, which truncates.
package tokens

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places of a ledger's base unit.
type Scale int32

const (
	// ScaleOld is the precision of the OLD asset.
	ScaleOld Scale = 12

	// ScaleNew is the precision of the NEW asset.
	ScaleNew Scale = 8
)

func (s Scale) String() string {
	switch s {
	case ScaleOld:
		return "old"
	case ScaleNew:
		return "new"
	default:
		return fmt.Sprintf("scale(%d)", int32(s))
	}
}

// Amount is a non-negative integer number of base units at a fixed scale.
// The zero value is an untagged zero; use Zero(scale) for a tagged one.
type Amount struct {
	units decimal.Decimal
	scale Scale
}

// Zero returns a zero amount at scale.
func Zero(scale Scale) Amount {
	return Amount{units: decimal.Zero, scale: scale}
}

// Units returns n base units at scale.
func Units(scale Scale, n uint64) Amount {
	return Amount{units: fromUint64(n), scale: scale}
}

// Old returns n OLD base units.
func Old(n uint64) Amount { return Units(ScaleOld, n) }

// New returns n NEW base units.
func New(n uint64) Amount { return Units(ScaleNew, n) }

// Parse reads a decimal string of base units.
func Parse(scale Scale, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("invalid amount %q: not a whole number of base units", s)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("invalid amount %q: negative", s)
	}
	return Amount{units: d, scale: scale}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(scale Scale, s string) Amount {
	a, err := Parse(scale, s)
	if err != nil {
		panic(err)
	}
	return a
}

// Scale returns the amount's scale.
func (a Amount) Scale() Scale { return a.scale }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.units.IsZero() }

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a.units.IsPositive() }

// Cmp compares a and b: -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	a.mustMatch(b)
	return a.units.Cmp(b.units)
}

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// GreaterThanOrEqual reports a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.Cmp(b) >= 0 }

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	a.mustMatch(b)
	return Amount{units: a.units.Add(b.units), scale: a.scaleOf(b)}
}

// SubSaturating returns max(a-b, 0) and the shortfall max(b-a, 0).
// Exactly one of the two results is non-zero unless a == b.
func (a Amount) SubSaturating(b Amount) (diff, shortfall Amount) {
	a.mustMatch(b)
	scale := a.scaleOf(b)
	if a.units.GreaterThanOrEqual(b.units) {
		return Amount{units: a.units.Sub(b.units), scale: scale}, Zero(scale)
	}
	return Zero(scale), Amount{units: b.units.Sub(a.units), scale: scale}
}

// Sub returns a - b, or false if the result would be negative.
func (a Amount) Sub(b Amount) (Amount, bool) {
	diff, shortfall := a.SubSaturating(b)
	return diff, shortfall.IsZero()
}

// ToNewScale converts an OLD amount to NEW units: floor(a / factor).
func (a Amount) ToNewScale(factor uint64) Amount {
	if a.scale != ScaleOld {
		panic(fmt.Sprintf("tokens: ToNewScale on %s amount", a.scale))
	}
	if factor == 0 {
		panic("tokens: zero scale factor")
	}
	q, _ := a.units.QuoRem(fromUint64(factor), 0)
	return Amount{units: q, scale: ScaleNew}
}

// WithScale re-tags an untagged amount. Tagged amounts keep their scale.
func (a Amount) WithScale(scale Scale) Amount {
	if a.scale != 0 && a.scale != scale {
		panic(fmt.Sprintf("tokens: cannot re-tag %s amount as %s", a.scale, scale))
	}
	return Amount{units: a.units, scale: scale}
}

// String returns the number of base units in decimal.
func (a Amount) String() string {
	return a.units.String()
}

// MarshalJSON encodes the units as a JSON string to survive float decoders.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a string or a bare integer. The scale is left
// untagged; callers re-tag with WithScale.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	parsed, err := Parse(a.scale, s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(a.scale, string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) mustMatch(b Amount) {
	if a.scale != 0 && b.scale != 0 && a.scale != b.scale {
		panic(fmt.Sprintf("tokens: mixing %s and %s amounts", a.scale, b.scale))
	}
}

// scaleOf picks the tagged scale when one side is an untagged zero value.
func (a Amount) scaleOf(b Amount) Scale {
	if a.scale != 0 {
		return a.scale
	}
	return b.scale
}

func fromUint64(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}
