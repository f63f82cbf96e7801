package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored amount carries.
const Scale int32 = 2

// Amount is a monetary value quantized to two decimal places.
// The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

var Zero = Amount{}

// Quantize rounds d to two decimal places, half away from zero.
// For non-negative inputs this is round-half-up.
func Quantize(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Scale)}
}

// Parse reads a decimal string and quantizes it.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Quantize(d), nil
}

// MustParse is Parse for constants and fixtures.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

// Add and Sub are exact on quantized operands, so the result needs no rounding.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

func (a Amount) Equal(b Amount) bool       { return a.d.Equal(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) IsNegative() bool          { return a.d.IsNegative() }
func (a Amount) IsZero() bool              { return a.d.IsZero() }

// String always renders two fractional digits, e.g. "12022.50".
func (a Amount) String() string { return a.d.StringFixed(Scale) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare numbers. Values that carry more
// than two fractional digits are rejected rather than silently re-rounded.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	if !d.Equal(d.Round(Scale)) {
		return fmt.Errorf("amount %s has more than %d decimal places", d.String(), Scale)
	}
	a.d = d.Round(Scale)
	return nil
}

// Scan reads a NUMERIC column. Stored values are already quantized, so
// anything with a larger scale indicates corruption and is reported.
func (a *Amount) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	if !d.Equal(d.Round(Scale)) {
		return fmt.Errorf("stored amount %s is not quantized to %d places", d.String(), Scale)
	}
	a.d = d.Round(Scale)
	return nil
}

func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Sum adds quantized amounts exactly.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
