package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the fixed number of fractional digits carried by every Decimal.
const Decimals = 18

var (
	scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	// maxSubunits bounds the magnitude of any Decimal. Arithmetic that would
	// leave this range fails instead of wrapping.
	maxSubunits = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 192), big.NewInt(1))
)

var (
	ErrOverflow = errors.New("amount: decimal overflow")
	ErrInvalid  = errors.New("amount: invalid decimal")
)

// Decimal is an exact signed fixed-point number with 18 fractional digits.
// The zero value is usable and equal to zero.
type Decimal struct {
	subunits *big.Int
}

// Zero returns the zero amount.
func Zero() Decimal { return Decimal{} }

// FromSubunits builds a Decimal from raw 10^-18 subunits. The value is copied.
func FromSubunits(v *big.Int) (Decimal, error) {
	if v == nil {
		return Decimal{}, nil
	}
	if new(big.Int).Abs(v).Cmp(maxSubunits) > 0 {
		return Decimal{}, ErrOverflow
	}
	return Decimal{subunits: new(big.Int).Set(v)}, nil
}

// Subunits returns a copy of the raw 10^-18 subunit representation.
func (d Decimal) Subunits() *big.Int {
	if d.subunits == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(d.subunits)
}

func (d Decimal) raw() *big.Int {
	if d.subunits == nil {
		return big.NewInt(0)
	}
	return d.subunits
}

// Parse decodes a decimal string: an optional sign, an integer part and an
// optional fraction of at most 18 digits.
func Parse(s string) (Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Decimal{}, fmt.Errorf("%w: empty string", ErrInvalid)
	}
	neg := false
	switch trimmed[0] {
	case '+':
		trimmed = trimmed[1:]
	case '-':
		neg = true
		trimmed = trimmed[1:]
	}
	intPart := trimmed
	fracPart := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		intPart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return Decimal{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if len(fracPart) > Decimals {
		return Decimal{}, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalid, s, Decimals)
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return Decimal{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	value := new(big.Int)
	if intPart != "" {
		if _, ok := value.SetString(intPart, 10); !ok {
			return Decimal{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
	}
	value.Mul(value, scale)
	if fracPart != "" {
		frac := new(big.Int)
		if _, ok := frac.SetString(fracPart, 10); !ok {
			return Decimal{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		pad := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Decimals-len(fracPart))), nil)
		value.Add(value, frac.Mul(frac, pad))
	}
	if neg {
		value.Neg(value)
	}
	return FromSubunits(value)
}

// MustParse parses s and panics on failure. Intended for tests and constants.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Add returns d+o, failing with ErrOverflow when the sum leaves the
// representable range.
func (d Decimal) Add(o Decimal) (Decimal, error) {
	sum := new(big.Int).Add(d.raw(), o.raw())
	return FromSubunits(sum)
}

// Sub returns d-o, failing with ErrOverflow when the difference leaves the
// representable range.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	diff := new(big.Int).Sub(d.raw(), o.raw())
	return FromSubunits(diff)
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{subunits: new(big.Int).Neg(d.raw())}
}

// Min returns the smaller of d and o.
func (d Decimal) Min(o Decimal) Decimal {
	if d.Cmp(o) <= 0 {
		return d
	}
	return o
}

// Cmp compares d and o: -1 if d < o, 0 if equal, +1 if d > o.
func (d Decimal) Cmp(o Decimal) int { return d.raw().Cmp(o.raw()) }

// Sign reports -1, 0 or +1 depending on the sign of d.
func (d Decimal) Sign() int { return d.raw().Sign() }

// IsZero reports whether d equals zero.
func (d Decimal) IsZero() bool { return d.raw().Sign() == 0 }

// Equal reports whether d and o represent the same value.
func (d Decimal) Equal(o Decimal) bool { return d.Cmp(o) == 0 }

// String renders the canonical decimal form: no exponent, no trailing
// fraction zeros, no superfluous leading zeros.
func (d Decimal) String() string {
	v := d.raw()
	sign := ""
	abs := new(big.Int).Abs(v)
	if v.Sign() < 0 {
		sign = "-"
	}
	quo, rem := new(big.Int).QuoRem(abs, scale, new(big.Int))
	if rem.Sign() == 0 {
		return sign + quo.String()
	}
	frac := fmt.Sprintf("%0*s", Decimals, rem.String())
	frac = strings.TrimRight(frac, "0")
	return sign + quo.String() + "." + frac
}
