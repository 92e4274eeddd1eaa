package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

// DefaultMaxCents caps a single amount at R$ 1.000.000,00.
const DefaultMaxCents int64 = 100_000_000

var hundred = decimal.NewFromInt(100)

// Converter turns decimal reais into cents and back. The zero value uses DefaultMaxCents.
type Converter struct {
	MaxCents int64
}

func NewConverter(maxCents int64) Converter {
	return Converter{MaxCents: maxCents}
}

func (c Converter) max() int64 {
	if c.MaxCents <= 0 {
		return DefaultMaxCents
	}
	return c.MaxCents
}

// ToCents rounds half away from zero to whole cents. Zero is accepted.
func (c Converter) ToCents(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("ToCents: negative amount %s: %w", amount, domain.ErrInvalidAmount)
	}

	cents := amount.Mul(hundred).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(c.max())) {
		return 0, fmt.Errorf("ToCents: %s exceeds maximum: %w", amount, domain.ErrInvalidAmount)
	}
	return cents.IntPart(), nil
}

// ToCentsPositive is ToCents for amounts that must be strictly positive.
func (c Converter) ToCentsPositive(amount decimal.Decimal) (int64, error) {
	cents, err := c.ToCents(amount)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, fmt.Errorf("ToCentsPositive: %w", domain.ErrInvalidAmount)
	}
	return cents, nil
}

// ParseCents parses a decimal string such as "10.50" or "10,50".
func (c Converter) ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("ParseCents: %q: %w", s, domain.ErrInvalidAmount)
	}
	return c.ToCentsPositive(d)
}

func ToCents(amount decimal.Decimal) (int64, error) {
	return Converter{}.ToCents(amount)
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Percent applies pct to cents, rounding half away from zero.
func Percent(cents int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(pct).Round(0).IntPart()
}

// Format renders cents as a two-decimal string.
func Format(cents int64) string {
	return FromCents(cents).StringFixed(2)
}
