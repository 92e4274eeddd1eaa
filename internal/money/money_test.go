package money

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    int64
		wantErr error
	}{
		{name: "whole reais", amount: "100", want: 10000},
		{name: "two decimals", amount: "10.55", want: 1055},
		{name: "half rounds up", amount: "0.005", want: 1},
		{name: "below half rounds down", amount: "0.004", want: 0},
		{name: "half on odd cent rounds away", amount: "1.015", want: 102},
		{name: "half on even cent rounds away", amount: "1.025", want: 103},
		{name: "zero", amount: "0", want: 0},
		{name: "at maximum", amount: "1000000", want: DefaultMaxCents},
		{name: "above maximum", amount: "1000000.01", wantErr: domain.ErrInvalidAmount},
		{name: "negative", amount: "-1", wantErr: domain.ErrInvalidAmount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToCents(decimal.RequireFromString(tc.amount))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToCentsPositive_RejectsZero(t *testing.T) {
	_, err := Converter{}.ToCentsPositive(decimal.RequireFromString("0.004"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestConverter_CustomMaximum(t *testing.T) {
	c := NewConverter(5000)

	got, err := c.ToCents(decimal.RequireFromString("50"))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got)

	_, err = c.ToCents(decimal.RequireFromString("50.01"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestParseCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "dot separator", input: "10.50", want: 1050},
		{name: "comma separator", input: "10,50", want: 1050},
		{name: "surrounding spaces", input: " 7 ", want: 700},
		{name: "garbage", input: "ten", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "zero", input: "0.00", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Converter{}.ParseCents(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromCents_RoundTrip(t *testing.T) {
	fixed := []string{"0", "0.01", "0.1", "1", "99.99", "123456.78", "1000000"}
	for _, s := range fixed {
		x := decimal.RequireFromString(s)
		cents, err := ToCents(x)
		require.NoError(t, err)
		assert.True(t, FromCents(cents).Equal(x), "round trip of %s gave %s", s, FromCents(cents))
	}

	r := rand.New(rand.NewPCG(42, 7))
	for range 1000 {
		want := r.Int64N(DefaultMaxCents + 1)
		x := decimal.New(want, -2)
		cents, err := ToCents(x)
		require.NoError(t, err)
		assert.Equal(t, want, cents)
		assert.True(t, FromCents(cents).Equal(x))
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		pct   string
		want  int64
	}{
		{name: "ten percent of 100 reais", cents: 10000, pct: "0.10", want: 1000},
		{name: "rounds half away from zero", cents: 15, pct: "0.10", want: 2},
		{name: "rounds down below half", cents: 14, pct: "0.10", want: 1},
		{name: "zero percent", cents: 10000, pct: "0", want: 0},
		{name: "full percent", cents: 12345, pct: "1", want: 12345},
		{name: "fractional percent", cents: 999, pct: "0.025", want: 25},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Percent(tc.cents, decimal.RequireFromString(tc.pct)))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100.00", Format(10000))
	assert.Equal(t, "0.05", Format(5))
}
