package taxrate

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
)

type fakeRates struct {
	rates []moneybirdclient.TaxRate
	err   error
	calls int
}

func (f *fakeRates) TaxRates(_ context.Context) ([]moneybirdclient.TaxRate, error) {
	f.calls++
	return f.rates, f.err
}

func rate(id string, percentage string) moneybirdclient.TaxRate {
	return moneybirdclient.TaxRate{ID: id, Percentage: decimal.RequireFromString(percentage)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		tax      string
		want     string
	}{
		{name: "21", subtotal: "100.00", tax: "21.00", want: "21"},
		{name: "zero_subtotal", subtotal: "0", tax: "5.00", want: "0"},
		{name: "zero_tax", subtotal: "100.00", tax: "0", want: "0"},
		{name: "rounded", subtotal: "12.40", tax: "2.60", want: "20.97"},
		{name: "nine", subtotal: "3.30", tax: "0.30", want: "9.09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentage(dec(tt.subtotal), dec(tt.tax))
			require.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
}

func TestResolveExactRate(t *testing.T) {
	source := &fakeRates{rates: []moneybirdclient.TaxRate{rate("9", "21.0")}}
	r := NewResolver(source)

	id, err := r.Resolve(context.Background(), dec("100.00"), dec("21.00"))
	require.NoError(t, err)
	require.Equal(t, "9", id)
}

func TestResolveWithinTolerance(t *testing.T) {
	source := &fakeRates{rates: []moneybirdclient.TaxRate{rate("low", "9"), rate("high", "21")}}
	r := NewResolver(source)

	// 20.97% -> 21%
	id, err := r.Resolve(context.Background(), dec("12.40"), dec("2.60"))
	require.NoError(t, err)
	require.Equal(t, "high", id)

	// 9.09% -> 9%
	id, err = r.Resolve(context.Background(), dec("3.30"), dec("0.30"))
	require.NoError(t, err)
	require.Equal(t, "low", id)

	// 20.75% вне допуска
	_, err = r.Resolve(context.Background(), dec("100.00"), dec("20.75"))
	var noMatch *NoMatchingRateError
	require.ErrorAs(t, err, &noMatch)
	require.True(t, noMatch.Percentage.Equal(dec("20.75")))
}

func TestResolveFirstMatchWins(t *testing.T) {
	source := &fakeRates{rates: []moneybirdclient.TaxRate{
		rate("a", "21.1"),
		rate("b", "21.0"),
	}}
	r := NewResolver(source)

	id, err := r.Resolve(context.Background(), dec("100"), dec("21"))
	require.NoError(t, err)
	require.Equal(t, "a", id)
}

func TestResolveNoZeroRate(t *testing.T) {
	source := &fakeRates{rates: []moneybirdclient.TaxRate{rate("9", "21.0")}}
	r := NewResolver(source)

	_, err := r.Resolve(context.Background(), dec("100.00"), dec("0.00"))
	var noMatch *NoMatchingRateError
	require.ErrorAs(t, err, &noMatch)
	require.True(t, noMatch.Percentage.IsZero())
	require.Contains(t, err.Error(), "0.00%")
}

func TestResolveFetchesRatesOnce(t *testing.T) {
	source := &fakeRates{rates: []moneybirdclient.TaxRate{rate("0", "0"), rate("21", "21")}}
	r := NewResolver(source)

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), dec("10"), dec("2.10"))
		require.NoError(t, err)
	}
	_, err := r.Resolve(context.Background(), dec("0"), dec("0"))
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	// новый resolver - новый запрос
	_, err = NewResolver(source).Resolve(context.Background(), dec("10"), dec("2.10"))
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestResolveFetchFailure(t *testing.T) {
	apiErr := &moneybirdclient.APIError{StatusCode: 401, Message: "Invalid token"}
	source := &fakeRates{err: apiErr}
	r := NewResolver(source)

	_, err := r.Resolve(context.Background(), dec("100"), dec("21"))
	require.ErrorIs(t, err, ErrRatesUnavailable)

	var gotAPIErr *moneybirdclient.APIError
	require.True(t, errors.As(err, &gotAPIErr))
	require.Equal(t, 401, gotAPIErr.StatusCode)
}
