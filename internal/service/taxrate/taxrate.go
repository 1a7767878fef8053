package taxrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
)

// Допустимое расхождение ставки в процентных пунктах (округление в магазине)
var Tolerance = decimal.RequireFromString("0.2")

var hundred = decimal.NewFromInt(100)

var ErrRatesUnavailable = errors.New("failed to fetch tax rates from Moneybird")

// NoMatchingRateError: в Moneybird нет ставки для процента строки заказа
type NoMatchingRateError struct {
	Percentage decimal.Decimal
}

func (e *NoMatchingRateError) Error() string {
	return fmt.Sprintf("no matching tax rate found in Moneybird for %s%%; add this tax rate in Moneybird or adjust the WooCommerce tax settings",
		e.Percentage.StringFixed(2))
}

type RateSource interface {
	TaxRates(ctx context.Context) ([]moneybirdclient.TaxRate, error)
}

type Resolver interface {
	Resolve(ctx context.Context, subtotal decimal.Decimal, tax decimal.Decimal) (string, error)
}

// resolver живет одну синхронизацию: список ставок запрашивается не больше одного раза
type resolver struct {
	source RateSource
	rates  []moneybirdclient.TaxRate
	loaded bool
}

func NewResolver(source RateSource) Resolver {
	return &resolver{source: source}
}

// Percentage: tax/subtotal*100 с округлением до сотых, при нулевой сумме 0
func Percentage(subtotal decimal.Decimal, tax decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() {
		return decimal.Zero
	}
	return tax.Div(subtotal).Mul(hundred).Round(2)
}

// Match: первая ставка в пределах Tolerance, порядок списка не меняется
func Match(rates []moneybirdclient.TaxRate, percentage decimal.Decimal) (string, bool) {
	for _, rate := range rates {
		if rate.Percentage.Sub(percentage).Abs().LessThanOrEqual(Tolerance) {
			return rate.ID, true
		}
	}
	return "", false
}

func (r *resolver) Resolve(ctx context.Context, subtotal decimal.Decimal, tax decimal.Decimal) (string, error) {
	percentage := Percentage(subtotal, tax)

	if !r.loaded {
		rates, err := r.source.TaxRates(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrRatesUnavailable, err)
		}
		r.rates = rates
		r.loaded = true
	}

	id, ok := Match(r.rates, percentage)
	if !ok {
		return "", &NoMatchingRateError{Percentage: percentage}
	}
	return id, nil
}
