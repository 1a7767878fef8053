package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
	"github.com/iurnickita/moneybirdsync/internal/service/taxrate"
)

type staticRates []moneybirdclient.TaxRate

func (rates staticRates) TaxRates(context.Context) ([]moneybirdclient.TaxRate, error) {
	return rates, nil
}

var dutchRates = staticRates{
	{ID: "r21", Percentage: decimal.NewFromInt(21)},
	{ID: "r9", Percentage: decimal.NewFromInt(9)},
	{ID: "r0", Percentage: decimal.Zero},
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder() model.Order {
	return model.Order{
		ID:        77,
		Currency:  "EUR",
		CreatedAt: time.Date(2024, 1, 10, 15, 4, 5, 0, time.UTC),
		EditURL:   "https://shop.example/wp-admin/post.php?post=77&action=edit",
		Items: []model.LineItem{
			{Name: "Mug", Quantity: 3, Total: dec("30.00"), Tax: dec("6.30")},
			{Name: "Book", Quantity: 1, Total: dec("19.99"), Tax: dec("1.80")},
		},
		Shipping: model.Shipping{Method: "PostNL", Total: dec("4.95"), Tax: dec("1.04")},
		Fees: []model.Fee{
			{Name: "Gift wrap", Total: dec("2.50"), Tax: dec("0.53")},
		},
	}
}

func TestBuild(t *testing.T) {
	payload, err := NewBuilder("42", taxrate.NewResolver(dutchRates)).Build(context.Background(), testOrder(), "555")
	require.NoError(t, err)

	require.Equal(t, "555", payload.ContactID)
	require.Equal(t, "WC-77", payload.Reference)
	require.Equal(t, "2024-01-10", payload.Date)
	require.Equal(t, "2024-02-09", payload.DueDate)
	require.Equal(t, "EUR", payload.Currency)
	require.Equal(t, "WooCommerce", payload.Source)
	require.Equal(t, "https://shop.example/wp-admin/post.php?post=77&action=edit", payload.SourceURL)

	// 2 товара + доставка + 1 сбор
	require.Equal(t, []moneybirdclient.InvoiceDetail{
		{Description: "Mug", Price: "10.00", Amount: "3", TaxRateID: "r21", LedgerAccountID: "42"},
		{Description: "Book", Price: "19.99", Amount: "1", TaxRateID: "r9", LedgerAccountID: "42"},
		{Description: "Shipping: PostNL", Price: "4.95", Amount: "1", TaxRateID: "r21", LedgerAccountID: "42"},
		{Description: "Gift wrap", Price: "2.50", Amount: "1", TaxRateID: "r21", LedgerAccountID: "42"},
	}, payload.DetailsAttributes)
}

func TestBuildNoShippingLine(t *testing.T) {
	order := testOrder()
	order.Shipping = model.Shipping{Method: "Pickup", Total: decimal.Zero}
	order.Fees = nil

	payload, err := NewBuilder("42", taxrate.NewResolver(dutchRates)).Build(context.Background(), order, "555")
	require.NoError(t, err)
	require.Len(t, payload.DetailsAttributes, 2)
}

func TestBuildZeroQuantity(t *testing.T) {
	order := testOrder()
	order.Items = []model.LineItem{{Name: "Sample", Quantity: 0, Total: dec("0"), Tax: dec("0")}}
	order.Shipping = model.Shipping{}
	order.Fees = nil

	payload, err := NewBuilder("42", taxrate.NewResolver(dutchRates)).Build(context.Background(), order, "555")
	require.NoError(t, err)
	require.Equal(t, "0.00", payload.DetailsAttributes[0].Price)
	require.Equal(t, "0", payload.DetailsAttributes[0].Amount)
	require.Equal(t, "r0", payload.DetailsAttributes[0].TaxRateID)
}

func TestBuildUnitPriceRounding(t *testing.T) {
	order := testOrder()
	order.Items = []model.LineItem{{Name: "Pen", Quantity: 3, Total: dec("10.00"), Tax: dec("2.10")}}

	payload, err := NewBuilder("42", taxrate.NewResolver(dutchRates)).Build(context.Background(), order, "555")
	require.NoError(t, err)
	require.Equal(t, "3.33", payload.DetailsAttributes[0].Price)
}

func TestBuildTaxRateFailureAborts(t *testing.T) {
	order := testOrder()
	// 15% не существует
	order.Fees = []model.Fee{{Name: "Handling", Total: dec("10.00"), Tax: dec("1.50")}}

	_, err := NewBuilder("42", taxrate.NewResolver(dutchRates)).Build(context.Background(), order, "555")
	var noMatch *taxrate.NoMatchingRateError
	require.ErrorAs(t, err, &noMatch)
	require.True(t, noMatch.Percentage.Equal(dec("15")))
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1234.50", FormatAmount(dec("1234.5")))
	require.Equal(t, "0.00", FormatAmount(decimal.Zero))
	require.Equal(t, "0.01", FormatAmount(dec("0.005")))
}
