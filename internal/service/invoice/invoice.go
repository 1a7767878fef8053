package invoice

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
	"github.com/iurnickita/moneybirdsync/internal/service/taxrate"
)

const (
	ReferencePrefix = "WC-"
	Source          = "WooCommerce"
	PaymentTermDays = 30

	dateLayout = "2006-01-02"
)

type Builder interface {
	Build(ctx context.Context, order model.Order, contactID string) (moneybirdclient.ExternalSalesInvoice, error)
}

type builder struct {
	ledgerAccountID string
	taxRates        taxrate.Resolver
}

func NewBuilder(ledgerAccountID string, taxRates taxrate.Resolver) Builder {
	return &builder{ledgerAccountID: ledgerAccountID, taxRates: taxRates}
}

func Reference(orderID int64) string {
	return ReferencePrefix + strconv.FormatInt(orderID, 10)
}

// Build собирает внешний счет по заказу.
// Строка без подходящей ставки НДС - ошибка всего счета
func (builder *builder) Build(ctx context.Context, order model.Order, contactID string) (moneybirdclient.ExternalSalesInvoice, error) {
	details := make([]moneybirdclient.InvoiceDetail, 0, len(order.Items)+1+len(order.Fees))

	for _, item := range order.Items {
		price := decimal.Zero
		if item.Quantity != 0 {
			price = item.Total.Div(decimal.NewFromInt(int64(item.Quantity)))
		}
		detail, err := builder.line(ctx, item.Name, price, strconv.Itoa(item.Quantity), item.Total, item.Tax)
		if err != nil {
			return moneybirdclient.ExternalSalesInvoice{}, fmt.Errorf("line item %q: %w", item.Name, err)
		}
		details = append(details, detail)
	}

	if order.Shipping.Total.IsPositive() {
		detail, err := builder.line(ctx, "Shipping: "+order.Shipping.Method, order.Shipping.Total, "1", order.Shipping.Total, order.Shipping.Tax)
		if err != nil {
			return moneybirdclient.ExternalSalesInvoice{}, fmt.Errorf("shipping: %w", err)
		}
		details = append(details, detail)
	}

	for _, fee := range order.Fees {
		detail, err := builder.line(ctx, fee.Name, fee.Total, "1", fee.Total, fee.Tax)
		if err != nil {
			return moneybirdclient.ExternalSalesInvoice{}, fmt.Errorf("fee %q: %w", fee.Name, err)
		}
		details = append(details, detail)
	}

	return moneybirdclient.ExternalSalesInvoice{
		ContactID:         contactID,
		Reference:         Reference(order.ID),
		Date:              order.CreatedAt.Format(dateLayout),
		DueDate:           order.CreatedAt.AddDate(0, 0, PaymentTermDays).Format(dateLayout),
		Currency:          order.Currency,
		Source:            Source,
		SourceURL:         order.EditURL,
		DetailsAttributes: details,
	}, nil
}

func (builder *builder) line(ctx context.Context, description string, price decimal.Decimal, amount string, total decimal.Decimal, tax decimal.Decimal) (moneybirdclient.InvoiceDetail, error) {
	taxRateID, err := builder.taxRates.Resolve(ctx, total, tax)
	if err != nil {
		return moneybirdclient.InvoiceDetail{}, err
	}
	return moneybirdclient.InvoiceDetail{
		Description:     description,
		Price:           FormatAmount(price),
		Amount:          amount,
		TaxRateID:       taxRateID,
		LedgerAccountID: builder.ledgerAccountID,
	}, nil
}

// FormatAmount: ровно два знака, точка как разделитель
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
