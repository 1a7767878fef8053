package wooclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/service/config"
)

const (
	apiPath        = "/wp-json/wc/v3"
	requestTimeout = 30 * time.Second
	// date_created приходит в часовом поясе магазина без смещения
	dateLayout = "2006-01-02T15:04:05"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrUnavailable: запрос не дошел до магазина или ответ не получен
	ErrUnavailable = errors.New("woocommerce is unreachable")
)

// JSON заказа WooCommerce REST v3

type orderJSON struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	DateCreated   string          `json:"date_created"`
	Billing       billingJSON     `json:"billing"`
	LineItems     []lineItemJSON  `json:"line_items"`
	ShippingTotal decimal.Decimal `json:"shipping_total"`
	ShippingTax   decimal.Decimal `json:"shipping_tax"`
	ShippingLines []shippingJSON  `json:"shipping_lines"`
	FeeLines      []feeJSON       `json:"fee_lines"`
}

type billingJSON struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type lineItemJSON struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
	TotalTax decimal.Decimal `json:"total_tax"`
}

type shippingJSON struct {
	MethodTitle string `json:"method_title"`
}

type feeJSON struct {
	Name     string          `json:"name"`
	Total    decimal.Decimal `json:"total"`
	TotalTax decimal.Decimal `json:"total_tax"`
}

type noteJSON struct {
	Note         string `json:"note"`
	CustomerNote bool   `json:"customer_note"`
}

// WooClient читает заказы магазина и пишет в них служебные заметки
type WooClient interface {
	GetOrder(ctx context.Context, orderID int64) (model.Order, error)
	AddNote(ctx context.Context, orderID int64, note string) error
}

type wooClient struct {
	rc      *resty.Client
	baseURL string
}

func NewWooClient(cfg config.Config) WooClient {
	baseURL := strings.TrimRight(cfg.WooURL, "/")
	rc := resty.New().
		SetBaseURL(baseURL+apiPath).
		SetTimeout(requestTimeout).
		SetBasicAuth(cfg.WooConsumerKey, cfg.WooConsumerSecret).
		SetHeader("Accept", "application/json")

	return &wooClient{rc: rc, baseURL: baseURL}
}

func (client *wooClient) GetOrder(ctx context.Context, orderID int64) (model.Order, error) {
	resp, err := client.rc.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(orderID, 10)).
		Get("/orders/{id}")
	if err != nil {
		return model.Order{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var raw orderJSON
		if err = json.Unmarshal(resp.Body(), &raw); err != nil {
			return model.Order{}, err
		}
		return client.toModel(raw)
	case http.StatusNotFound:
		return model.Order{}, ErrOrderNotFound
	default:
		return model.Order{}, fmt.Errorf("woocommerce request status: %d", resp.StatusCode())
	}
}

func (client *wooClient) AddNote(ctx context.Context, orderID int64, note string) error {
	resp, err := client.rc.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(orderID, 10)).
		SetHeader("Content-Type", "application/json").
		SetBody(noteJSON{Note: note}).
		Post("/orders/{id}/notes")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusNotFound:
		return ErrOrderNotFound
	default:
		return fmt.Errorf("woocommerce request status: %d", resp.StatusCode())
	}
}

// EditURL - ссылка на заказ в админке магазина
func (client *wooClient) EditURL(orderID int64) string {
	return client.baseURL + "/wp-admin/post.php?post=" + strconv.FormatInt(orderID, 10) + "&action=edit"
}

func (client *wooClient) toModel(raw orderJSON) (model.Order, error) {
	order := model.Order{
		ID:         raw.ID,
		CustomerID: raw.CustomerID,
		Status:     raw.Status,
		Currency:   raw.Currency,
		EditURL:    client.EditURL(raw.ID),
		Billing: model.Billing{
			FirstName: raw.Billing.FirstName,
			LastName:  raw.Billing.LastName,
			Company:   raw.Billing.Company,
			Address1:  raw.Billing.Address1,
			Address2:  raw.Billing.Address2,
			Postcode:  raw.Billing.Postcode,
			City:      raw.Billing.City,
			Country:   raw.Billing.Country,
			Email:     raw.Billing.Email,
			Phone:     raw.Billing.Phone,
		},
		Shipping: model.Shipping{
			Total: raw.ShippingTotal,
			Tax:   raw.ShippingTax,
		},
	}

	if raw.DateCreated != "" {
		created, err := time.ParseInLocation(dateLayout, raw.DateCreated, time.UTC)
		if err != nil {
			return model.Order{}, fmt.Errorf("order %d date_created: %w", raw.ID, err)
		}
		order.CreatedAt = created
	}

	for _, item := range raw.LineItems {
		order.Items = append(order.Items, model.LineItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Total:    item.Total,
			Tax:      item.TotalTax,
		})
	}

	methods := make([]string, 0, len(raw.ShippingLines))
	for _, line := range raw.ShippingLines {
		methods = append(methods, line.MethodTitle)
	}
	order.Shipping.Method = strings.Join(methods, ", ")

	for _, fee := range raw.FeeLines {
		order.Fees = append(order.Fees, model.Fee{
			Name:  fee.Name,
			Total: fee.Total,
			Tax:   fee.TotalTax,
		})
	}

	return order, nil
}
