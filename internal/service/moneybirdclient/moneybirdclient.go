package moneybirdclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/iurnickita/moneybirdsync/internal/service/config"
)

const (
	requestTimeout = 30 * time.Second
	taxRatesFilter = "tax_rate_type:sales_invoice,active:true"
)

type Client interface {
	Get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error)
	Post(ctx context.Context, endpoint string, body any) ([]byte, error)

	Administrations(ctx context.Context) ([]Administration, error)
	VerifyPermissions(ctx context.Context) error
	LedgerAccounts(ctx context.Context) ([]LedgerAccount, error)
	TaxRates(ctx context.Context) ([]TaxRate, error)
	FindContactByEmail(ctx context.Context, email string) (*Contact, error)
	CreateContact(ctx context.Context, contact ContactAttributes) (Contact, error)
	CreateExternalSalesInvoice(ctx context.Context, invoice ExternalSalesInvoice) (Invoice, error)
}

// Factory создает клиента для токена и администрации.
// Клиенты одной фабрики делят пул соединений и лимит запросов
type Factory func(apiToken string, administrationID string) Client

func NewFactory(cfg config.Config) Factory {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.MoneybirdAPIURL, "/")).
		SetTimeout(requestTimeout)

	// Moneybird: 150 запросов за 5 минут
	var limiter *rate.Limiter
	if cfg.MoneybirdRatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MoneybirdRatePerMin)), cfg.MoneybirdRatePerMin)
	}

	return func(apiToken string, administrationID string) Client {
		return &client{
			rc:               rc,
			limiter:          limiter,
			apiToken:         apiToken,
			administrationID: administrationID,
		}
	}
}

type client struct {
	rc               *resty.Client
	limiter          *rate.Limiter
	apiToken         string
	administrationID string
}

func (client *client) Get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	return client.request(ctx, http.MethodGet, endpoint, params, nil)
}

func (client *client) Post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	return client.request(ctx, http.MethodPost, endpoint, nil, body)
}

func (client *client) request(ctx context.Context, method string, endpoint string, params map[string]string, body any) ([]byte, error) {
	if client.apiToken == "" {
		return nil, ErrNoAPIToken
	}

	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	req := client.rc.R().
		SetContext(ctx).
		SetAuthToken(client.apiToken).
		SetHeader("Accept", "application/json")
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body())}
	}
	return resp.Body(), nil
}

// adminPath - путь внутри администрации
func (client *client) adminPath(resource string) (string, error) {
	if client.administrationID == "" {
		return "", ErrNoAdministrationID
	}
	return "/" + client.administrationID + resource, nil
}

func (client *client) getJSON(ctx context.Context, endpoint string, params map[string]string, out any) error {
	body, err := client.Get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (client *client) postJSON(ctx context.Context, endpoint string, in any, out any) error {
	body, err := client.Post(ctx, endpoint, in)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (client *client) Administrations(ctx context.Context) ([]Administration, error) {
	var administrations []Administration
	err := client.getJSON(ctx, "/administrations.json", nil, &administrations)
	return administrations, err
}

// VerifyPermissions проверяет доступ токена к счетам администрации
func (client *client) VerifyPermissions(ctx context.Context) error {
	path, err := client.adminPath("/sales_invoices.json")
	if err != nil {
		return err
	}
	_, err = client.Get(ctx, path, map[string]string{"per_page": "1"})
	return err
}

func (client *client) LedgerAccounts(ctx context.Context) ([]LedgerAccount, error) {
	path, err := client.adminPath("/ledger_accounts.json")
	if err != nil {
		return nil, err
	}
	var accounts []LedgerAccount
	err = client.getJSON(ctx, path, nil, &accounts)
	return accounts, err
}

// TaxRates: активные ставки для счетов, в порядке Moneybird
func (client *client) TaxRates(ctx context.Context) ([]TaxRate, error) {
	path, err := client.adminPath("/tax_rates.json")
	if err != nil {
		return nil, err
	}
	var rates []TaxRate
	err = client.getJSON(ctx, path, map[string]string{"filter": taxRatesFilter}, &rates)
	return rates, err
}

// FindContactByEmail ищет контакт с точным совпадением email без учета регистра.
// Не найден - nil без ошибки
func (client *client) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	path, err := client.adminPath("/contacts.json")
	if err != nil {
		return nil, err
	}
	var contacts []Contact
	if err = client.getJSON(ctx, path, map[string]string{"query": email}, &contacts); err != nil {
		return nil, err
	}

	for i := range contacts {
		if contacts[i].Email != "" && strings.EqualFold(contacts[i].Email, email) {
			return &contacts[i], nil
		}
	}
	return nil, nil
}

func (client *client) CreateContact(ctx context.Context, contact ContactAttributes) (Contact, error) {
	path, err := client.adminPath("/contacts.json")
	if err != nil {
		return Contact{}, err
	}
	var created Contact
	err = client.postJSON(ctx, path, map[string]ContactAttributes{"contact": contact}, &created)
	return created, err
}

func (client *client) CreateExternalSalesInvoice(ctx context.Context, invoice ExternalSalesInvoice) (Invoice, error) {
	path, err := client.adminPath("/external_sales_invoices.json")
	if err != nil {
		return Invoice{}, err
	}
	var created Invoice
	err = client.postJSON(ctx, path, map[string]ExternalSalesInvoice{"external_sales_invoice": invoice}, &created)
	return created, err
}
