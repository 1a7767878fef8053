package moneybirdclient

import "github.com/shopspring/decimal"

// Ответы Moneybird

type Administration struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type LedgerAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
}

type TaxRate struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	Active     bool            `json:"active"`
}

type Contact struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	Email       string `json:"email"`
	CustomerID  string `json:"customer_id"`
}

type Invoice struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	State     string `json:"state"`
}

// Запросы Moneybird

type ContactAttributes struct {
	CompanyName string `json:"company_name"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	Zipcode     string `json:"zipcode"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CustomerID  string `json:"customer_id"`
}

type ExternalSalesInvoice struct {
	ContactID         string          `json:"contact_id"`
	Reference         string          `json:"reference"`
	Date              string          `json:"date"`
	DueDate           string          `json:"due_date"`
	Currency          string          `json:"currency,omitempty"`
	Source            string          `json:"source,omitempty"`
	SourceURL         string          `json:"source_url,omitempty"`
	DetailsAttributes []InvoiceDetail `json:"details_attributes"`
}

// InvoiceDetail - строка счета. Price - строка с двумя знаками после точки
type InvoiceDetail struct {
	Description     string `json:"description"`
	Price           string `json:"price"`
	Amount          string `json:"amount"`
	TaxRateID       string `json:"tax_rate_id"`
	LedgerAccountID string `json:"ledger_account_id"`
}
