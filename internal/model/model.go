package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Заказ магазина (WooCommerce). Сервис его только читает

type Order struct {
	ID         int64
	CustomerID int64 // 0 - гостевой заказ
	Status     string
	Currency   string
	CreatedAt  time.Time
	EditURL    string
	Billing    Billing
	Items      []LineItem
	Shipping   Shipping
	Fees       []Fee
}

type Billing struct {
	FirstName string
	LastName  string
	Company   string
	Address1  string
	Address2  string
	Postcode  string
	City      string
	Country   string
	Email     string
	Phone     string
}

type LineItem struct {
	Name     string
	Quantity int
	Total    decimal.Decimal
	Tax      decimal.Decimal
}

type Shipping struct {
	Method string
	Total  decimal.Decimal
	Tax    decimal.Decimal
}

type Fee struct {
	Name  string
	Total decimal.Decimal
	Tax   decimal.Decimal
}

const (
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
)

// Состояние синхронизации заказа.
// Непустой InvoiceID - заказ уже выгружен

type SyncRecord struct {
	OrderID   int64
	InvoiceID string
	SyncedAt  time.Time
}

// Журнал синхронизации. Записи только добавляются

type SyncLogEntry struct {
	ID        int64
	OrderID   int64
	Status    string
	Message   string
	InvoiceID string
	SyncedAt  time.Time
}

const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// Настройки подключения к Moneybird

type Settings struct {
	APIToken         string
	AdministrationID string
	LedgerAccountID  string
	TaxRateID        string
	SyncOnStatus     string
}

const DefaultSyncOnStatus = OrderStatusCompleted

// Configured: заполнено все, что нужно для создания счета
func (s Settings) Configured() bool {
	return s.APIToken != "" && s.AdministrationID != "" && s.LedgerAccountID != ""
}

// Connected: есть токен и администрация
func (s Settings) Connected() bool {
	return s.APIToken != "" && s.AdministrationID != ""
}
