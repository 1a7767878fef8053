package contact

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ttacon/libphonenumber"
	"go.uber.org/zap"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
	"github.com/iurnickita/moneybirdsync/internal/store"
)

var ErrContactResolution = errors.New("failed to resolve Moneybird contact")

// Сопоставление покупатель магазина -> контакт Moneybird
type ContactStore interface {
	CustomerContactGet(ctx context.Context, customerID int64) (string, error)
	CustomerContactPut(ctx context.Context, customerID int64, contactID string) error
}

type API interface {
	FindContactByEmail(ctx context.Context, email string) (*moneybirdclient.Contact, error)
	CreateContact(ctx context.Context, contact moneybirdclient.ContactAttributes) (moneybirdclient.Contact, error)
}

type Resolver interface {
	Resolve(ctx context.Context, order model.Order) (string, error)
}

type resolver struct {
	api    API
	store  ContactStore
	zaplog *zap.Logger
}

func NewResolver(api API, store ContactStore, zaplog *zap.Logger) Resolver {
	return &resolver{api: api, store: store, zaplog: zaplog}
}

// Resolve возвращает контакт Moneybird покупателя.
// Гостей ищем по email каждый раз, зарегистрированных покупателей запоминаем
func (resolver *resolver) Resolve(ctx context.Context, order model.Order) (string, error) {
	registered := order.CustomerID > 0

	if registered {
		contactID, err := resolver.store.CustomerContactGet(ctx, order.CustomerID)
		switch {
		case err == nil && contactID != "":
			return contactID, nil
		case err != nil && !errors.Is(err, store.ErrNoRows):
			resolver.zaplog.Warn("contact mapping read failed",
				zap.Int64("customer_id", order.CustomerID),
				zap.Error(err))
		}
	}

	email := strings.TrimSpace(order.Billing.Email)
	if email != "" {
		found, err := resolver.api.FindContactByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrContactResolution, err)
		}
		if found != nil {
			resolver.remember(ctx, order, found.ID)
			return found.ID, nil
		}
	}

	created, err := resolver.api.CreateContact(ctx, Attributes(order))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrContactResolution, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: empty contact id in response", ErrContactResolution)
	}

	resolver.remember(ctx, order, created.ID)
	return created.ID, nil
}

// remember: ошибка записи не мешает синхронизации
func (resolver *resolver) remember(ctx context.Context, order model.Order, contactID string) {
	if order.CustomerID <= 0 {
		return
	}
	if err := resolver.store.CustomerContactPut(ctx, order.CustomerID, contactID); err != nil {
		resolver.zaplog.Warn("contact mapping write failed",
			zap.Int64("customer_id", order.CustomerID),
			zap.String("contact_id", contactID),
			zap.Error(err))
	}
}

// Attributes: контакт по платежным данным заказа
func Attributes(order model.Order) moneybirdclient.ContactAttributes {
	billing := order.Billing

	company := strings.TrimSpace(billing.Company)
	if company == "" {
		company = strings.TrimSpace(billing.FirstName + " " + billing.LastName)
	}

	externalID := order.CustomerID
	if externalID <= 0 {
		externalID = order.ID
	}

	return moneybirdclient.ContactAttributes{
		CompanyName: company,
		Firstname:   billing.FirstName,
		Lastname:    billing.LastName,
		Address1:    billing.Address1,
		Address2:    billing.Address2,
		Zipcode:     billing.Postcode,
		City:        billing.City,
		Country:     billing.Country,
		Email:       billing.Email,
		Phone:       NormalizePhone(billing.Phone, billing.Country),
		CustomerID:  "wc_" + strconv.FormatInt(externalID, 10),
	}
}

// NormalizePhone приводит номер к E.164 по стране покупателя.
// Не разобрался - возвращается как есть
func NormalizePhone(phone string, country string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	p, err := libphonenumber.Parse(phone, strings.ToUpper(country))
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return phone
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}
