package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/iurnickita/moneybirdsync/internal/lock"
	"github.com/iurnickita/moneybirdsync/internal/service/contact"
	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
	"github.com/iurnickita/moneybirdsync/internal/service/taxrate"
	"github.com/iurnickita/moneybirdsync/internal/service/wooclient"
)

var (
	ErrNotConfigured     = errors.New("not configured: Moneybird API token, administration and ledger account are required")
	ErrSyncInProgress    = errors.New("sync already in progress for this order")
	ErrNoInvoiceID       = errors.New("no invoice ID returned by Moneybird")
	ErrNoAdministrations = errors.New("no administrations found for this API token")
	ErrNotConnected      = errors.New("not connected to Moneybird")
	ErrInvalidSettings   = errors.New("invalid settings")
)

// Классы ошибок синхронизации
const (
	KindNotConfigured     = "not_configured"
	KindTransport         = "transport"
	KindAPI               = "api"
	KindNoMatchingTaxRate = "no_matching_tax_rate"
	KindContactResolution = "contact_resolution"
	KindInProgress        = "in_progress"
	KindGeneric           = "generic"
)

// Kind - класс ошибки синхронизации.
// Ошибка контакта проверяется раньше: она оборачивает ошибку API или сети
func Kind(err error) string {
	var noMatch *taxrate.NoMatchingRateError
	var apiErr *moneybirdclient.APIError
	var transportErr *moneybirdclient.TransportError

	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrNotConfigured),
		errors.Is(err, moneybirdclient.ErrNoAPIToken),
		errors.Is(err, moneybirdclient.ErrNoAdministrationID):
		return KindNotConfigured

	case errors.Is(err, ErrSyncInProgress):
		return KindInProgress

	case errors.Is(err, contact.ErrContactResolution):
		return KindContactResolution

	case errors.As(err, &noMatch):
		return KindNoMatchingTaxRate

	case errors.As(err, &transportErr),
		errors.Is(err, wooclient.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransport

	case errors.As(err, &apiErr):
		return KindAPI

	default:
		return KindGeneric
	}
}

func HTTPStatus(err error) int {
	var apiErr *moneybirdclient.APIError

	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrInvalidSettings):
		return http.StatusBadRequest

	case errors.Is(err, wooclient.ErrOrderNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrSyncInProgress),
		errors.Is(err, lock.ErrNotObtained):
		return http.StatusConflict

	case errors.Is(err, ErrNotConfigured),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, moneybirdclient.ErrNoAPIToken),
		errors.Is(err, moneybirdclient.ErrNoAdministrationID):
		return http.StatusPreconditionFailed

	case errors.Is(err, ErrNoAdministrations),
		errors.Is(err, contact.ErrContactResolution),
		errors.Is(err, taxrate.ErrRatesUnavailable):
		return http.StatusUnprocessableEntity

	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway

	default:
		switch Kind(err) {
		case KindNoMatchingTaxRate:
			return http.StatusUnprocessableEntity
		case KindTransport:
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
