package settings

import (
	"context"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/store"
)

// Ключи хранилища настроек
const (
	KeyAPIToken         = "api_token"
	KeyAdministrationID = "administration_id"
	KeyLedgerAccountID  = "ledger_account_id"
	KeyTaxRateID        = "tax_rate_id"
	KeySyncOnStatus     = "sync_on_status"
)

// Статусы заказа, по которым возможна автоматическая выгрузка
var SyncStatuses = []string{model.OrderStatusProcessing, model.OrderStatusCompleted}

type Settings interface {
	Load(ctx context.Context) (model.Settings, error)
	Connect(ctx context.Context, apiToken string, administrationID string) error
	Update(ctx context.Context, ledgerAccountID string, taxRateID string, syncOnStatus string) error
	Reset(ctx context.Context) error
}

type settings struct {
	store store.Store
}

func NewSettings(store store.Store) Settings {
	return &settings{store: store}
}

func (s *settings) Load(ctx context.Context) (model.Settings, error) {
	values, err := s.store.SettingsGet(ctx)
	if err != nil {
		return model.Settings{}, err
	}

	loaded := model.Settings{
		APIToken:         values[KeyAPIToken],
		AdministrationID: values[KeyAdministrationID],
		LedgerAccountID:  values[KeyLedgerAccountID],
		TaxRateID:        values[KeyTaxRateID],
		SyncOnStatus:     values[KeySyncOnStatus],
	}
	if loaded.SyncOnStatus == "" {
		loaded.SyncOnStatus = model.DefaultSyncOnStatus
	}
	return loaded, nil
}

func (s *settings) Connect(ctx context.Context, apiToken string, administrationID string) error {
	return s.store.SettingsPut(ctx, map[string]string{
		KeyAPIToken:         apiToken,
		KeyAdministrationID: administrationID,
	})
}

func (s *settings) Update(ctx context.Context, ledgerAccountID string, taxRateID string, syncOnStatus string) error {
	if syncOnStatus == "" {
		syncOnStatus = model.DefaultSyncOnStatus
	}
	return s.store.SettingsPut(ctx, map[string]string{
		KeyLedgerAccountID: ledgerAccountID,
		KeyTaxRateID:       taxRateID,
		KeySyncOnStatus:    syncOnStatus,
	})
}

func (s *settings) Reset(ctx context.Context) error {
	return s.store.SettingsReset(ctx)
}
