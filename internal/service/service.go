package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iurnickita/moneybirdsync/internal/lock"
	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/service/config"
	"github.com/iurnickita/moneybirdsync/internal/service/contact"
	"github.com/iurnickita/moneybirdsync/internal/service/invoice"
	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
	"github.com/iurnickita/moneybirdsync/internal/service/taxrate"
	"github.com/iurnickita/moneybirdsync/internal/service/wooclient"
	"github.com/iurnickita/moneybirdsync/internal/settings"
	"github.com/iurnickita/moneybirdsync/internal/store"
	"github.com/iurnickita/moneybirdsync/internal/synclog"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
	debugRecent    = 10

	syncedNote = "Order synced to Moneybird. View invoice: "
	failedNote = "Failed to sync to Moneybird: "
)

type Service interface {
	HandleStatusChange(ctx context.Context, orderID int64, oldStatus string, newStatus string) error
	SyncOrder(ctx context.Context, orderID int64) (Result, error)
	ManualSync(ctx context.Context, orderID int64) (Result, error)
	Status(ctx context.Context, orderID int64) (OrderStatus, error)
	History(ctx context.Context, page int, perPage int) (HistoryPage, error)

	Setup(ctx context.Context, apiToken string) (moneybirdclient.Administration, error)
	UpdateSettings(ctx context.Context, ledgerAccountID string, taxRateID string, syncOnStatus string) error
	ResetSettings(ctx context.Context) error
	LedgerAccounts(ctx context.Context) ([]moneybirdclient.LedgerAccount, error)
	TaxRates(ctx context.Context) ([]moneybirdclient.TaxRate, error)
	Debug(ctx context.Context) (DebugInfo, error)
}

type Result struct {
	OrderID    int64
	AttemptID  string
	InvoiceID  string
	InvoiceURL string
	// Skipped: автоматическая синхронизация не понадобилась
	Skipped bool
}

type OrderStatus struct {
	OrderID    int64
	InvoiceID  string
	InvoiceURL string
	SyncedAt   time.Time
	LastEntry  *model.SyncLogEntry
}

type HistoryPage struct {
	Entries []model.SyncLogEntry
	Total   int
	Page    int
	PerPage int
	Pages   int
}

type DebugInfo struct {
	HasAPIToken         bool
	HasAdministrationID bool
	HasLedgerAccountID  bool
	HasTaxRateID        bool
	AdministrationID    string
	SyncOnStatus        string
	Configured          bool
	LogCount            int
	Recent              []model.SyncLogEntry
}

type trigger int

const (
	triggerManual trigger = iota
	triggerAutomatic
)

// lockMargin: запас между концом попытки и истечением блокировки
const lockMargin = 30 * time.Second

func attemptTimeout(lockTTL time.Duration) time.Duration {
	switch {
	case lockTTL <= 0:
		return 0
	case lockTTL > 2*lockMargin:
		return lockTTL - lockMargin
	default:
		return lockTTL / 2
	}
}

type service struct {
	cfg       config.Config
	store     store.Store
	settings  settings.Settings
	syncLog   synclog.SyncLog
	orders    wooclient.WooClient
	moneybird moneybirdclient.Factory
	locker    lock.Locker
	zaplog    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(cfg config.Config, store store.Store, orders wooclient.WooClient, moneybird moneybirdclient.Factory, locker lock.Locker, zaplog *zap.Logger) (Service, error) {
	service := service{
		cfg:       cfg,
		store:     store,
		settings:  settings.NewSettings(store),
		syncLog:   synclog.NewSyncLog(store),
		orders:    orders,
		moneybird: moneybird,
		locker:    locker,
		zaplog:    zaplog,
		tracer:    otel.Tracer("moneybirdsync/service"),
		now:       time.Now,
	}

	return &service, nil
}

// HandleStatusChange выгружает заказ при переходе в заданный статус, если счета еще нет.
// Ошибки выгрузки пишутся в журнал, возвращаются только ошибки хранилища
func (service *service) HandleStatusChange(ctx context.Context, orderID int64, oldStatus string, newStatus string) error {
	cfg, err := service.settings.Load(ctx)
	if err != nil {
		return err
	}
	if !cfg.Configured() {
		return nil
	}
	if newStatus != cfg.SyncOnStatus || oldStatus == newStatus {
		return nil
	}

	synced, err := service.invoiceID(ctx, orderID)
	if err != nil {
		return err
	}
	if synced != "" {
		return nil
	}

	if _, err = service.sync(ctx, cfg, orderID, triggerAutomatic); err != nil {
		service.zaplog.Debug("status change sync failed",
			zap.Int64("order_id", orderID),
			zap.String("kind", Kind(err)))
	}
	return nil
}

func (service *service) SyncOrder(ctx context.Context, orderID int64) (Result, error) {
	cfg, err := service.settings.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	return service.sync(ctx, cfg, orderID, triggerManual)
}

// ManualSync: забыть счет и выгрузить заказ заново
func (service *service) ManualSync(ctx context.Context, orderID int64) (Result, error) {
	if err := service.store.OrderSyncClear(ctx, orderID); err != nil {
		return Result{}, err
	}
	return service.SyncOrder(ctx, orderID)
}

func (service *service) sync(ctx context.Context, cfg model.Settings, orderID int64, mode trigger) (Result, error) {
	result := Result{OrderID: orderID, AttemptID: uuid.NewString()}

	ctx, span := service.tracer.Start(ctx, "SyncOrder", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("sync.attempt_id", result.AttemptID),
		attribute.Bool("sync.automatic", mode == triggerAutomatic),
	))
	defer span.End()

	zaplog := service.zaplog.With(
		zap.Int64("order_id", orderID),
		zap.String("attempt_id", result.AttemptID))

	// Без настроек - никаких сетевых запросов
	if !cfg.Configured() {
		return result, service.fail(ctx, span, zaplog, orderID, ErrNotConfigured, false)
	}

	orderLock, err := service.locker.Obtain(ctx, "order:"+strconv.FormatInt(orderID, 10))
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			if mode == triggerAutomatic {
				zaplog.Info("sync already in progress, skipped")
				result.Skipped = true
				return result, nil
			}
			err = ErrSyncInProgress
		}
		return result, service.fail(ctx, span, zaplog, orderID, err, false)
	}
	defer func() {
		if err := orderLock.Release(context.WithoutCancel(ctx)); err != nil {
			zaplog.Warn("order lock release failed", zap.Error(err))
		}
	}()

	// Запросы к магазину и Moneybird заканчиваются до истечения блокировки
	callCtx := ctx
	if timeout := attemptTimeout(service.cfg.LockTTL); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Повторная проверка под блокировкой: параллельный триггер мог успеть
	if mode == triggerAutomatic {
		synced, err := service.invoiceID(ctx, orderID)
		if err != nil {
			return result, service.fail(ctx, span, zaplog, orderID, err, false)
		}
		if synced != "" {
			result.InvoiceID = synced
			result.Skipped = true
			return result, nil
		}
	}

	order, err := service.orders.GetOrder(callCtx, orderID)
	if err != nil {
		return result, service.fail(ctx, span, zaplog, orderID, fmt.Errorf("load order: %w", err), false)
	}

	client := service.moneybird(cfg.APIToken, cfg.AdministrationID)

	contactID, err := contact.NewResolver(client, service.store, zaplog).Resolve(callCtx, order)
	if err != nil {
		return result, service.fail(ctx, span, zaplog, orderID, err, true)
	}

	payload, err := invoice.NewBuilder(cfg.LedgerAccountID, taxrate.NewResolver(client)).Build(callCtx, order, contactID)
	if err != nil {
		return result, service.fail(ctx, span, zaplog, orderID, err, true)
	}

	created, err := client.CreateExternalSalesInvoice(callCtx, payload)
	if err != nil {
		return result, service.fail(ctx, span, zaplog, orderID, err, true)
	}
	if created.ID == "" {
		return result, service.fail(ctx, span, zaplog, orderID, ErrNoInvoiceID, true)
	}

	err = service.store.OrderSyncPut(ctx, model.SyncRecord{
		OrderID:   orderID,
		InvoiceID: created.ID,
		SyncedAt:  service.now(),
	})
	if err != nil {
		err = fmt.Errorf("invoice %s created but not saved: %w", created.ID, err)
		return result, service.fail(ctx, span, zaplog, orderID, err, true)
	}

	result.InvoiceID = created.ID
	result.InvoiceURL = service.invoiceURL(cfg.AdministrationID, created.ID)
	span.SetAttributes(attribute.String("moneybird.invoice_id", created.ID))

	if err = service.syncLog.Success(ctx, orderID, created.ID); err != nil {
		zaplog.Error("sync log write failed", zap.Error(err))
	}
	if err = service.orders.AddNote(ctx, orderID, syncedNote+result.InvoiceURL); err != nil {
		zaplog.Warn("order note failed", zap.Error(err))
	}

	zaplog.Info("order synced", zap.String("invoice_id", created.ID))
	return result, nil
}

// fail пишет ошибку в журнал и, если заказ был загружен, заметку в заказ
func (service *service) fail(ctx context.Context, span trace.Span, zaplog *zap.Logger, orderID int64, cause error, note bool) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	zaplog.Error("order sync failed",
		zap.String("kind", Kind(cause)),
		zap.Error(cause))

	if err := service.syncLog.Error(ctx, orderID, cause.Error()); err != nil {
		zaplog.Error("sync log write failed", zap.Error(err))
	}
	if note {
		if err := service.orders.AddNote(ctx, orderID, failedNote+cause.Error()); err != nil {
			zaplog.Warn("order note failed", zap.Error(err))
		}
	}
	return cause
}

func (service *service) invoiceID(ctx context.Context, orderID int64) (string, error) {
	record, err := service.store.OrderSyncGet(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return record.InvoiceID, nil
}

func (service *service) invoiceURL(administrationID string, invoiceID string) string {
	return strings.TrimRight(service.cfg.MoneybirdAppURL, "/") + "/" + administrationID + "/external_sales_invoices/" + invoiceID
}

func (service *service) Status(ctx context.Context, orderID int64) (OrderStatus, error) {
	status := OrderStatus{OrderID: orderID}

	record, err := service.store.OrderSyncGet(ctx, orderID)
	switch {
	case err == nil:
		status.InvoiceID = record.InvoiceID
		status.SyncedAt = record.SyncedAt
	case !errors.Is(err, store.ErrNoRows):
		return OrderStatus{}, err
	}

	if status.InvoiceID != "" {
		cfg, err := service.settings.Load(ctx)
		if err != nil {
			return OrderStatus{}, err
		}
		if cfg.AdministrationID != "" {
			status.InvoiceURL = service.invoiceURL(cfg.AdministrationID, status.InvoiceID)
		}
	}

	last, found, err := service.syncLog.LastFor(ctx, orderID)
	if err != nil {
		return OrderStatus{}, err
	}
	if found {
		status.LastEntry = &last
	}
	return status, nil
}

func (service *service) History(ctx context.Context, page int, perPage int) (HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	total, err := service.syncLog.Count(ctx)
	if err != nil {
		return HistoryPage{}, err
	}
	entries, err := service.syncLog.Page(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return HistoryPage{}, err
	}

	return HistoryPage{
		Entries: entries,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   (total + perPage - 1) / perPage,
	}, nil
}

// Setup подключает токен к первой администрации
func (service *service) Setup(ctx context.Context, apiToken string) (moneybirdclient.Administration, error) {
	apiToken = strings.TrimSpace(apiToken)
	if apiToken == "" {
		return moneybirdclient.Administration{}, fmt.Errorf("%w: API token is required", ErrInvalidSettings)
	}

	administrations, err := service.moneybird(apiToken, "").Administrations(ctx)
	if err != nil {
		return moneybirdclient.Administration{}, err
	}
	if len(administrations) == 0 {
		return moneybirdclient.Administration{}, ErrNoAdministrations
	}
	administration := administrations[0]

	if err = service.moneybird(apiToken, administration.ID).VerifyPermissions(ctx); err != nil {
		return moneybirdclient.Administration{}, err
	}

	if err = service.settings.Connect(ctx, apiToken, administration.ID); err != nil {
		return moneybirdclient.Administration{}, err
	}

	service.zaplog.Info("connected to Moneybird",
		zap.String("administration_id", administration.ID),
		zap.String("administration", administration.Name))
	return administration, nil
}

// UpdateSettings проверяет выбранные счет и ставку по данным Moneybird
func (service *service) UpdateSettings(ctx context.Context, ledgerAccountID string, taxRateID string, syncOnStatus string) error {
	if syncOnStatus == "" {
		syncOnStatus = model.DefaultSyncOnStatus
	}
	if !slices.Contains(settings.SyncStatuses, syncOnStatus) {
		return fmt.Errorf("%w: sync status must be one of %s", ErrInvalidSettings, strings.Join(settings.SyncStatuses, ", "))
	}
	if ledgerAccountID == "" {
		return fmt.Errorf("%w: ledger account is required", ErrInvalidSettings)
	}

	client, err := service.connectedClient(ctx)
	if err != nil {
		return err
	}

	accounts, err := client.LedgerAccounts(ctx)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(accounts, func(a moneybirdclient.LedgerAccount) bool { return a.ID == ledgerAccountID }) {
		return fmt.Errorf("%w: unknown ledger account %s", ErrInvalidSettings, ledgerAccountID)
	}

	if taxRateID != "" {
		rates, err := client.TaxRates(ctx)
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(rates, func(r moneybirdclient.TaxRate) bool { return r.ID == taxRateID }) {
			return fmt.Errorf("%w: unknown tax rate %s", ErrInvalidSettings, taxRateID)
		}
	}

	return service.settings.Update(ctx, ledgerAccountID, taxRateID, syncOnStatus)
}

func (service *service) ResetSettings(ctx context.Context) error {
	return service.settings.Reset(ctx)
}

func (service *service) LedgerAccounts(ctx context.Context) ([]moneybirdclient.LedgerAccount, error) {
	client, err := service.connectedClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.LedgerAccounts(ctx)
}

func (service *service) TaxRates(ctx context.Context) ([]moneybirdclient.TaxRate, error) {
	client, err := service.connectedClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.TaxRates(ctx)
}

func (service *service) connectedClient(ctx context.Context) (moneybirdclient.Client, error) {
	cfg, err := service.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Connected() {
		return nil, ErrNotConnected
	}
	return service.moneybird(cfg.APIToken, cfg.AdministrationID), nil
}

func (service *service) Debug(ctx context.Context) (DebugInfo, error) {
	cfg, err := service.settings.Load(ctx)
	if err != nil {
		return DebugInfo{}, err
	}

	count, err := service.syncLog.Count(ctx)
	if err != nil {
		return DebugInfo{}, err
	}
	recent, err := service.syncLog.Page(ctx, debugRecent, 0)
	if err != nil {
		return DebugInfo{}, err
	}

	return DebugInfo{
		HasAPIToken:         cfg.APIToken != "",
		HasAdministrationID: cfg.AdministrationID != "",
		HasLedgerAccountID:  cfg.LedgerAccountID != "",
		HasTaxRateID:        cfg.TaxRateID != "",
		AdministrationID:    cfg.AdministrationID,
		SyncOnStatus:        cfg.SyncOnStatus,
		Configured:          cfg.Configured(),
		LogCount:            count,
		Recent:              recent,
	}, nil
}
