package synclog

import (
	"context"
	"errors"
	"time"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/store"
)

// SyncLog - журнал попыток синхронизации, только добавление
type SyncLog interface {
	Success(ctx context.Context, orderID int64, invoiceID string) error
	Error(ctx context.Context, orderID int64, message string) error
	Append(ctx context.Context, entry model.SyncLogEntry) error
	LastFor(ctx context.Context, orderID int64) (model.SyncLogEntry, bool, error)
	Page(ctx context.Context, limit int, offset int) ([]model.SyncLogEntry, error)
	Count(ctx context.Context) (int, error)
}

const SuccessMessage = "Successfully synced to Moneybird"

type syncLog struct {
	store store.Store
	now   func() time.Time
}

func NewSyncLog(store store.Store) SyncLog {
	return &syncLog{store: store, now: time.Now}
}

func (log *syncLog) Success(ctx context.Context, orderID int64, invoiceID string) error {
	return log.Append(ctx, model.SyncLogEntry{
		OrderID:   orderID,
		Status:    model.SyncStatusSuccess,
		Message:   SuccessMessage,
		InvoiceID: invoiceID,
	})
}

func (log *syncLog) Error(ctx context.Context, orderID int64, message string) error {
	return log.Append(ctx, model.SyncLogEntry{
		OrderID: orderID,
		Status:  model.SyncStatusError,
		Message: message,
	})
}

func (log *syncLog) Append(ctx context.Context, entry model.SyncLogEntry) error {
	if entry.SyncedAt.IsZero() {
		entry.SyncedAt = log.now()
	}
	_, err := log.store.SyncLogInsert(ctx, entry)
	return err
}

func (log *syncLog) LastFor(ctx context.Context, orderID int64) (model.SyncLogEntry, bool, error) {
	entry, err := log.store.SyncLogLast(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.SyncLogEntry{}, false, nil
		}
		return model.SyncLogEntry{}, false, err
	}
	return entry, true, nil
}

func (log *syncLog) Page(ctx context.Context, limit int, offset int) ([]model.SyncLogEntry, error) {
	if limit <= 0 || offset < 0 {
		return nil, nil
	}
	return log.store.SyncLogList(ctx, limit, offset)
}

func (log *syncLog) Count(ctx context.Context) (int, error) {
	return log.store.SyncLogCount(ctx)
}
