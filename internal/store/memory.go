package store

import (
	"context"
	"sort"
	"sync"

	"github.com/iurnickita/moneybirdsync/internal/model"
)

// memStore - хранилище в памяти процесса, используется без DSN
type memStore struct {
	mu        sync.RWMutex
	settings  map[string]string
	orderSync map[int64]model.SyncRecord
	contacts  map[int64]string
	syncLog   []model.SyncLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		settings:  make(map[string]string),
		orderSync: make(map[int64]model.SyncRecord),
		contacts:  make(map[int64]string),
	}
}

// NewMemStore: пустое хранилище в памяти
func NewMemStore() Store {
	return newMemStore()
}

func (m *memStore) SettingsGet(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		values[k] = v
	}
	return values, nil
}

func (m *memStore) SettingsPut(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range values {
		m.settings[k] = v
	}
	return nil
}

func (m *memStore) SettingsReset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = make(map[string]string)
	return nil
}

func (m *memStore) OrderSyncGet(_ context.Context, orderID int64) (model.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.orderSync[orderID]
	if !ok {
		return model.SyncRecord{}, ErrNoRows
	}
	return record, nil
}

func (m *memStore) OrderSyncPut(_ context.Context, record model.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orderSync[record.OrderID] = record
	return nil
}

func (m *memStore) OrderSyncClear(_ context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.orderSync[orderID]; ok {
		record.InvoiceID = ""
		m.orderSync[orderID] = record
	}
	return nil
}

func (m *memStore) CustomerContactGet(_ context.Context, customerID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contactID, ok := m.contacts[customerID]
	if !ok {
		return "", ErrNoRows
	}
	return contactID, nil
}

func (m *memStore) CustomerContactPut(_ context.Context, customerID int64, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contacts[customerID] = contactID
	return nil
}

func (m *memStore) SyncLogInsert(_ context.Context, entry model.SyncLogEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = int64(len(m.syncLog) + 1)
	m.syncLog = append(m.syncLog, entry)
	return entry.ID, nil
}

func (m *memStore) SyncLogLast(_ context.Context, orderID int64) (model.SyncLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, entry := range m.sortedLog() {
		if entry.OrderID == orderID {
			return entry, nil
		}
	}
	return model.SyncLogEntry{}, ErrNoRows
}

func (m *memStore) SyncLogList(_ context.Context, limit int, offset int) ([]model.SyncLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := m.sortedLog()
	if offset >= len(sorted) {
		return nil, nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[offset:end], nil
}

func (m *memStore) SyncLogCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.syncLog), nil
}

// sortedLog - копия журнала, новые записи первыми
func (m *memStore) sortedLog() []model.SyncLogEntry {
	sorted := make([]model.SyncLogEntry, len(m.syncLog))
	copy(sorted, m.syncLog)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SyncedAt.Equal(sorted[j].SyncedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].SyncedAt.After(sorted[j].SyncedAt)
	})
	return sorted
}
