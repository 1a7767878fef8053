package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/store/config"
)

type Store interface {
	SettingsGet(ctx context.Context) (map[string]string, error)
	SettingsPut(ctx context.Context, values map[string]string) error
	SettingsReset(ctx context.Context) error
	OrderSyncGet(ctx context.Context, orderID int64) (model.SyncRecord, error)
	OrderSyncPut(ctx context.Context, record model.SyncRecord) error
	OrderSyncClear(ctx context.Context, orderID int64) error
	CustomerContactGet(ctx context.Context, customerID int64) (string, error)
	CustomerContactPut(ctx context.Context, customerID int64, contactID string) error
	SyncLogInsert(ctx context.Context, entry model.SyncLogEntry) (int64, error)
	SyncLogLast(ctx context.Context, orderID int64) (model.SyncLogEntry, error)
	SyncLogList(ctx context.Context, limit int, offset int) ([]model.SyncLogEntry, error)
	SyncLogCount(ctx context.Context) (int, error)
}

var (
	ErrNoRows = errors.New("no rows")
)

const pgUniqueViolation = "23505"

type store struct {
	database *sql.DB
}

// NewStore открывает PostgreSQL по DSN. Без DSN данные хранятся в памяти процесса
// и пропадают при перезапуске: заказы будут выгружены повторно
func NewStore(cfg config.Config, zaplog *zap.Logger) (Store, error) {
	if cfg.DBDsn == "" {
		zaplog.Warn("database DSN is not configured, sync records are kept in memory and lost on restart")
		return newMemStore(), nil
	}

	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	if err = migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &store{database: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	// Настройки: ключ - значение
	_, err := db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS settings (" +
			" key VARCHAR (64) PRIMARY KEY," +
			" value TEXT NOT NULL" +
			" );")
	if err != nil {
		return err
	}

	// Состояние синхронизации заказа.
	// Одна строка на заказ, invoice_id очищается при ручной повторной выгрузке
	_, err = db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS order_sync (" +
			" order_id BIGINT PRIMARY KEY," +
			" invoice_id VARCHAR (100)," +
			" synced_at TIMESTAMP" +
			" );")
	if err != nil {
		return err
	}

	// Контакт Moneybird покупателя
	_, err = db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS customer_contact (" +
			" customer_id BIGINT PRIMARY KEY," +
			" contact_id VARCHAR (100) NOT NULL" +
			" );")
	if err != nil {
		return err
	}

	// Журнал синхронизации. Записи не изменяются и не удаляются
	_, err = db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS sync_log (" +
			" id BIGSERIAL PRIMARY KEY," +
			" order_id BIGINT NOT NULL," +
			" status VARCHAR (20) NOT NULL," +
			" message TEXT," +
			" invoice_id VARCHAR (100)," +
			" synced_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS sync_log_order_id ON sync_log (order_id);")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS sync_log_synced_at ON sync_log (synced_at);")
	return err
}

func (store *store) SettingsGet(ctx context.Context) (map[string]string, error) {
	rows, err := store.database.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

func (store *store) SettingsPut(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range keys {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO settings (key, value)"+
				" VALUES ($1, $2)"+
				" ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
			key,
			values[key])
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (store *store) SettingsReset(ctx context.Context) error {
	_, err := store.database.ExecContext(ctx, "DELETE FROM settings")
	return err
}

func (store *store) OrderSyncGet(ctx context.Context, orderID int64) (model.SyncRecord, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT order_id, invoice_id, synced_at FROM order_sync"+
			" WHERE order_id = $1",
		orderID)

	var record model.SyncRecord
	var invoiceID sql.NullString
	var syncedAt sql.NullTime
	err := row.Scan(&record.OrderID, &invoiceID, &syncedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.SyncRecord{}, ErrNoRows
		}
		return model.SyncRecord{}, err
	}
	record.InvoiceID = invoiceID.String
	record.SyncedAt = syncedAt.Time
	return record, nil
}

func (store *store) OrderSyncPut(ctx context.Context, record model.SyncRecord) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO order_sync (order_id, invoice_id, synced_at)"+
			" VALUES ($1, $2, $3)"+
			" ON CONFLICT (order_id) DO UPDATE"+
			" SET invoice_id = EXCLUDED.invoice_id, synced_at = EXCLUDED.synced_at",
		record.OrderID,
		record.InvoiceID,
		record.SyncedAt)
	return err
}

func (store *store) OrderSyncClear(ctx context.Context, orderID int64) error {
	// synced_at остается: время последней успешной выгрузки
	_, err := store.database.ExecContext(ctx,
		"UPDATE order_sync SET invoice_id = NULL"+
			" WHERE order_id = $1",
		orderID)
	return err
}

func (store *store) CustomerContactGet(ctx context.Context, customerID int64) (string, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT contact_id FROM customer_contact"+
			" WHERE customer_id = $1",
		customerID)
	var contactID string
	err := row.Scan(&contactID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNoRows
		}
		return "", err
	}
	return contactID, nil
}

func (store *store) CustomerContactPut(ctx context.Context, customerID int64, contactID string) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO customer_contact (customer_id, contact_id)"+
			" VALUES ($1, $2)",
		customerID,
		contactID)
	if err != nil {
		// Проверка: уже существует
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			_, err = store.database.ExecContext(ctx,
				"UPDATE customer_contact SET contact_id = $1"+
					" WHERE customer_id = $2",
				contactID,
				customerID)
		}
	}
	return err
}

func (store *store) SyncLogInsert(ctx context.Context, entry model.SyncLogEntry) (int64, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO sync_log (order_id, status, message, invoice_id, synced_at)"+
			" VALUES ($1, $2, $3, $4, $5)"+
			" RETURNING id",
		entry.OrderID,
		entry.Status,
		entry.Message,
		nullString(entry.InvoiceID),
		entry.SyncedAt)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (store *store) SyncLogLast(ctx context.Context, orderID int64) (model.SyncLogEntry, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT id, order_id, status, message, invoice_id, synced_at"+
			" FROM sync_log"+
			" WHERE order_id = $1"+
			" ORDER BY synced_at DESC, id DESC"+
			" LIMIT 1",
		orderID)
	entry, err := scanSyncLog(row)
	if err == sql.ErrNoRows {
		return model.SyncLogEntry{}, ErrNoRows
	}
	return entry, err
}

func (store *store) SyncLogList(ctx context.Context, limit int, offset int) ([]model.SyncLogEntry, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, order_id, status, message, invoice_id, synced_at"+
			" FROM sync_log"+
			" ORDER BY synced_at DESC, id DESC"+
			" LIMIT $1 OFFSET $2",
		limit,
		offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.SyncLogEntry
	for rows.Next() {
		entry, err := scanSyncLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (store *store) SyncLogCount(ctx context.Context) (int, error) {
	var count int
	err := store.database.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_log").Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSyncLog(row scanner) (model.SyncLogEntry, error) {
	var entry model.SyncLogEntry
	var message, invoiceID sql.NullString
	err := row.Scan(&entry.ID,
		&entry.OrderID,
		&entry.Status,
		&message,
		&invoiceID,
		&entry.SyncedAt)
	if err != nil {
		return model.SyncLogEntry{}, err
	}
	entry.Message = message.String
	entry.InvoiceID = invoiceID.String
	return entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
