package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/moneybirdsync/internal/auth"
	"github.com/iurnickita/moneybirdsync/internal/gzip"
	"github.com/iurnickita/moneybirdsync/internal/handler/config"
	"github.com/iurnickita/moneybirdsync/internal/logger"
	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/service"
	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
)

const shutdownTimeout = 10 * time.Second

// Serve: HTTP-сервер до отмены ctx
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, cfg.WebhookSecret, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		zaplog.Info("http server started", zap.String("addr", cfg.ServerAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handler struct {
	auth          auth.Auth
	service       service.Service
	webhookSecret string
	zaplog        *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, webhookSecret string, zaplog *zap.Logger) *handler {
	return &handler{
		auth:          auth,
		service:       service,
		webhookSecret: webhookSecret,
		zaplog:        zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/login", gzip.GzipMiddleware(logger.RequestLogNoBodyMdlw(h.auth.Login, h.zaplog)))
	mux.HandleFunc("POST /api/webhooks/woocommerce", logger.RequestLogMdlw(h.Webhook, h.zaplog))

	mux.HandleFunc("POST /api/setup", gzip.GzipMiddleware(logger.RequestLogNoBodyMdlw(h.auth.Middleware(h.PostSetup), h.zaplog)))
	mux.HandleFunc("PUT /api/settings", h.admin(h.PutSettings))
	mux.HandleFunc("DELETE /api/settings", h.admin(h.DeleteSettings))
	mux.HandleFunc("GET /api/moneybird/ledger-accounts", h.admin(h.GetLedgerAccounts))
	mux.HandleFunc("GET /api/moneybird/tax-rates", h.admin(h.GetTaxRates))
	mux.HandleFunc("GET /api/orders/{id}/sync", h.admin(h.GetOrderSync))
	mux.HandleFunc("POST /api/orders/{id}/sync", h.admin(h.PostOrderSync))
	mux.HandleFunc("GET /api/sync-log", h.admin(h.GetSyncLog))
	mux.HandleFunc("GET /api/debug", h.admin(h.GetDebug))

	return mux
}

// admin: сжатие, журнал запросов, проверка токена
func (h *handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(next), h.zaplog))
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), service.HTTPStatus(err))
}

// Настройки

type PostSetupJSONRequest struct {
	APIToken string `json:"api_token"`
}

type AdministrationJSONResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

func (h *handler) PostSetup(w http.ResponseWriter, r *http.Request) {
	var request PostSetupJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	administration, err := h.service.Setup(r.Context(), request.APIToken)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, AdministrationJSONResponse{
		ID:       administration.ID,
		Name:     administration.Name,
		Currency: administration.Currency,
	})
}

type PutSettingsJSONRequest struct {
	LedgerAccountID string `json:"ledger_account_id"`
	TaxRateID       string `json:"tax_rate_id"`
	SyncOnStatus    string `json:"sync_on_status"`
}

func (h *handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var request PutSettingsJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.UpdateSettings(r.Context(), request.LedgerAccountID, request.TaxRateID, request.SyncOnStatus)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) DeleteSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetSettings(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) GetLedgerAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.LedgerAccounts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []moneybirdclient.LedgerAccount{}
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

type TaxRateJSONResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
}

func (h *handler) GetTaxRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.TaxRates(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	ratesJSON := make([]TaxRateJSONResponse, 0, len(rates))
	for _, rate := range rates {
		ratesJSON = append(ratesJSON, TaxRateJSONResponse{
			ID:         rate.ID,
			Name:       rate.Name,
			Percentage: rate.Percentage.String(),
		})
	}
	h.writeJSON(w, http.StatusOK, ratesJSON)
}

// Заказы

type SyncLogEntryJSON struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	InvoiceID string    `json:"invoice_id,omitempty"`
	SyncedAt  time.Time `json:"synced_at"`
}

func syncLogEntryJSON(entry model.SyncLogEntry) SyncLogEntryJSON {
	return SyncLogEntryJSON{
		ID:        entry.ID,
		OrderID:   entry.OrderID,
		Status:    entry.Status,
		Message:   entry.Message,
		InvoiceID: entry.InvoiceID,
		SyncedAt:  entry.SyncedAt,
	}
}

type GetOrderSyncJSONResponse struct {
	OrderID    int64             `json:"order_id"`
	Synced     bool              `json:"synced"`
	InvoiceID  string            `json:"invoice_id,omitempty"`
	InvoiceURL string            `json:"invoice_url,omitempty"`
	SyncedAt   *time.Time        `json:"synced_at,omitempty"`
	LastEntry  *SyncLogEntryJSON `json:"last_entry,omitempty"`
}

func (h *handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, false
	}
	return orderID, true
}

func (h *handler) GetOrderSync(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	status, err := h.service.Status(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := GetOrderSyncJSONResponse{
		OrderID:    status.OrderID,
		Synced:     status.InvoiceID != "",
		InvoiceID:  status.InvoiceID,
		InvoiceURL: status.InvoiceURL,
	}
	if !status.SyncedAt.IsZero() {
		response.SyncedAt = &status.SyncedAt
	}
	if status.LastEntry != nil {
		entry := syncLogEntryJSON(*status.LastEntry)
		response.LastEntry = &entry
	}
	h.writeJSON(w, http.StatusOK, response)
}

type PostOrderSyncJSONResponse struct {
	OrderID    int64  `json:"order_id"`
	AttemptID  string `json:"attempt_id"`
	InvoiceID  string `json:"invoice_id"`
	InvoiceURL string `json:"invoice_url"`
}

// PostOrderSync - ручная повторная выгрузка
func (h *handler) PostOrderSync(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	result, err := h.service.ManualSync(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PostOrderSyncJSONResponse{
		OrderID:    result.OrderID,
		AttemptID:  result.AttemptID,
		InvoiceID:  result.InvoiceID,
		InvoiceURL: result.InvoiceURL,
	})
}

type GetSyncLogJSONResponse struct {
	Entries []SyncLogEntryJSON `json:"entries"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
	Pages   int                `json:"pages"`
}

func queryInt(r *http.Request, key string) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func (h *handler) GetSyncLog(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		http.Error(w, "invalid per_page", http.StatusBadRequest)
		return
	}

	history, err := h.service.History(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := GetSyncLogJSONResponse{
		Entries: make([]SyncLogEntryJSON, 0, len(history.Entries)),
		Total:   history.Total,
		Page:    history.Page,
		PerPage: history.PerPage,
		Pages:   history.Pages,
	}
	for _, entry := range history.Entries {
		response.Entries = append(response.Entries, syncLogEntryJSON(entry))
	}
	h.writeJSON(w, http.StatusOK, response)
}

type GetDebugJSONResponse struct {
	Settings struct {
		APIToken         bool   `json:"api_token"`
		AdministrationID string `json:"administration_id"`
		LedgerAccountID  bool   `json:"ledger_account_id"`
		TaxRateID        bool   `json:"tax_rate_id"`
		SyncOnStatus     string `json:"sync_on_status"`
	} `json:"settings"`
	Configured bool               `json:"configured"`
	LogCount   int                `json:"log_count"`
	Recent     []SyncLogEntryJSON `json:"recent"`
}

func (h *handler) GetDebug(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Debug(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	var response GetDebugJSONResponse
	response.Settings.APIToken = info.HasAPIToken
	response.Settings.AdministrationID = info.AdministrationID
	response.Settings.LedgerAccountID = info.HasLedgerAccountID
	response.Settings.TaxRateID = info.HasTaxRateID
	response.Settings.SyncOnStatus = info.SyncOnStatus
	response.Configured = info.Configured
	response.LogCount = info.LogCount
	response.Recent = make([]SyncLogEntryJSON, 0, len(info.Recent))
	for _, entry := range info.Recent {
		response.Recent = append(response.Recent, syncLogEntryJSON(entry))
	}
	h.writeJSON(w, http.StatusOK, response)
}
