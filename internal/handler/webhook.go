package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	headerWebhookSignature = "X-WC-Webhook-Signature"
	headerWebhookTopic     = "X-WC-Webhook-Topic"
	maxWebhookBody         = 1 << 20
)

// Тело вебхука order.created / order.updated. Нужны только номер и статус
type WebhookOrderJSON struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// Webhook принимает события заказов WooCommerce
func (h *handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		http.Error(w, "webhook is disabled", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(headerWebhookSignature)

	// проверочный запрос при активации вебхука приходит без подписи: webhook_id=...
	if signature == "" && isPing(body) {
		w.WriteHeader(http.StatusOK)
		return
	}

	if !validSignature(body, signature, h.webhookSecret) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	// остальные темы не относятся к заказам
	topic := r.Header.Get(headerWebhookTopic)
	if !strings.HasPrefix(topic, "order.") {
		w.WriteHeader(http.StatusOK)
		return
	}

	var order WebhookOrderJSON
	if err = json.Unmarshal(body, &order); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if order.ID <= 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	// предыдущий статус вебхук не передает
	if err = h.service.HandleStatusChange(r.Context(), order.ID, "", order.Status); err != nil {
		h.zaplog.Error("webhook status change failed",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func isPing(body []byte) bool {
	values, err := url.ParseQuery(string(body))
	if err != nil || len(values) != 1 {
		return false
	}
	id, err := strconv.ParseInt(values.Get("webhook_id"), 10, 64)
	return err == nil && id > 0
}

func validSignature(body []byte, signature string, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
