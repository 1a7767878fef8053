package moneybirdclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNoAPIToken         = errors.New("no API token configured")
	ErrNoAdministrationID = errors.New("no administration ID configured")
)

const fallbackErrorMessage = "API request failed"

// APIError - Moneybird ответил статусом >= 400
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// TransportError - запрос не дошел до Moneybird или ответ не получен: DNS, TLS, таймаут
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "Moneybird is unreachable: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorMessage достает поле error из тела ответа.
// Moneybird отдает либо строку, либо объект с ошибками по полям
func errorMessage(body []byte) string {
	var decoded struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil || len(decoded.Error) == 0 || string(decoded.Error) == "null" {
		return fallbackErrorMessage
	}

	var message string
	if err := json.Unmarshal(decoded.Error, &message); err == nil {
		if message == "" {
			return fallbackErrorMessage
		}
		return message
	}
	return string(decoded.Error)
}
