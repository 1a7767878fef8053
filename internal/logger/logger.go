package logger

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iurnickita/moneybirdsync/internal/logger/config"
)

// Тело запроса в логе обрезается до этой длины
const maxLoggedBody = 2048

func NewZapLog(cfg config.Config) (*zap.Logger, error) {
	// преобразуем текстовый уровень логирования в zap.AtomicLevel
	lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapcfg := zap.NewProductionConfig()
	zapcfg.Level = lvl
	return zapcfg.Build()
}

// RequestLogMdlw логирует входящие запросы и ответы
func RequestLogMdlw(h http.HandlerFunc, zaplog *zap.Logger) http.HandlerFunc {
	return requestLog(h, zaplog, true)
}

// RequestLogNoBodyMdlw: для запросов с паролями и токенами тела не пишутся
func RequestLogNoBodyMdlw(h http.HandlerFunc, zaplog *zap.Logger) http.HandlerFunc {
	return requestLog(h, zaplog, false)
}

func requestLog(h http.HandlerFunc, zaplog *zap.Logger, withBody bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqlog := zaplog.With(zap.String("request_id", uuid.NewString()))

		fields := []zap.Field{
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
		}
		if withBody {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			fields = append(fields, zap.String("body", truncate(bodyBytes)))
		}
		reqlog.Info("got incoming HTTP request", fields...)

		wl := NewResponseWriterLogger(w)

		handlerStart := time.Now()
		h(wl, r)

		fields = []zap.Field{zap.Int("code", wl.statusCode)}
		if withBody {
			fields = append(fields, zap.String("body", truncate(wl.body)))
		}
		fields = append(fields,
			zap.Int("length", wl.length),
			zap.Duration("duration", time.Since(handlerStart)),
		)
		reqlog.Info("send HTTP response", fields...)
	}
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}

type responseWriterLogger struct {
	http.ResponseWriter
	statusCode int
	length     int
	body       []byte
}

func NewResponseWriterLogger(w http.ResponseWriter) *responseWriterLogger {
	return &responseWriterLogger{ResponseWriter: w, statusCode: http.StatusOK}
}

func (wl *responseWriterLogger) WriteHeader(code int) {
	wl.statusCode = code
	wl.ResponseWriter.WriteHeader(code)
}

func (wl *responseWriterLogger) Write(b []byte) (n int, err error) {
	wl.body = append(wl.body, b...)
	n, err = wl.ResponseWriter.Write(b)
	wl.length += n
	return
}
