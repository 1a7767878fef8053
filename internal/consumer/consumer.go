package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/iurnickita/moneybirdsync/internal/consumer/config"
)

// Событие смены статуса заказа
type OrderStatusEvent struct {
	OrderID   int64  `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

type StatusHandler interface {
	HandleStatusChange(ctx context.Context, orderID int64, oldStatus string, newStatus string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	ErrBadEvent = errors.New("bad order status event")
)

type Consumer struct {
	reader  messageReader
	handler StatusHandler
	zaplog  *zap.Logger
}

func NewConsumer(cfg config.Config, handler StatusHandler, zaplog *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, handler: handler, zaplog: zaplog}
}

// Run читает события до отмены ctx.
// Сообщение подтверждается после обработки или если его не удалось разобрать
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err = c.handle(ctx, msg); err != nil {
			if errors.Is(err, ErrBadEvent) {
				c.zaplog.Warn("order status event skipped",
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			} else {
				// без коммита: событие вернется после перезапуска
				c.zaplog.Error("order status event failed",
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				continue
			}
		}

		if err = c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var event OrderStatusEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("%w: %w", ErrBadEvent, err)
	}
	if event.OrderID <= 0 || event.NewStatus == "" {
		return fmt.Errorf("%w: order_id and new_status are required", ErrBadEvent)
	}

	c.zaplog.Debug("order status event",
		zap.Int64("order_id", event.OrderID),
		zap.String("old_status", event.OldStatus),
		zap.String("new_status", event.NewStatus))

	return c.handler.HandleStatusChange(ctx, event.OrderID, event.OldStatus, event.NewStatus)
}
