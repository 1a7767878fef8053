package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/moneybirdsync/internal/auth"
	"github.com/iurnickita/moneybirdsync/internal/config"
	"github.com/iurnickita/moneybirdsync/internal/consumer"
	"github.com/iurnickita/moneybirdsync/internal/handler"
	"github.com/iurnickita/moneybirdsync/internal/lock"
	"github.com/iurnickita/moneybirdsync/internal/logger"
	"github.com/iurnickita/moneybirdsync/internal/service"
	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
	"github.com/iurnickita/moneybirdsync/internal/service/wooclient"
	"github.com/iurnickita/moneybirdsync/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := store.NewStore(cfg.Store, zaplog)
	if err != nil {
		return err
	}

	// Блокировка заказов: Redis при нескольких экземплярах, иначе в памяти
	var locker lock.Locker
	if cfg.Service.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Service.RedisAddr})
		defer rdb.Close()
		if err = rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		locker = lock.NewRedisLocker(rdb, cfg.Service.LockTTL)
	} else {
		zaplog.Warn("redis is not configured, order locks are local to this process")
		locker = lock.NewLocalLocker()
	}

	orders := wooclient.NewWooClient(cfg.Service)
	moneybird := moneybirdclient.NewFactory(cfg.Service)

	service, err := service.NewService(cfg.Service, store, orders, moneybird, locker, zaplog)
	if err != nil {
		return err
	}
	auth := auth.NewAuth(cfg.Auth)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Serve(ctx, cfg.Handler, auth, service, zaplog)
	})
	if len(cfg.Consumer.Brokers) > 0 {
		g.Go(func() error {
			zaplog.Info("order status consumer started",
				zap.Strings("brokers", cfg.Consumer.Brokers),
				zap.String("topic", cfg.Consumer.Topic))
			return consumer.NewConsumer(cfg.Consumer, service, zaplog).Run(ctx)
		})
	}

	return g.Wait()
}
