package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	authConfig "github.com/iurnickita/moneybirdsync/internal/auth/config"
	consumerConfig "github.com/iurnickita/moneybirdsync/internal/consumer/config"
	handlerConfig "github.com/iurnickita/moneybirdsync/internal/handler/config"
	loggerConfig "github.com/iurnickita/moneybirdsync/internal/logger/config"
	serviceConfig "github.com/iurnickita/moneybirdsync/internal/service/config"
	storeConfig "github.com/iurnickita/moneybirdsync/internal/store/config"
)

type Config struct {
	Handler  handlerConfig.Config
	Service  serviceConfig.Config
	Store    storeConfig.Config
	Logger   loggerConfig.Config
	Consumer consumerConfig.Config
	Auth     authConfig.Config
}

// GetConfig собирает конфигурацию: .env, переменные окружения, флаги.
// Флаги имеют приоритет над окружением.
func GetConfig() (Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	return parse(os.Args[1:], os.LookupEnv)
}

func parse(args []string, lookup func(string) (string, bool)) (Config, error) {
	env := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	var cfg Config
	fs := flag.NewFlagSet("moneybirdsync", flag.ContinueOnError)

	fs.StringVar(&cfg.Handler.ServerAddr, "a", env("SERVER_ADDRESS", ":8080"), "server address")
	fs.StringVar(&cfg.Handler.WebhookSecret, "webhook-secret", env("WC_WEBHOOK_SECRET", ""), "WooCommerce webhook secret")

	fs.StringVar(&cfg.Logger.LogLevel, "l", env("LOG_LEVEL", "info"), "log level")

	fs.StringVar(&cfg.Store.DBDsn, "d", env("DATABASE_URI", ""), "database DSN")

	fs.StringVar(&cfg.Service.MoneybirdAPIURL, "moneybird-api", env("MONEYBIRD_API_URL", "https://moneybird.com/api/v2"), "Moneybird API base URL")
	fs.StringVar(&cfg.Service.MoneybirdAppURL, "moneybird-app", env("MONEYBIRD_APP_URL", "https://moneybird.com"), "Moneybird web app URL")
	fs.IntVar(&cfg.Service.MoneybirdRatePerMin, "moneybird-rate", envInt(env("MONEYBIRD_RATE_PER_MIN", ""), 30), "Moneybird requests per minute, 0 - unlimited")
	fs.StringVar(&cfg.Service.WooURL, "w", env("WC_STORE_URL", ""), "WooCommerce store URL")
	fs.StringVar(&cfg.Service.WooConsumerKey, "wc-key", env("WC_CONSUMER_KEY", ""), "WooCommerce REST consumer key")
	fs.StringVar(&cfg.Service.WooConsumerSecret, "wc-secret", env("WC_CONSUMER_SECRET", ""), "WooCommerce REST consumer secret")
	fs.StringVar(&cfg.Service.RedisAddr, "r", env("REDIS_ADDRESS", ""), "Redis address for sync locks")
	fs.DurationVar(&cfg.Service.LockTTL, "lock-ttl", envDuration(env("SYNC_LOCK_TTL", ""), 3*time.Minute), "sync lock TTL")

	var brokers string
	fs.StringVar(&brokers, "k", env("KAFKA_BROKERS", ""), "Kafka brokers, comma separated")
	fs.StringVar(&cfg.Consumer.Topic, "kafka-topic", env("KAFKA_ORDER_TOPIC", "order-status"), "Kafka topic with order status events")
	fs.StringVar(&cfg.Consumer.GroupID, "kafka-group", env("KAFKA_GROUP_ID", "moneybirdsync"), "Kafka consumer group")

	fs.StringVar(&cfg.Auth.AdminLogin, "admin-login", env("ADMIN_LOGIN", "admin"), "admin login")
	fs.StringVar(&cfg.Auth.AdminPasswordHash, "admin-password-hash", env("ADMIN_PASSWORD_HASH", ""), "admin password bcrypt hash")
	fs.StringVar(&cfg.Auth.JWTSecret, "jwt-secret", env("JWT_SECRET", ""), "admin token signing secret")
	fs.DurationVar(&cfg.Auth.TokenTTL, "token-ttl", envDuration(env("ADMIN_TOKEN_TTL", ""), 12*time.Hour), "admin token TTL")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.Consumer.Brokers = append(cfg.Consumer.Brokers, b)
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envInt(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func envDuration(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
