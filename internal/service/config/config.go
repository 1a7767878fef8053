package config

import "time"

type Config struct {
	MoneybirdAPIURL     string `validate:"required,url"`
	MoneybirdAppURL     string `validate:"required,url"`
	MoneybirdRatePerMin int    `validate:"gte=0"`
	WooURL              string `validate:"required,url"`
	WooConsumerKey      string
	WooConsumerSecret   string
	RedisAddr           string
	LockTTL             time.Duration `validate:"gt=0"`
}
