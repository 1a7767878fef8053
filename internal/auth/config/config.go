package config

import "time"

type Config struct {
	AdminLogin        string `validate:"required"`
	AdminPasswordHash string
	JWTSecret         string        `validate:"required,min=16"`
	TokenTTL          time.Duration `validate:"gt=0"`
}
