package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("token is not valid")
)

// Claims: утверждения токена администратора
type Claims struct {
	jwt.RegisteredClaims
	UserCode string `json:"user_code"`
}

// BuildJWTString создаёт подписанный токен
func BuildJWTString(userCode string, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserCode: userCode,
	})

	return token.SignedString([]byte(secret))
}

// GetUserCode проверяет токен и возвращает код пользователя
func GetUserCode(tokenString string, secret string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.UserCode == "" {
		return "", ErrInvalidToken
	}

	return claims.UserCode, nil
}
