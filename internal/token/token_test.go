package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef"

func TestBuildAndParse(t *testing.T) {
	tokenString, err := BuildJWTString("admin", testSecret, time.Hour)
	require.NoError(t, err)

	userCode, err := GetUserCode(tokenString, testSecret)
	require.NoError(t, err)
	require.Equal(t, "admin", userCode)
}

func TestGetUserCodeRejects(t *testing.T) {
	valid, err := BuildJWTString("admin", testSecret, time.Hour)
	require.NoError(t, err)

	expired, err := BuildJWTString("admin", testSecret, -time.Minute)
	require.NoError(t, err)

	noUser, err := BuildJWTString("", testSecret, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserCode: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{name: "wrong_secret", token: valid, secret: "fedcba9876543210"},
		{name: "expired", token: expired, secret: testSecret},
		{name: "no_user", token: noUser, secret: testSecret},
		{name: "alg_none", token: none, secret: testSecret},
		{name: "garbage", token: "not.a.token", secret: testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetUserCode(tt.token, tt.secret)
			require.Error(t, err)
		})
	}
}
