package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/iurnickita/moneybirdsync/internal/auth/config"
	"github.com/iurnickita/moneybirdsync/internal/token"
)

type Auth interface {
	Login(w http.ResponseWriter, r *http.Request)
	Middleware(h http.HandlerFunc) http.HandlerFunc
}

const (
	HeaderUserCodeKey = "X-User-Code"
	cookieUserToken   = "moneybirdsyncToken"
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrNoToken            = errors.New("no token")
)

type LoginJSONRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type LoginJSONResponse struct {
	Token string `json:"token"`
}

type auth struct {
	cfg config.Config
}

func NewAuth(cfg config.Config) Auth {
	return &auth{cfg: cfg}
}

func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var request LoginJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.checkCredentials(request.Login, request.Password); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	tokenString, err := token.BuildJWTString(request.Login, a.cfg.JWTSecret, a.cfg.TokenTTL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieUserToken,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(a.cfg.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginJSONResponse{Token: tokenString})
}

// Без хеша пароля вход отключен
func (a *auth) checkCredentials(login string, password string) error {
	if a.cfg.AdminPasswordHash == "" || login != a.cfg.AdminLogin {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// получение пользователя
		userCode, err := a.getUserCode(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// записываем
		r.Header.Set(HeaderUserCodeKey, userCode)

		// передаём управление хендлеру
		h.ServeHTTP(w, r)
	}
}

func (a *auth) getUserCode(_ http.ResponseWriter, r *http.Request) (string, error) {
	var tokenString string

	// заголовок Authorization, затем куки
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		tokenString = bearer
	} else if tokenCookie, err := r.Cookie(cookieUserToken); err == nil {
		tokenString = tokenCookie.Value
	}
	if tokenString == "" {
		return "", ErrNoToken
	}

	return token.GetUserCode(tokenString, a.cfg.JWTSecret)
}
