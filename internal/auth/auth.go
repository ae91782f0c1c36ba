// Package auth достаёт личность принимающего из access-токена BaaS.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"kakrola/internal/logs"
)

var ErrNoIdentity = errors.New("token has no subject or email")

// Identity — кто выполняет запрос.
type Identity struct {
	ID    string
	Email string
}

// Claims — поля access-токена: sub = id профиля, email.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

// Verify проверяет HS256-подпись и срок действия токена.
func (v *Verifier) Verify(raw string) (*Identity, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if c.Subject == "" || c.Email == "" {
		return nil, ErrNoIdentity
	}
	return &Identity{ID: c.Subject, Email: strings.ToLower(strings.TrimSpace(c.Email))}, nil
}

// Sign — выпуск токена; нужен тестам и локальной отладке.
func (v *Verifier) Sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom: nil — запрос анонимный.
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}

// Middleware: Authorization: Bearer <jwt>. Невалидный или отсутствующий
// токен не ошибка — запрос идёт дальше анонимным.
func Middleware(v *Verifier) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const p = "Bearer "
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, p) {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Verify(strings.TrimPrefix(h, p))
			if err != nil {
				logs.WithRequest(r.Context()).WithError(err).Debug("bearer token rejected")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
