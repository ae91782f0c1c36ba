package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func token(t *testing.T, v *Verifier, sub, email string, exp time.Time) string {
	t.Helper()
	s, err := v.Sign(Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	require.NoError(t, err)
	return s
}

func TestVerify(t *testing.T) {
	v := NewVerifier("secret")

	id, err := v.Verify(token(t, v, "p1", " A@X.com ", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, &Identity{ID: "p1", Email: "a@x.com"}, id)

	_, err = v.Verify(token(t, v, "p1", "a@x.com", time.Now().Add(-time.Hour)))
	assert.Error(t, err)

	_, err = v.Verify(token(t, NewVerifier("other"), "p1", "a@x.com", time.Now().Add(time.Hour)))
	assert.Error(t, err)

	_, err = v.Verify(token(t, v, "", "a@x.com", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret")
	var got *Identity
	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, v, "p1", "a@x.com", time.Now().Add(time.Hour)))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.ID)

	got = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, got)
}
