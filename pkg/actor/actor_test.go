package actor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	assert.Equal(t, "system", FromContext(context.Background()))

	ctx := WithActor(context.Background(), "alice")
	assert.Equal(t, "alice", FromContext(ctx))

	ctx = WithActor(context.Background(), "")
	assert.Equal(t, "system", FromContext(ctx))
}

func resolveThrough(t *testing.T, cfg Config, decorate func(*http.Request)) string {
	t.Helper()
	mw, err := Middleware(cfg)
	require.NoError(t, err)

	var got string
	handler := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if decorate != nil {
		decorate(req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestMiddleware_HeaderWins(t *testing.T) {
	got := resolveThrough(t, Config{}, func(r *http.Request) {
		r.Header.Set("X-User-Principal", "alice")
		r.Header.Set("Authorization", "Bearer ignored")
	})
	assert.Equal(t, "alice", got)
}

func TestMiddleware_NoIdentityDefaultsToSystem(t *testing.T) {
	got := resolveThrough(t, Config{}, nil)
	assert.Equal(t, "system", got)
}

func TestMiddleware_BearerSubjectTrustedProxyMode(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob"})
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	got := resolveThrough(t, Config{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signed)
	})
	assert.Equal(t, "bob", got)
}

func TestMiddleware_MalformedBearerDefaultsToSystem(t *testing.T) {
	got := resolveThrough(t, Config{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-jwt")
	})
	assert.Equal(t, "system", got)
}

func TestMiddleware_TokenWithoutSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "qm"})
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	got := resolveThrough(t, Config{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signed)
	})
	assert.Equal(t, "system", got)
}
