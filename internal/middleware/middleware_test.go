package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"shop-service/internal/access"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator map[string]*access.Principal

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*access.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, errors.New("bad token")
}

func newGatedServer() *echo.Echo {
	auth := stubAuthenticator{
		"admin": {UserID: 1, IsSuperuser: true},
		"user":  {UserID: 2},
	}

	e := echo.New()
	g := e.Group("/items", RequestIDMiddleware, PrincipalMiddleware(auth), SuperuserOrReadOnly)
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	g.GET("", ok)
	g.POST("", ok)
	return e
}

func serve(e *echo.Echo, method, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/items", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSuperuserOrReadOnly(t *testing.T) {
	e := newGatedServer()

	tests := []struct {
		name   string
		method string
		token  string
		want   int
	}{
		{"anonymous read", http.MethodGet, "", http.StatusNoContent},
		{"anonymous write", http.MethodPost, "", http.StatusUnauthorized},
		{"user read", http.MethodGet, "user", http.StatusNoContent},
		{"user write", http.MethodPost, "user", http.StatusForbidden},
		{"admin write", http.MethodPost, "admin", http.StatusNoContent},
		{"bad token read", http.MethodGet, "garbage", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(e, tt.method, tt.token).Code)
		})
	}
}

func TestPrincipalMiddlewareRejectsMalformedHeader(t *testing.T) {
	e := newGatedServer()

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	e := newGatedServer()

	rec := serve(e, http.MethodGet, "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "client-id", rec.Header().Get("X-Request-ID"))
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RateLimiter(client, "login", 2, time.Minute))

	hit := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit())
	assert.Equal(t, http.StatusOK, hit())
	assert.Equal(t, http.StatusTooManyRequests, hit())

	ttl := mr.TTL("rate_limit:login:10.0.0.1")
	require.Greater(t, ttl, time.Duration(0))

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusOK, hit())
}

func TestRateLimiterExpiresCounterWithoutTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// a counter over the limit that lost its expiry
	key := "rate_limit:login:10.0.0.2"
	require.NoError(t, mr.Set(key, "9"))
	require.Zero(t, mr.TTL(key))

	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RateLimiter(client, "login", 2, time.Minute))

	hit := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, hit())
	assert.Equal(t, time.Minute, mr.TTL(key))

	// later hits in the window do not push the expiry out
	mr.FastForward(30 * time.Second)
	assert.Equal(t, http.StatusTooManyRequests, hit())
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	mr.FastForward(30 * time.Second)
	assert.Equal(t, http.StatusOK, hit())
}

func TestRateLimiterDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RateLimiter(nil, "login", 1, time.Minute))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
