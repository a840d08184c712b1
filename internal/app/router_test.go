package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalyard/metalyard/internal/auth"
	"github.com/metalyard/metalyard/internal/observability"
	"github.com/metalyard/metalyard/internal/rfq"
)

type tokenVerifier map[string]string

func (v tokenVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	if id, ok := v[token]; ok {
		return auth.Identity{UserID: id}, nil
	}
	return auth.Identity{}, auth.ErrInvalidToken
}

func testRouter(cfg *Config) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterParams{
		Logger:     logger,
		Config:     cfg,
		Verifier:   tokenVerifier{"good": "user-1"},
		RFQHandler: rfq.NewHandler(logger, rfq.NewService(nil, nil, logger)),
		Metrics:    observability.NewMetrics(),
	})
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicEndpoints(t *testing.T) {
	h := testRouter(&Config{RateLimitPerMinute: 100, AppRequestTimeout: time.Second})

	rec := do(h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = do(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "metalyard_http_requests_total")
}

func TestRouterRequiresBearerToken(t *testing.T) {
	h := testRouter(&Config{RateLimitPerMinute: 100})

	rec := do(h, http.MethodGet, "/quotes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"unauthorized"`)

	rec = do(h, http.MethodPost, "/ai-draft-quote", `{}`, map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/parse-rfq", `{"text":"x"}`, map[string]string{"Authorization": "Bearer bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token")
}

func TestRouterAuthenticatedRequestReachesHandler(t *testing.T) {
	h := testRouter(&Config{RateLimitPerMinute: 100})

	rec := do(h, http.MethodPost, "/parse-rfq", `{"text":""}`, map[string]string{
		"Authorization": "Bearer good",
		"Content-Type":  "application/json",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"invalid_input"`)
	assert.NotEmpty(t, rec.Header().Get("X-Ratelimit-Limit"))
}

func TestRouterUnknownRoute(t *testing.T) {
	h := testRouter(&Config{RateLimitPerMinute: 100})

	rec := do(h, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"not_found"`)
}

func TestRouterRateLimit(t *testing.T) {
	h := testRouter(&Config{RateLimitPerMinute: 2})

	for range 2 {
		require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/healthz", "", nil).Code)
}
