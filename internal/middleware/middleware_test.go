package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimitOnePerMinute(t *testing.T) {
	lim := NewMemoryRateLimiter(1)
	ctx := context.Background()

	assert.True(t, lim.Allow(ctx, "client-a"))
	assert.False(t, lim.Allow(ctx, "client-a"))
	// independent client unaffected
	assert.True(t, lim.Allow(ctx, "client-b"))
}

func TestMemoryRateLimitWindowSlides(t *testing.T) {
	lim := NewMemoryRateLimiter(1)
	current := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	lim.now = func() time.Time { return current }
	ctx := context.Background()

	assert.True(t, lim.Allow(ctx, "c"))
	assert.False(t, lim.Allow(ctx, "c"))

	current = current.Add(61 * time.Second)
	assert.True(t, lim.Allow(ctx, "c"))
}

func TestMemoryRateLimitDisabled(t *testing.T) {
	lim := NewMemoryRateLimiter(0)
	for i := 0; i < 100; i++ {
		assert.True(t, lim.Allow(context.Background(), "c"))
	}
}

func TestBuildRateLimiterFallsBackWithoutRedis(t *testing.T) {
	lim := BuildRateLimiter(context.Background(), "", 5)
	_, ok := lim.(*MemoryRateLimiter)
	assert.True(t, ok)

	// unreachable redis degrades rather than failing
	lim = BuildRateLimiter(context.Background(), "redis://127.0.0.1:1/0", 5)
	_, ok = lim.(*MemoryRateLimiter)
	assert.True(t, ok)
}

func TestTraceMiddlewareAssignsAndEchoes(t *testing.T) {
	var seen string
	h := Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(TraceHeader))
}

func TestTraceMiddlewareReusesInboundID(t *testing.T) {
	h := Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "trace-inbound")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "trace-inbound", rec.Header().Get(TraceHeader))
}

func TestBearerAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Trace(BearerAuth("secret-token")(next))

	req := httptest.NewRequest(http.MethodGet, "/ops/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			TraceID string `json:"trace_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "UNAUTHORIZED", envelope.Error.Code)
	assert.NotEmpty(t, envelope.Error.TraceID)

	req = httptest.NewRequest(http.MethodGet, "/ops/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBearerAuthDisabledWithEmptyToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := BearerAuth("")(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitMiddlewareRejectsWithEnvelope(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Trace(RateLimit(NewMemoryRateLimiter(1))(next))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("x-session-id", "session-1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "RATE_LIMITED", envelope.Error.Code)
}
