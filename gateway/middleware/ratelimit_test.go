package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RatePerSecond: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("write")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/deposit", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesKeys(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"read":  {RatePerSecond: 1, Burst: 1},
		"write": {RatePerSecond: 1, Burst: 1},
	}, nil)
	read := limiter.Middleware("read")(okHandler())
	write := limiter.Middleware("write")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/pool", nil)
	res := httptest.NewRecorder()
	read.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected read request to succeed, got %d", res.Code)
	}
	res = httptest.NewRecorder()
	write.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/deposit", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected write bucket to be independent, got %d", res.Code)
	}
}

func TestRateLimiterPrefersCallerOverIP(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RatePerSecond: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("write")(okHandler())

	for _, caller := range []common.Address{common.HexToAddress("0xa1"), common.HexToAddress("0xb0")} {
		req := httptest.NewRequest(http.MethodPost, "/v1/deposit", nil)
		req = req.WithContext(context.WithValue(req.Context(), ContextKeyCaller, caller))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected %s to get its own bucket, got %d", caller.Hex(), res.Code)
		}
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RatePerSecond: 0.001, Burst: 1},
	}, nil)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware("write")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/v1/deposit", nil)

	handler.ServeHTTP(httptest.NewRecorder(), req)
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected one tracked client, got %d", len(limiter.visitors))
	}
	now = now.Add(2 * visitorTTL)
	other := httptest.NewRequest(http.MethodPost, "/v1/deposit", nil)
	other.Header.Set("X-Real-IP", "10.0.0.9")
	handler.ServeHTTP(httptest.NewRecorder(), other)
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected idle client to be swept, got %d entries", len(limiter.visitors))
	}
}

func TestClientIDUsesForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientID(req); got != "203.0.113.7" {
		t.Fatalf("unexpected client id: %s", got)
	}
}
