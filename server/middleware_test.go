package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medikit/prescriptor-api/config"
	"github.com/medikit/prescriptor-api/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRealIPMiddleware(t *testing.T) {
	var got string
	handler := RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.RemoteAddr
	}))

	req := httptest.NewRequest(http.MethodGet, "/search/medications?q=amox", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "203.0.113.7" {
		t.Errorf("remote addr = %q, want first forwarded IP", got)
	}
}

func TestRequestSizeMiddlewareRejectsLargeBody(t *testing.T) {
	logging.InitLogger("")
	cfg := &config.Config{MaxRequestBody: 100, MaxHeaderSize: 4096}
	handler := RequestSizeMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/prescriptions", nil)
	req.Header.Set("Content-Length", "5000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRequestSizeMiddlewareRejectsLargeHeaders(t *testing.T) {
	logging.InitLogger("")
	cfg := &config.Config{MaxRequestBody: 1048576, MaxHeaderSize: 50}
	handler := RequestSizeMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Big-Header", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestHeaderFieldsTooLarge {
		t.Errorf("status = %d, want 431", rec.Code)
	}
}

func TestRateLimiterExhaustsBudget(t *testing.T) {
	rl := NewRateLimiter(0.001, 25)
	handler := rl.Handler(okHandler())

	// Searches cost 5 tokens, so a burst of 25 allows exactly 5.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/search/medications?q=amox", nil)
		req.RemoteAddr = "198.51.100.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/search/medications?q=amox", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 after budget exhausted", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(0.001, 5)
	handler := rl.Handler(okHandler())

	exhaust := httptest.NewRequest(http.MethodGet, "/search/medications?q=amox", nil)
	exhaust.RemoteAddr = "198.51.100.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), exhaust)

	other := httptest.NewRequest(http.MethodGet, "/search/medications?q=amox", nil)
	other.RemoteAddr = "198.51.100.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, a different client should have its own bucket", rec.Code)
	}
}

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		path string
		want int64
	}{
		{"/health", 1},
		{"/metrics", 1},
		{"/sync", 200},
		{"/search/medications", 5},
		{"/suggestions/J02.0", 5},
		{"/learn", 20},
		{"/treatments/abc", 20},
		{"/prescriptions", 20},
		{"/patients/abc", 10},
		{"/finance/summary", 50},
		{"/finance/config", 10},
		{"/unknown", 10},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := getTokenCost(req); got != tt.want {
			t.Errorf("getTokenCost(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}
