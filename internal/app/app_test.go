package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VIDTUBE_HTTP_ADDR", "")
	t.Setenv("VIDTUBE_LOG_LEVEL", "")
	t.Setenv("VIDTUBE_DATABASE_URL", "")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.DBSchema != "vidtube" {
		t.Errorf("DBSchema = %q", cfg.DBSchema)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.ReadTimeout)
	}
	if !cfg.MetricsEnabled {
		t.Errorf("MetricsEnabled = false, want true by default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("VIDTUBE_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("VIDTUBE_HTTP_READ_TIMEOUT", "30s")
	t.Setenv("VIDTUBE_DB_MAX_CONNS", "25")
	t.Setenv("VIDTUBE_READINESS_REQUIRE_DB", "true")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.ReadTimeout)
	}
	if cfg.DBMaxConns != 25 {
		t.Errorf("DBMaxConns = %d", cfg.DBMaxConns)
	}
	if !cfg.ReadinessRequireDB {
		t.Errorf("ReadinessRequireDB = false")
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Setenv("VIDTUBE_TOKEN_HMAC_KEY", "")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: false}); err != nil {
		t.Errorf("policy off: %v", err)
	}
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err == nil {
		t.Errorf("policy on without key: want error")
	}

	t.Setenv("VIDTUBE_TOKEN_HMAC_KEY", "too-short")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err == nil {
		t.Errorf("short key: want error")
	}

	t.Setenv("VIDTUBE_TOKEN_HMAC_KEY", "a-hmac-key-that-is-long-enough-0123456789")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err != nil {
		t.Errorf("valid key: %v", err)
	}
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	registerHTTP(mux, discardLogger(), Config{}, nil, false, nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz without db requirement = %d", rec.Code)
	}

	mux = http.NewServeMux()
	registerHTTP(mux, discardLogger(), Config{ReadinessRequireDB: true}, nil, false, nil, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with db requirement = %d", rec.Code)
	}
}

func TestWithRequestLogging(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	h := WithRequestLogging(inner, discardLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Errorf("missing %s header", requestIDHeader)
	}

	// A provided request id is propagated, not replaced.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teapot", nil)
	req.Header.Set(requestIDHeader, "req-123")
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("request id = %q, want req-123", got)
	}
}

func TestNewInMemoryMode(t *testing.T) {
	t.Setenv("VIDTUBE_DATABASE_URL", "")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "access-secret-0123456789-0123456789-abc")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "refresh-secret-0123456789-0123456789-ab")

	cfg := LoadConfig()
	a, err := New(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.dbEnabled {
		t.Errorf("dbEnabled = true without a database url")
	}
	if a.auth == nil {
		t.Errorf("auth handler not wired")
	}
}

func TestNewFailsWithoutSecrets(t *testing.T) {
	t.Setenv("VIDTUBE_DATABASE_URL", "")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "")

	if _, err := New(context.Background(), LoadConfig(), discardLogger()); err == nil {
		t.Fatalf("New without credential secrets: want error")
	}
}
