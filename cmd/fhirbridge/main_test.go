package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/config"
	"github.com/ehr/fhirbridge/internal/service"
)

func newTestEcho(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	b, err := openBackend(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(b.Close)
	if err := b.withCache(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("with cache: %v", err)
	}
	return newEcho(cfg, zerolog.Nop(), service.NewFHIR(zerolog.Nop(), b.cols), b)
}

func memoryConfig() *config.Config {
	return &config.Config{
		StoreDriver:    config.DriverMemory,
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   100,
		RateLimitBurst: 200,
		RequestTimeout: 5 * time.Second,
		BodyLimit:      "1M",
		CacheTTL:       time.Minute,
	}
}

func TestServer_RoutesUnderPrefixAndRoot(t *testing.T) {
	e := newTestEcho(t, memoryConfig())

	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient",
		strings.NewReader(`{"id":"p1","first_name":"Ada","last_name":"Lovelace"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	for _, path := range []string{"/fhir/Patient/p1", "/Patient/p1"} {
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestServer_Health(t *testing.T) {
	e := newTestEcho(t, memoryConfig())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"database":"connected"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestServer_BodyLimit(t *testing.T) {
	cfg := memoryConfig()
	cfg.BodyLimit = "10B"
	e := newTestEcho(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/fhir/Patient",
		strings.NewReader(`{"first_name":"Ada","last_name":"Lovelace"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"too-long"`) {
		t.Errorf("expected too-long outcome, got %s", rec.Body.String())
	}
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	_, err := openBackend(context.Background(), &config.Config{StoreDriver: "sqlite"}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestServer_RateLimitExemptsHealth(t *testing.T) {
	cfg := memoryConfig()
	cfg.RateLimitRPS = 0.5
	cfg.RateLimitBurst = 1
	e := newTestEcho(t, cfg)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fhir/Patient", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first search: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fhir/Patient", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second search: expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"throttled"`) {
		t.Errorf("expected throttled outcome, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health: expected 200 while throttled, got %d", rec.Code)
	}
}
