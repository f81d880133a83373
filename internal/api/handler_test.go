package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/middleware"
	"github.com/ehr/fhirbridge/internal/service"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	n := 0
	svc := service.NewFHIR(zerolog.Nop(), service.MemoryCollections(),
		service.WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }),
		service.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	e.Use(middleware.Recovery(zerolog.Nop()))
	Mount(e, NewHandler(svc), HealthHandler(stubPinger{}, nil))
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return m
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) fhir.OperationOutcome {
	t.Helper()
	var o fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	if o.ResourceType != "OperationOutcome" || len(o.Issue) != 1 {
		t.Fatalf("unexpected outcome %+v", o)
	}
	return o
}

func TestPatientLifecycle(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/fhir/Patient", `{"first_name":"Ada","last_name":"Lovelace","gender":"female","date_of_birth":"1815-12-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != fhir.MIMEFHIRJSON {
		t.Errorf("content type = %q", ct)
	}
	created := decodeMap(t, rec)
	if created["id"] != "id-1" || created["birthDate"] != "1815-12-10" {
		t.Errorf("unexpected resource %v", created)
	}

	rec = do(e, http.MethodGet, "/Patient/id-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", rec.Code)
	}

	rec = do(e, http.MethodPut, "/fhir/Patient/id-1", `{"contact_number":"555-0100"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	telecom, ok := decodeMap(t, rec)["telecom"].([]interface{})
	if !ok || len(telecom) != 1 {
		t.Errorf("expected one telecom entry, got %v", telecom)
	}

	rec = do(e, http.MethodDelete, "/fhir/Patient/id-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if msg := decodeMap(t, rec)["message"]; msg != "Patient deleted successfully" {
		t.Errorf("message = %v", msg)
	}

	rec = do(e, http.MethodGet, "/fhir/Patient/id-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	if o := decodeOutcome(t, rec); o.Issue[0].Diagnostics != "Patient not found" {
		t.Errorf("diagnostics = %q", o.Issue[0].Diagnostics)
	}
}

func TestSearchBundle(t *testing.T) {
	e := newTestServer(t)
	do(e, http.MethodPost, "/Patient", `{"id":"p1","first_name":"John","last_name":"Doe","gender":"male"}`)
	do(e, http.MethodPost, "/Patient", `{"id":"p2","first_name":"Jane","last_name":"Smith","gender":"female"}`)
	do(e, http.MethodPost, "/Encounter", `{"id":"v1","patient_id":"p1","visit_date":"2024-01-15T10:00:00Z","reason":"Checkup","vitals":{"heart_rate":72}}`)

	rec := do(e, http.MethodGet, "/fhir/Patient?name=doe&_count=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	bundle := decodeMap(t, rec)
	if bundle["resourceType"] != "Bundle" || bundle["type"] != "searchset" {
		t.Fatalf("unexpected bundle %v", bundle)
	}
	if bundle["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", bundle["total"])
	}

	rec = do(e, http.MethodGet, "/fhir/Encounter?patient=Patient/p1", "")
	bundle = decodeMap(t, rec)
	entries := bundle["entry"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 encounter, got %d", len(entries))
	}
	enc := entries[0].(map[string]interface{})["resource"].(map[string]interface{})
	if enc["resourceType"] != "Encounter" {
		t.Errorf("unexpected entry %v", enc)
	}

	rec = do(e, http.MethodGet, "/fhir/Condition", "")
	if decodeMap(t, rec)["total"].(float64) != 0 {
		t.Errorf("expected empty Condition bundle")
	}
}

func TestValidationIs400(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/fhir/Patient", `{"first_name":"Ada"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if o := decodeOutcome(t, rec); o.Issue[0].Code != fhir.IssueTypeException {
		t.Errorf("code = %q", o.Issue[0].Code)
	}

	rec = do(e, http.MethodPost, "/fhir/Patient", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/fhir/Patient?birthdate=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: expected 400, got %d", rec.Code)
	}
}

func TestUnknownRouteIs404Outcome(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodGet, "/fhir/Observation", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	o := decodeOutcome(t, rec)
	if o.Issue[0].Code != fhir.IssueTypeNotFound {
		t.Errorf("code = %q", o.Issue[0].Code)
	}
	if o.Issue[0].Diagnostics != "Resource not found: GET /fhir/Observation" {
		t.Errorf("diagnostics = %q", o.Issue[0].Diagnostics)
	}
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	e.Use(middleware.Recovery(zerolog.Nop()))
	e.GET("/boom", func(c echo.Context) error { return errors.New("store unavailable") })
	e.GET("/panic", func(c echo.Context) error { panic("kaboom") })
	e.GET("/limited", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	})

	tests := []struct {
		path   string
		status int
		code   string
		diag   string
	}{
		{"/boom", http.StatusInternalServerError, fhir.IssueTypeException, "store unavailable"},
		{"/panic", http.StatusInternalServerError, fhir.IssueTypeException, "kaboom"},
		{"/limited", http.StatusTooManyRequests, fhir.IssueTypeThrottled, "rate limit exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			o := decodeOutcome(t, rec)
			if o.Issue[0].Code != tt.code || o.Issue[0].Diagnostics != tt.diag {
				t.Errorf("unexpected issue %+v", o.Issue[0])
			}
		})
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/health", HealthHandler(stubPinger{}, func() interface{} { return map[string]int{"total_conns": 2} }))
	e.GET("/down", HealthHandler(stubPinger{err: errors.New("no route to host")}, nil))

	rec := do(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["status"] != "healthy" || body["database"] != "connected" {
		t.Errorf("unexpected body %v", body)
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}
	if body["pool"] == nil {
		t.Error("expected pool details")
	}

	rec = do(e, http.MethodGet, "/down", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["database"] != "disconnected" {
		t.Errorf("unexpected body %v", body)
	}
}
