package fhir

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFormatInstant(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2024, 3, 1, 15, 0, 0, 123456789, loc)

	got := FormatInstant(ts)
	if got != "2024-03-01T09:30:00.123Z" {
		t.Errorf("FormatInstant = %q, want 2024-03-01T09:30:00.123Z", got)
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(1815, 12, 10, 23, 59, 0, 0, time.UTC)
	if got := FormatDate(ts); got != "1815-12-10" {
		t.Errorf("FormatDate = %q, want 1815-12-10", got)
	}
}

func TestLastUpdated(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := LastUpdated(&ts).LastUpdated; got != "2024-01-02T03:04:05.000Z" {
		t.Errorf("LastUpdated = %q", got)
	}

	before := time.Now().Add(-time.Second)
	got := LastUpdated(nil).LastUpdated
	parsed, err := time.Parse(time.RFC3339Nano, got)
	if err != nil {
		t.Fatalf("fallback lastUpdated %q is not ISO-8601: %v", got, err)
	}
	if parsed.Before(before) {
		t.Errorf("fallback lastUpdated %v should be now", parsed)
	}
}

func TestNewReference(t *testing.T) {
	ref := NewReference("Patient", "p1")
	if ref.Reference != "Patient/p1" {
		t.Errorf("reference = %q", ref.Reference)
	}
	if ref.Display != "Patient p1" {
		t.Errorf("display = %q", ref.Display)
	}
}

func TestCodeableConcept_OmitsEmptyCoding(t *testing.T) {
	data, _ := json.Marshal(CodeableConcept{Text: "Flu"})
	if string(data) != `{"text":"Flu"}` {
		t.Errorf("got %s", data)
	}
}

func TestNewReference_JSONShape(t *testing.T) {
	data, _ := json.Marshal(struct {
		Subject Reference `json:"subject"`
		Meta    Meta      `json:"meta"`
		Period  Period    `json:"period"`
	}{
		Subject: NewReference("Patient", "p1"),
		Meta:    Meta{LastUpdated: "2024-01-02T03:04:05.000Z"},
		Period:  Period{Start: "2024-01-15T10:00:00.000Z"},
	})
	want := `{"subject":{"reference":"Patient/p1","display":"Patient p1"},` +
		`"meta":{"lastUpdated":"2024-01-02T03:04:05.000Z"},` +
		`"period":{"start":"2024-01-15T10:00:00.000Z"}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
