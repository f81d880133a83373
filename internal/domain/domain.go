// Package domain holds the write-boundary helpers shared by the record
// packages.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

// ValidationError reports a missing or malformed field on write, or an
// unparseable search parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// DecodeBody unmarshals a JSON request body into dst.
func DecodeBody(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return &ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

// Required returns the trimmed value of a mandatory string field.
func Required(field string, v *string) (string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", Invalid(field, "is required")
	}
	return strings.TrimSpace(*v), nil
}

// Optional normalizes an optional string: blank input is treated as not
// supplied.
func Optional(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

// OptionalDate parses an optional date or dateTime field.
func OptionalDate(field string, v *string) (*time.Time, error) {
	s := Optional(v)
	if s == nil {
		return nil, nil
	}
	t, err := fhir.ParseDate(*s)
	if err != nil {
		return nil, Invalid(field, "invalid date %q", *s)
	}
	return &t, nil
}

// SearchDate parses a date search parameter.
func SearchDate(param, value string) (time.Time, error) {
	t, err := fhir.ParseDate(value)
	if err != nil {
		return time.Time{}, Invalid(param, "invalid date %q", value)
	}
	return t, nil
}

// PickID returns the caller-supplied id when present, otherwise fallback.
func PickID(supplied *string, fallback string) string {
	if s := Optional(supplied); s != nil {
		return *s
	}
	return fallback
}
