package fhir

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SearchParams flattens query values to the first value per parameter.
// Result parameters (those starting with "_") and empty values are dropped.
func SearchParams(values url.Values) map[string]string {
	params := map[string]string{}
	for k, v := range values {
		if len(v) == 0 || strings.HasPrefix(k, "_") {
			continue
		}
		if v[0] == "" {
			continue
		}
		params[k] = v[0]
	}
	return params
}

// ParseDate parses a FHIR date or dateTime search value. Date-only values
// resolve to midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		dateLayout,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// ReferenceID extracts the logical id from a reference search value.
// Handles "Patient/abc" and bare "abc".
func ReferenceID(value string) string {
	if idx := strings.LastIndex(value, "/"); idx >= 0 {
		return value[idx+1:]
	}
	return value
}
