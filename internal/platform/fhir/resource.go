package fhir

import (
	"time"
)

// instantLayout renders FHIR instants in UTC with millisecond precision.
const instantLayout = "2006-01-02T15:04:05.000Z07:00"

// dateLayout is the FHIR date (no time component) layout.
const dateLayout = "2006-01-02"

// MIMEFHIRJSON is the media type of every response body.
const MIMEFHIRJSON = "application/fhir+json; charset=utf-8"

type Meta struct {
	LastUpdated string `json:"lastUpdated,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

type Period struct {
	Start string `json:"start,omitempty"`
}

type Extension struct {
	URL         string `json:"url"`
	ValueString string `json:"valueString,omitempty"`
}

// FormatInstant renders t as a FHIR instant, e.g. 2024-03-01T09:30:00.000Z.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

// FormatDate truncates t to a FHIR date (YYYY-MM-DD) in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// LastUpdated returns the meta block for a record, falling back to the
// current time when the record carries no update timestamp.
func LastUpdated(updatedAt *time.Time) Meta {
	if updatedAt != nil {
		return Meta{LastUpdated: FormatInstant(*updatedAt)}
	}
	return Meta{LastUpdated: FormatInstant(time.Now())}
}

// UsualIdentifier is the single business identifier each resource carries,
// mirroring the record id.
func UsualIdentifier(id string) []Identifier {
	return []Identifier{{Use: "usual", Value: id}}
}

// FormatReference builds a relative literal reference such as "Patient/p1".
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}

// NewReference builds a reference with the "{Type} {id}" display text.
func NewReference(resourceType, id string) Reference {
	return Reference{
		Reference: FormatReference(resourceType, id),
		Display:   resourceType + " " + id,
	}
}
