package visit

import (
	"strconv"
	"time"

	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

const (
	ResourceType   = "Encounter"
	CollectionName = "visits"

	// VitalsExtensionURL identifies the free-text vitals summary extension.
	VitalsExtensionURL = "http://hl7.org/fhir/StructureDefinition/encounter-vitals"
)

var Table = db.Table{
	Name: CollectionName,
	Columns: []string{
		"id", "patient_id", "visit_date", "reason", "vitals",
		"created_at", "updated_at",
	},
}

var Indexes = [][]string{
	{"patient_id"},
	{"visit_date"},
}

// ambulatory is the fixed Encounter.class coding.
var ambulatory = fhir.Coding{
	System:  "http://terminology.hl7.org/CodeSystem/v3-ActCode",
	Code:    "AMB",
	Display: "ambulatory",
}

// Vitals are the measurements taken at a visit. Either may be absent.
type Vitals struct {
	HeartRate     *int    `json:"heart_rate,omitempty" bson:"heart_rate,omitempty"`
	BloodPressure *string `json:"blood_pressure,omitempty" bson:"blood_pressure,omitempty"`
}

// Summary renders "HR: {heart_rate}, BP: {blood_pressure}" with N/A for
// missing values.
func (v Vitals) Summary() string {
	hr, bp := "N/A", "N/A"
	if v.HeartRate != nil {
		hr = strconv.Itoa(*v.HeartRate)
	}
	if v.BloodPressure != nil {
		bp = *v.BloodPressure
	}
	return "HR: " + hr + ", BP: " + bp
}

type Visit struct {
	ID        string     `json:"id" bson:"_id" db:"id"`
	PatientID string     `json:"patient_id" bson:"patient_id" db:"patient_id"`
	VisitDate *time.Time `json:"visit_date,omitempty" bson:"visit_date,omitempty" db:"visit_date"`
	Reason    *string    `json:"reason,omitempty" bson:"reason,omitempty" db:"reason"`
	Vitals    *Vitals    `json:"vitals,omitempty" bson:"vitals,omitempty" db:"vitals"`
	CreatedAt *time.Time `json:"created_at,omitempty" bson:"created_at,omitempty" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty" db:"updated_at"`
}

func (v Visit) RecordID() string { return v.ID }

func (v Visit) Fields() store.Fields {
	f := store.Fields{
		"id":         v.ID,
		"patient_id": v.PatientID,
	}
	if v.VisitDate != nil {
		f["visit_date"] = *v.VisitDate
	}
	if v.Reason != nil {
		f["reason"] = *v.Reason
	}
	if v.Vitals != nil {
		f["vitals"] = *v.Vitals
	}
	if v.CreatedAt != nil {
		f["created_at"] = *v.CreatedAt
	}
	if v.UpdatedAt != nil {
		f["updated_at"] = *v.UpdatedAt
	}
	return f
}

// ToFHIR maps the visit to a finished ambulatory Encounter.
func (v *Visit) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": ResourceType,
		"id":           v.ID,
		"identifier":   fhir.UsualIdentifier(v.ID),
		"status":       "finished",
		"class":        ambulatory,
		"subject":      fhir.NewReference("Patient", v.PatientID),
		"meta":         fhir.LastUpdated(v.UpdatedAt),
	}

	if v.VisitDate != nil {
		result["period"] = fhir.Period{Start: fhir.FormatInstant(*v.VisitDate)}
	}

	if v.Reason != nil {
		result["reasonCode"] = []fhir.CodeableConcept{{Text: *v.Reason}}
	}

	if v.Vitals != nil {
		result["extension"] = []fhir.Extension{{
			URL:         VitalsExtensionURL,
			ValueString: v.Vitals.Summary(),
		}}
	}

	return result
}
