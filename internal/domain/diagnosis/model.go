package diagnosis

import (
	"time"

	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

const (
	ResourceType   = "Condition"
	CollectionName = "diagnoses"

	ICD10System = "http://hl7.org/fhir/sid/icd-10"
)

var Table = db.Table{
	Name: CollectionName,
	Columns: []string{
		"id", "visit_id", "patient_id", "icd10_code", "description",
		"created_at", "updated_at",
	},
}

var Indexes = [][]string{
	{"visit_id"},
	{"patient_id"},
	{"icd10_code"},
}

var (
	clinicalActive = fhir.CodeableConcept{
		Coding: []fhir.Coding{{
			System:  "http://terminology.hl7.org/CodeSystem/condition-clinical",
			Code:    "active",
			Display: "Active",
		}},
	}
	verificationConfirmed = fhir.CodeableConcept{
		Coding: []fhir.Coding{{
			System:  "http://terminology.hl7.org/CodeSystem/condition-ver-status",
			Code:    "confirmed",
			Display: "Confirmed",
		}},
	}
)

type Diagnosis struct {
	ID          string     `json:"id" bson:"_id" db:"id"`
	VisitID     string     `json:"visit_id" bson:"visit_id" db:"visit_id"`
	PatientID   string     `json:"patient_id" bson:"patient_id" db:"patient_id"`
	ICD10Code   *string    `json:"icd10_code,omitempty" bson:"icd10_code,omitempty" db:"icd10_code"`
	Description string     `json:"description" bson:"description" db:"description"`
	CreatedAt   *time.Time `json:"created_at,omitempty" bson:"created_at,omitempty" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty" db:"updated_at"`
}

func (d Diagnosis) RecordID() string { return d.ID }

func (d Diagnosis) Fields() store.Fields {
	f := store.Fields{
		"id":          d.ID,
		"visit_id":    d.VisitID,
		"patient_id":  d.PatientID,
		"description": d.Description,
	}
	if d.ICD10Code != nil {
		f["icd10_code"] = *d.ICD10Code
	}
	if d.CreatedAt != nil {
		f["created_at"] = *d.CreatedAt
	}
	if d.UpdatedAt != nil {
		f["updated_at"] = *d.UpdatedAt
	}
	return f
}

// ToFHIR maps the diagnosis to an active, confirmed Condition. The
// description is always the code text; the ICD-10 coding is added only
// when a code was recorded.
func (d *Diagnosis) ToFHIR() map[string]interface{} {
	code := fhir.CodeableConcept{Text: d.Description}
	if d.ICD10Code != nil {
		code.Coding = []fhir.Coding{{
			System:  ICD10System,
			Code:    *d.ICD10Code,
			Display: d.Description,
		}}
	}

	recorded := time.Now()
	if d.CreatedAt != nil {
		recorded = *d.CreatedAt
	}

	return map[string]interface{}{
		"resourceType":       ResourceType,
		"id":                 d.ID,
		"identifier":         fhir.UsualIdentifier(d.ID),
		"clinicalStatus":     clinicalActive,
		"verificationStatus": verificationConfirmed,
		"subject":            fhir.NewReference("Patient", d.PatientID),
		"encounter":          fhir.NewReference("Encounter", d.VisitID),
		"code":               code,
		"recordedDate":       fhir.FormatInstant(recorded),
		"meta":               fhir.LastUpdated(d.UpdatedAt),
	}
}
