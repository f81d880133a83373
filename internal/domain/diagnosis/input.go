package diagnosis

import (
	"strings"
	"time"

	"github.com/ehr/fhirbridge/internal/domain"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

// Input is the write body for a diagnosis. Nil fields were not supplied.
type Input struct {
	ID          *string `json:"id"`
	VisitID     *string `json:"visit_id"`
	PatientID   *string `json:"patient_id"`
	ICD10Code   *string `json:"icd10_code"`
	Description *string `json:"description"`
}

// NormalizeCode canonicalizes an ICD-10 code: surrounding space is
// removed and letters are upper-cased, so "  e11.9" and "E11.9" are the
// same code. A blank code is nil.
func NormalizeCode(code *string) *string {
	c := domain.Optional(code)
	if c == nil {
		return nil
	}
	n := strings.ToUpper(*c)
	return &n
}

func Decode(body []byte, id string, now time.Time) (*Diagnosis, error) {
	var in Input
	if err := domain.DecodeBody(body, &in); err != nil {
		return nil, err
	}

	visitID, err := domain.Required("visit_id", in.VisitID)
	if err != nil {
		return nil, err
	}
	patientID, err := domain.Required("patient_id", in.PatientID)
	if err != nil {
		return nil, err
	}
	desc, err := domain.Required("description", in.Description)
	if err != nil {
		return nil, err
	}

	return &Diagnosis{
		ID:          domain.PickID(in.ID, id),
		VisitID:     visitID,
		PatientID:   patientID,
		ICD10Code:   NormalizeCode(in.ICD10Code),
		Description: desc,
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}, nil
}

func DecodeUpdate(body []byte) (store.Fields, error) {
	var in Input
	if err := domain.DecodeBody(body, &in); err != nil {
		return nil, err
	}

	f := store.Fields{}
	required := []struct {
		field string
		value *string
	}{
		{"visit_id", in.VisitID},
		{"patient_id", in.PatientID},
		{"description", in.Description},
	}
	for _, r := range required {
		if r.value == nil {
			continue
		}
		v, err := domain.Required(r.field, r.value)
		if err != nil {
			return nil, err
		}
		f[r.field] = v
	}
	if c := NormalizeCode(in.ICD10Code); c != nil {
		f["icd10_code"] = *c
	}
	return f, nil
}
