package visit

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/fhirbridge/internal/domain"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

const (
	minHeartRate = 0
	maxHeartRate = 300
)

var bloodPressurePattern = regexp.MustCompile(`^\d+/\d+$`)

// number accepts a JSON number or a numeric string, as produced by CSV
// ingestion.
type number struct {
	raw string
}

func (n *number) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.raw = strings.TrimSpace(s)
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	n.raw = f.String()
	return nil
}

type VitalsInput struct {
	HeartRate     *number `json:"heart_rate"`
	BloodPressure *string `json:"blood_pressure"`
}

// Input is the write body for a visit. Nil fields were not supplied.
type Input struct {
	ID        *string      `json:"id"`
	PatientID *string      `json:"patient_id"`
	VisitDate *string      `json:"visit_date"`
	Reason    *string      `json:"reason"`
	Vitals    *VitalsInput `json:"vitals"`
}

func (in *VitalsInput) validate() (*Vitals, error) {
	v := &Vitals{}
	if in.HeartRate != nil && in.HeartRate.raw != "" {
		hr, err := strconv.Atoi(in.HeartRate.raw)
		if err != nil {
			return nil, domain.Invalid("vitals.heart_rate", "must be an integer, got %q", in.HeartRate.raw)
		}
		if hr < minHeartRate || hr > maxHeartRate {
			return nil, domain.Invalid("vitals.heart_rate", "must be between %d and %d, got %d", minHeartRate, maxHeartRate, hr)
		}
		v.HeartRate = &hr
	}
	if bp := domain.Optional(in.BloodPressure); bp != nil {
		if !bloodPressurePattern.MatchString(*bp) {
			return nil, domain.Invalid("vitals.blood_pressure", "must be formatted systolic/diastolic, got %q", *bp)
		}
		v.BloodPressure = bp
	}
	if v.HeartRate == nil && v.BloodPressure == nil {
		return nil, nil
	}
	return v, nil
}

// Decode validates a create body and builds the record. visit_date
// defaults to now.
func Decode(body []byte, id string, now time.Time) (*Visit, error) {
	var in Input
	if err := domain.DecodeBody(body, &in); err != nil {
		return nil, err
	}

	patientID, err := domain.Required("patient_id", in.PatientID)
	if err != nil {
		return nil, err
	}
	visitDate, err := domain.OptionalDate("visit_date", in.VisitDate)
	if err != nil {
		return nil, err
	}
	if visitDate == nil {
		visitDate = &now
	}

	v := &Visit{
		ID:        domain.PickID(in.ID, id),
		PatientID: patientID,
		VisitDate: visitDate,
		Reason:    domain.Optional(in.Reason),
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	if in.Vitals != nil {
		if v.Vitals, err = in.Vitals.validate(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// DecodeUpdate validates the supplied fields of an update body. Supplied
// vitals replace the stored vitals as a whole.
func DecodeUpdate(body []byte) (store.Fields, error) {
	var in Input
	if err := domain.DecodeBody(body, &in); err != nil {
		return nil, err
	}

	f := store.Fields{}
	if in.PatientID != nil {
		v, err := domain.Required("patient_id", in.PatientID)
		if err != nil {
			return nil, err
		}
		f["patient_id"] = v
	}
	if in.VisitDate != nil {
		d, err := domain.OptionalDate("visit_date", in.VisitDate)
		if err != nil {
			return nil, err
		}
		if d != nil {
			f["visit_date"] = *d
		}
	}
	if r := domain.Optional(in.Reason); r != nil {
		f["reason"] = *r
	}
	if in.Vitals != nil {
		vitals, err := in.Vitals.validate()
		if err != nil {
			return nil, err
		}
		if vitals != nil {
			f["vitals"] = *vitals
		}
	}
	return f, nil
}
