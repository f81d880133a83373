package diagnosis

import (
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

// BuildQuery translates Condition search parameters into exact matches.
// Results are ordered by creation time, newest first.
func BuildQuery(params map[string]string) (store.Query, error) {
	q := store.Query{Sort: []store.SortField{store.Desc("created_at")}}

	if p, ok := params["patient"]; ok {
		q.And(store.Eq("patient_id", fhir.ReferenceID(p)))
	}
	if e, ok := params["encounter"]; ok {
		q.And(store.Eq("visit_id", fhir.ReferenceID(e)))
	}
	if c := NormalizeCode(strPtr(params["code"])); c != nil {
		q.And(store.Eq("icd10_code", *c))
	}
	return q, nil
}

func strPtr(s string) *string { return &s }
