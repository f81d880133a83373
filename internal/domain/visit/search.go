package visit

import (
	"github.com/ehr/fhirbridge/internal/domain"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

// BuildQuery translates Encounter search parameters. Results are ordered
// by visit date, newest first.
func BuildQuery(params map[string]string) (store.Query, error) {
	q := store.Query{Sort: []store.SortField{store.Desc("visit_date")}}

	if p, ok := params["patient"]; ok {
		q.And(store.Eq("patient_id", fhir.ReferenceID(p)))
	}
	if d, ok := params["date"]; ok {
		t, err := domain.SearchDate("date", d)
		if err != nil {
			return store.Query{}, err
		}
		q.And(store.Eq("visit_date", t))
	}
	return q, nil
}
