package patient

import (
	"github.com/ehr/fhirbridge/internal/domain"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

// BuildQuery translates Patient search parameters. name matches first or
// last name by case-insensitive substring; gender and birthdate are exact.
// Results are ordered by last name, then first name.
func BuildQuery(params map[string]string) (store.Query, error) {
	q := store.Query{Sort: []store.SortField{store.Asc("last_name"), store.Asc("first_name")}}

	if name, ok := params["name"]; ok {
		q.And(store.Or(
			store.ContainsFold("first_name", name),
			store.ContainsFold("last_name", name),
		))
	}
	if g, ok := params["gender"]; ok {
		q.And(store.Eq("gender", g))
	}
	if bd, ok := params["birthdate"]; ok {
		t, err := domain.SearchDate("birthdate", bd)
		if err != nil {
			return store.Query{}, err
		}
		q.And(store.Eq("date_of_birth", t))
	}
	return q, nil
}
