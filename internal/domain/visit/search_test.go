package visit

import (
	"context"
	"testing"
	"time"

	"github.com/ehr/fhirbridge/internal/domain"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

func TestBuildQuery_PatientReference(t *testing.T) {
	q, err := BuildQuery(map[string]string{"patient": "Patient/p1", "unknown": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Where) != 1 || q.Where[0].Field != "patient_id" || q.Where[0].Value != "p1" {
		t.Errorf("unexpected conditions %+v", q.Where)
	}
	if len(q.Sort) != 1 || q.Sort[0].Field != "visit_date" || !q.Sort[0].Desc {
		t.Errorf("unexpected sort %+v", q.Sort)
	}
}

func TestBuildQuery_BadDate(t *testing.T) {
	if _, err := BuildQuery(map[string]string{"date": "x"}); !domain.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSearch_ByPatientNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory[Visit]()
	d1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, v := range []Visit{
		{ID: "v1", PatientID: "p1", VisitDate: &d1},
		{ID: "v2", PatientID: "p1", VisitDate: &d2, Vitals: &Vitals{HeartRate: ptrInt(0)}},
		{ID: "v3", PatientID: "p2", VisitDate: &d2},
	} {
		v := v
		if err := m.Insert(ctx, &v); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	q, _ := BuildQuery(map[string]string{"patient": "p1"})
	got, err := m.Find(ctx, q)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 || got[0].ID != "v2" || got[1].ID != "v1" {
		t.Fatalf("unexpected results %+v", got)
	}
	if got[0].Vitals == nil || got[0].Vitals.HeartRate == nil || *got[0].Vitals.HeartRate != 0 {
		t.Errorf("heart rate 0 should round-trip, got %+v", got[0].Vitals)
	}

	q, _ = BuildQuery(map[string]string{"date": "2024-01-01T09:00:00Z"})
	got, _ = m.Find(ctx, q)
	if len(got) != 1 || got[0].ID != "v1" {
		t.Errorf("expected v1 for exact date, got %d results", len(got))
	}
}
