package diagnosis

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

func ptrStr(s string) *string { return &s }

func TestDiagnosis_ToFHIR_NoCode(t *testing.T) {
	d := &Diagnosis{ID: "d1", VisitID: "v1", PatientID: "p1", Description: "Flu"}
	result := d.ToFHIR()

	code, ok := result["code"].(fhir.CodeableConcept)
	if !ok {
		t.Fatal("code is not fhir.CodeableConcept")
	}
	data, _ := json.Marshal(code)
	if string(data) != `{"text":"Flu"}` {
		t.Errorf("code = %s, want {\"text\":\"Flu\"}", data)
	}

	if result["subject"].(fhir.Reference).Reference != "Patient/p1" {
		t.Errorf("unexpected subject %+v", result["subject"])
	}
	if result["encounter"].(fhir.Reference).Reference != "Encounter/v1" {
		t.Errorf("unexpected encounter %+v", result["encounter"])
	}
	if _, err := time.Parse(time.RFC3339Nano, result["recordedDate"].(string)); err != nil {
		t.Errorf("recordedDate is not ISO-8601: %v", err)
	}
}

func TestDiagnosis_ToFHIR_WithCode(t *testing.T) {
	created := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	d := &Diagnosis{
		ID: "d1", VisitID: "v1", PatientID: "p1",
		ICD10Code: ptrStr("J10.1"), Description: "Influenza",
		CreatedAt: &created, UpdatedAt: &created,
	}
	result := d.ToFHIR()

	code := result["code"].(fhir.CodeableConcept)
	if len(code.Coding) != 1 {
		t.Fatalf("expected one coding, got %d", len(code.Coding))
	}
	c := code.Coding[0]
	if c.System != ICD10System || c.Code != "J10.1" || c.Display != "Influenza" {
		t.Errorf("unexpected coding %+v", c)
	}
	if code.Text != "Influenza" {
		t.Errorf("code.text = %q", code.Text)
	}
	if result["recordedDate"] != "2024-02-03T04:05:06.000Z" {
		t.Errorf("recordedDate = %v", result["recordedDate"])
	}
}

func TestDiagnosis_ToFHIR_FixedStatuses(t *testing.T) {
	data, err := json.Marshal((&Diagnosis{ID: "d1", Description: "x"}).ToFHIR())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"clinicalStatus":{"coding":[{"system":"http://terminology.hl7.org/CodeSystem/condition-clinical","code":"active","display":"Active"}]}`,
		`"verificationStatus":{"coding":[{"system":"http://terminology.hl7.org/CodeSystem/condition-ver-status","code":"confirmed","display":"Confirmed"}]}`,
		`"identifier":[{"use":"usual","value":"d1"}]`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
}
