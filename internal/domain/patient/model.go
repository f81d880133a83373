package patient

import (
	"time"

	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

const (
	ResourceType   = "Patient"
	CollectionName = "patients"
)

// Table is the relational layout used by the postgres driver.
var Table = db.Table{
	Name: CollectionName,
	Columns: []string{
		"id", "first_name", "last_name", "date_of_birth", "gender",
		"contact_number", "created_at", "updated_at",
	},
}

// Indexes are the secondary indexes maintained on the collection.
var Indexes = [][]string{
	{"first_name", "last_name"},
	{"date_of_birth"},
}

// Genders accepted for Patient.Gender.
var Genders = map[string]bool{
	"male":    true,
	"female":  true,
	"other":   true,
	"unknown": true,
}

type Patient struct {
	ID            string     `json:"id" bson:"_id" db:"id"`
	FirstName     string     `json:"first_name" bson:"first_name" db:"first_name"`
	LastName      string     `json:"last_name" bson:"last_name" db:"last_name"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty" bson:"date_of_birth,omitempty" db:"date_of_birth"`
	Gender        string     `json:"gender" bson:"gender" db:"gender"`
	ContactNumber *string    `json:"contact_number,omitempty" bson:"contact_number,omitempty" db:"contact_number"`
	CreatedAt     *time.Time `json:"created_at,omitempty" bson:"created_at,omitempty" db:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty" db:"updated_at"`
}

func (p Patient) RecordID() string { return p.ID }

func (p Patient) Fields() store.Fields {
	f := store.Fields{
		"id":         p.ID,
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"gender":     p.Gender,
	}
	if p.DateOfBirth != nil {
		f["date_of_birth"] = *p.DateOfBirth
	}
	if p.ContactNumber != nil {
		f["contact_number"] = *p.ContactNumber
	}
	if p.CreatedAt != nil {
		f["created_at"] = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		f["updated_at"] = *p.UpdatedAt
	}
	return f
}

func (p *Patient) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": ResourceType,
		"id":           p.ID,
		"identifier":   fhir.UsualIdentifier(p.ID),
		"name": []fhir.HumanName{{
			Use:    "official",
			Family: p.LastName,
			Given:  []string{p.FirstName},
		}},
		"meta": fhir.LastUpdated(p.UpdatedAt),
	}

	if p.Gender != "" {
		result["gender"] = p.Gender
	}

	if p.DateOfBirth != nil {
		result["birthDate"] = fhir.FormatDate(*p.DateOfBirth)
	}

	if p.ContactNumber != nil {
		result["telecom"] = []fhir.ContactPoint{{
			System: "phone",
			Value:  *p.ContactNumber,
			Use:    "mobile",
		}}
	}

	return result
}
