package patient

import (
	"strings"
	"time"

	"github.com/ehr/fhirbridge/internal/domain"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

// Input is the write body for a patient. Nil fields were not supplied.
type Input struct {
	ID            *string `json:"id"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	DateOfBirth   *string `json:"date_of_birth"`
	Gender        *string `json:"gender"`
	ContactNumber *string `json:"contact_number"`
}

func gender(v *string) (string, error) {
	g := strings.ToLower(strings.TrimSpace(*v))
	if !Genders[g] {
		return "", domain.Invalid("gender", "must be one of male, female, other, unknown; got %q", *v)
	}
	return g, nil
}

// Decode validates a create body and builds the record. id is used when
// the body carries none.
func Decode(body []byte, id string, now time.Time) (*Patient, error) {
	var in Input
	if err := domain.DecodeBody(body, &in); err != nil {
		return nil, err
	}

	first, err := domain.Required("first_name", in.FirstName)
	if err != nil {
		return nil, err
	}
	last, err := domain.Required("last_name", in.LastName)
	if err != nil {
		return nil, err
	}
	dob, err := domain.OptionalDate("date_of_birth", in.DateOfBirth)
	if err != nil {
		return nil, err
	}

	p := &Patient{
		ID:            domain.PickID(in.ID, id),
		FirstName:     first,
		LastName:      last,
		DateOfBirth:   dob,
		Gender:        "unknown",
		ContactNumber: domain.Optional(in.ContactNumber),
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	if domain.Optional(in.Gender) != nil {
		if p.Gender, err = gender(in.Gender); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// DecodeUpdate validates the supplied fields of an update body. The id is
// immutable and ignored.
func DecodeUpdate(body []byte) (store.Fields, error) {
	var in Input
	if err := domain.DecodeBody(body, &in); err != nil {
		return nil, err
	}

	f := store.Fields{}
	if in.FirstName != nil {
		v, err := domain.Required("first_name", in.FirstName)
		if err != nil {
			return nil, err
		}
		f["first_name"] = v
	}
	if in.LastName != nil {
		v, err := domain.Required("last_name", in.LastName)
		if err != nil {
			return nil, err
		}
		f["last_name"] = v
	}
	if in.DateOfBirth != nil {
		dob, err := domain.OptionalDate("date_of_birth", in.DateOfBirth)
		if err != nil {
			return nil, err
		}
		if dob != nil {
			f["date_of_birth"] = *dob
		}
	}
	if in.Gender != nil {
		g, err := gender(in.Gender)
		if err != nil {
			return nil, err
		}
		f["gender"] = g
	}
	if v := domain.Optional(in.ContactNumber); v != nil {
		f["contact_number"] = *v
	}
	return f, nil
}
