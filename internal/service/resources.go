package service

import (
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/domain/diagnosis"
	"github.com/ehr/fhirbridge/internal/domain/patient"
	"github.com/ehr/fhirbridge/internal/domain/visit"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

// Collections are the record stores backing the three resource types.
type Collections struct {
	Patients  store.Collection[patient.Patient]
	Visits    store.Collection[visit.Visit]
	Diagnoses store.Collection[diagnosis.Diagnosis]
}

// NewFHIR builds a Service exposing Patient, Encounter and Condition.
func NewFHIR(logger zerolog.Logger, cols Collections, opts ...Option) *Service {
	s := New(logger, opts...)
	Register(s, Kind[patient.Patient]{
		ResourceType: patient.ResourceType,
		Collection:   cols.Patients,
		BuildQuery:   patient.BuildQuery,
		ToFHIR:       (*patient.Patient).ToFHIR,
		Decode:       patient.Decode,
		DecodeUpdate: patient.DecodeUpdate,
	})
	Register(s, Kind[visit.Visit]{
		ResourceType: visit.ResourceType,
		Collection:   cols.Visits,
		BuildQuery:   visit.BuildQuery,
		ToFHIR:       (*visit.Visit).ToFHIR,
		Decode:       visit.Decode,
		DecodeUpdate: visit.DecodeUpdate,
	})
	Register(s, Kind[diagnosis.Diagnosis]{
		ResourceType: diagnosis.ResourceType,
		Collection:   cols.Diagnoses,
		BuildQuery:   diagnosis.BuildQuery,
		ToFHIR:       (*diagnosis.Diagnosis).ToFHIR,
		Decode:       diagnosis.Decode,
		DecodeUpdate: diagnosis.DecodeUpdate,
	})
	return s
}

// MemoryCollections returns empty in-process collections.
func MemoryCollections() Collections {
	return Collections{
		Patients:  store.NewMemory[patient.Patient](),
		Visits:    store.NewMemory[visit.Visit](),
		Diagnoses: store.NewMemory[diagnosis.Diagnosis](),
	}
}
