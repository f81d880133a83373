// Package service orchestrates search, read and write operations for each
// registered resource type, returning a status code and a JSON-ready body.
// Every failure is converted to an OperationOutcome before it leaves the
// package.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/domain"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

// Response is the outcome of one service operation.
type Response struct {
	Status int
	Body   interface{}
}

// Kind binds a FHIR resource type to its record collection and the
// record-specific mapping, filtering and validation functions.
type Kind[T store.Record] struct {
	ResourceType string
	Collection   store.Collection[T]
	BuildQuery   func(params map[string]string) (store.Query, error)
	ToFHIR       func(rec *T) map[string]interface{}
	Decode       func(body []byte, id string, now time.Time) (*T, error)
	DecodeUpdate func(body []byte) (store.Fields, error)
}

type resource interface {
	search(ctx context.Context, params map[string]string) Response
	get(ctx context.Context, id string) Response
	create(ctx context.Context, body []byte) Response
	update(ctx context.Context, id string, body []byte) Response
	remove(ctx context.Context, id string) Response
}

type Service struct {
	kinds  map[string]resource
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the generator used when a create body carries
// no id.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func New(logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		kinds:  make(map[string]resource),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a resource type to s, replacing any earlier registration.
func Register[T store.Record](s *Service, k Kind[T]) {
	s.kinds[k.ResourceType] = &kind[T]{Kind: k, svc: s}
}

// ResourceTypes lists the registered resource types in name order.
func (s *Service) ResourceTypes() []string {
	types := make([]string, 0, len(s.kinds))
	for t := range s.kinds {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (s *Service) lookup(resourceType string) (resource, *Response) {
	r, ok := s.kinds[resourceType]
	if !ok {
		return nil, &Response{
			Status: http.StatusNotFound,
			Body: fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotFound,
				"Unsupported resource type: "+resourceType),
		}
	}
	return r, nil
}

func (s *Service) Search(ctx context.Context, resourceType string, params map[string]string) Response {
	r, miss := s.lookup(resourceType)
	if miss != nil {
		return *miss
	}
	return r.search(ctx, params)
}

func (s *Service) Get(ctx context.Context, resourceType, id string) Response {
	r, miss := s.lookup(resourceType)
	if miss != nil {
		return *miss
	}
	return r.get(ctx, id)
}

func (s *Service) Create(ctx context.Context, resourceType string, body []byte) Response {
	r, miss := s.lookup(resourceType)
	if miss != nil {
		return *miss
	}
	return r.create(ctx, body)
}

func (s *Service) Update(ctx context.Context, resourceType, id string, body []byte) Response {
	r, miss := s.lookup(resourceType)
	if miss != nil {
		return *miss
	}
	return r.update(ctx, id, body)
}

func (s *Service) Delete(ctx context.Context, resourceType, id string) Response {
	r, miss := s.lookup(resourceType)
	if miss != nil {
		return *miss
	}
	return r.remove(ctx, id)
}

type kind[T store.Record] struct {
	Kind[T]
	svc *Service
}

func (k *kind[T]) fail(op string, err error) Response {
	switch {
	case domain.IsValidation(err):
		return Response{Status: http.StatusBadRequest, Body: fhir.ErrorOutcome(err.Error())}
	case errors.Is(err, store.ErrDuplicate):
		return Response{Status: http.StatusBadRequest, Body: fhir.ErrorOutcome(k.ResourceType + " with this id already exists")}
	case errors.Is(err, store.ErrNotFound):
		return Response{Status: http.StatusNotFound, Body: fhir.NotFoundOutcome(k.ResourceType)}
	case errors.Is(err, context.DeadlineExceeded):
		return Response{Status: http.StatusGatewayTimeout, Body: fhir.TimeoutOutcome()}
	}
	k.svc.logger.Error().Err(err).
		Str("resource_type", k.ResourceType).
		Str("op", op).
		Msg("store operation failed")
	return Response{Status: http.StatusInternalServerError, Body: fhir.ErrorOutcome(err.Error())}
}

func (k *kind[T]) search(ctx context.Context, params map[string]string) Response {
	q, err := k.BuildQuery(params)
	if err != nil {
		return k.fail("search", err)
	}
	recs, err := k.Collection.Find(ctx, q)
	if err != nil {
		return k.fail("search", err)
	}
	resources := make([]interface{}, 0, len(recs))
	for _, rec := range recs {
		resources = append(resources, k.ToFHIR(rec))
	}
	return Response{Status: http.StatusOK, Body: fhir.NewSearchBundle(resources)}
}

func (k *kind[T]) get(ctx context.Context, id string) Response {
	rec, err := k.Collection.FindByID(ctx, id)
	if err != nil {
		return k.fail("read", err)
	}
	return Response{Status: http.StatusOK, Body: k.ToFHIR(rec)}
}

func (k *kind[T]) create(ctx context.Context, body []byte) Response {
	rec, err := k.Decode(body, k.svc.newID(), k.svc.now())
	if err != nil {
		return k.fail("create", err)
	}
	if err := k.Collection.Insert(ctx, rec); err != nil {
		return k.fail("create", err)
	}
	return Response{Status: http.StatusCreated, Body: k.ToFHIR(rec)}
}

func (k *kind[T]) update(ctx context.Context, id string, body []byte) Response {
	fields, err := k.DecodeUpdate(body)
	if err != nil {
		return k.fail("update", err)
	}
	fields["updated_at"] = k.svc.now()
	rec, err := k.Collection.UpdateByID(ctx, id, fields)
	if err != nil {
		return k.fail("update", err)
	}
	return Response{Status: http.StatusOK, Body: k.ToFHIR(rec)}
}

func (k *kind[T]) remove(ctx context.Context, id string) Response {
	found, err := k.Collection.DeleteByID(ctx, id)
	if err != nil {
		return k.fail("delete", err)
	}
	if !found {
		return k.fail("delete", store.ErrNotFound)
	}
	return Response{
		Status: http.StatusOK,
		Body:   map[string]string{"message": fmt.Sprintf("%s deleted successfully", k.ResourceType)},
	}
}
