package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/config"
	"github.com/ehr/fhirbridge/internal/domain/diagnosis"
	"github.com/ehr/fhirbridge/internal/domain/patient"
	"github.com/ehr/fhirbridge/internal/domain/visit"
	"github.com/ehr/fhirbridge/internal/platform/cache"
	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/mongodb"
	"github.com/ehr/fhirbridge/internal/platform/store"
	"github.com/ehr/fhirbridge/internal/service"
)

// backend is an opened record store plus whatever must be released on exit.
type backend struct {
	cols    service.Collections
	pinger  store.Pinger
	details func() interface{}
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend connects the store selected by STORE_DRIVER.
func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	b := &backend{}

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(ctx); err != nil {
				logger.Warn().Err(err).Msg("mongodb disconnect failed")
			}
		})
		database := client.Database()
		b.cols = service.Collections{
			Patients:  mongodb.NewCollection[patient.Patient](database, patient.CollectionName),
			Visits:    mongodb.NewCollection[visit.Visit](database, visit.CollectionName),
			Diagnoses: mongodb.NewCollection[diagnosis.Diagnosis](database, diagnosis.CollectionName),
		}
		b.pinger = client
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongodb")

	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.cols = service.Collections{
			Patients:  db.NewCollection[patient.Patient](pool, patient.Table),
			Visits:    db.NewCollection[visit.Visit](pool, visit.Table),
			Diagnoses: db.NewCollection[diagnosis.Diagnosis](pool, diagnosis.Table),
		}
		b.pinger = pool
		b.details = func() interface{} { return db.GetPoolStats(pool) }
		logger.Info().Msg("connected to postgres")

	case config.DriverMemory:
		patients := store.NewMemory[patient.Patient]()
		b.cols = service.Collections{
			Patients:  patients,
			Visits:    store.NewMemory[visit.Visit](),
			Diagnoses: store.NewMemory[diagnosis.Diagnosis](),
		}
		b.pinger = patients
		logger.Warn().Msg("using in-memory store; records are lost on exit")

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	return b, nil
}

// withCache puts a read-through cache in front of FindByID. REDIS_URL
// selects Redis; otherwise an in-process cache is used. The memory driver
// and a zero CACHE_TTL are left uncached.
func (b *backend) withCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.StoreDriver == config.DriverMemory || cfg.CacheTTL <= 0 {
		return nil
	}

	var cs cache.Store
	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { _ = r.Close() })
		cs = r
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("redis record cache enabled")
	} else {
		m := cache.NewMemory()
		cleanupCtx, cancel := context.WithCancel(context.Background())
		m.StartCleanup(cleanupCtx, cfg.CacheTTL)
		b.closers = append(b.closers, cancel)
		cs = m
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("in-process record cache enabled")
	}

	b.cols = service.Collections{
		Patients:  cache.NewCollection(b.cols.Patients, cs, patient.ResourceType, cfg.CacheTTL, logger),
		Visits:    cache.NewCollection(b.cols.Visits, cs, visit.ResourceType, cfg.CacheTTL, logger),
		Diagnoses: cache.NewCollection(b.cols.Diagnoses, cs, diagnosis.ResourceType, cfg.CacheTTL, logger),
	}
	return nil
}
