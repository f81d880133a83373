package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/fhirbridge/internal/api"
	"github.com/ehr/fhirbridge/internal/config"
	"github.com/ehr/fhirbridge/internal/domain/diagnosis"
	"github.com/ehr/fhirbridge/internal/domain/patient"
	"github.com/ehr/fhirbridge/internal/domain/visit"
	"github.com/ehr/fhirbridge/internal/ingest"
	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/middleware"
	"github.com/ehr/fhirbridge/internal/platform/mongodb"
	"github.com/ehr/fhirbridge/internal/service"
	"github.com/ehr/fhirbridge/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fhirbridge",
		Short: "FHIR R4 API over legacy patient, visit and diagnosis records",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(indexesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the FHIR API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Create records from a CSV file with a header row",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			b, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			svc := service.NewFHIR(logger, b.cols)
			if !supported(svc, kind) {
				return fmt.Errorf("--kind must be one of %s, got %q", strings.Join(svc.ResourceTypes(), ", "), kind)
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := ingest.Load(ctx, svc, kind, f, logger)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			fmt.Printf("Read %d row(s), created %d %s record(s).\n", res.Rows, res.Created, kind)
			for _, e := range res.Failed {
				fmt.Printf("  row %-6d %-4d %s\n", e.Row, e.Status, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().String("kind", patient.ResourceType, "Resource type to create (Patient, Encounter, Condition)")
	cmd.Flags().String("file", "", "Path to the CSV file")
	return cmd
}

func supported(svc *service.Service, kind string) bool {
	for _, rt := range svc.ResourceTypes() {
		if rt == kind {
			return true
		}
	}
	return false
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run PostgreSQL migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, migrator *db.Migrator) error {
				count, err := migrator.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, migrator *db.Migrator) error {
				statuses, err := migrator.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func withPool(fn func(ctx context.Context, migrator *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return fmt.Errorf("migrations apply to STORE_DRIVER=%s only, current driver is %q", config.DriverPostgres, cfg.StoreDriver)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create MongoDB secondary indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.DriverMongo {
				return fmt.Errorf("indexes apply to STORE_DRIVER=%s only, current driver is %q", config.DriverMongo, cfg.StoreDriver)
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
			if err != nil {
				return err
			}
			defer client.Close(context.Background())

			err = mongodb.EnsureIndexes(ctx, client.Database(), map[string][][]string{
				patient.CollectionName:   patient.Indexes,
				visit.CollectionName:     visit.Indexes,
				diagnosis.CollectionName: diagnosis.Indexes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Indexes ensured on database %s.\n", cfg.MongoDatabase)
			return nil
		},
	}
}

func runServer() error {
	// Logger
	logger := newLogger()

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Store
	ctx := context.Background()
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer b.Close()
	if err := b.withCache(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to enable record cache")
	}

	svc := service.NewFHIR(logger, b.cols)

	e := newEcho(cfg, logger, svc, b)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("driver", cfg.StoreDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger, svc *service.Service, b *backend) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	rateLimitCfg.Skip = func(c echo.Context) bool {
		return c.Request().URL.Path == "/health"
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	var resourceMW []echo.MiddlewareFunc
	if cfg.RequestTimeout > 0 {
		resourceMW = append(resourceMW, middleware.RequestTimeout(cfg.RequestTimeout))
	}

	api.Mount(e, api.NewHandler(svc), api.HealthHandler(b.pinger, b.details), resourceMW...)
	return e
}
