package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/store"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Database  string      `json:"database"`
	Pool      interface{} `json:"pool,omitempty"`
}

// HealthHandler pings the record store. details, when non-nil, adds
// backend statistics to the response.
func HealthHandler(p store.Pinger, details func() interface{}) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:    "healthy",
			Timestamp: fhir.FormatInstant(time.Now()),
			Database:  "connected",
		}
		if details != nil {
			resp.Pool = details()
		}

		if err := p.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Database = "disconnected"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		return c.JSON(http.StatusOK, resp)
	}
}
