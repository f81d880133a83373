package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

// RequestTimeout bounds each request with a context deadline. The handler
// runs on the request goroutine, so it must observe the context to stop
// early; store calls do. If the deadline has passed when the handler
// returns and nothing has been written yet, the client receives a 504 with
// a timeout OperationOutcome.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				body, _ := json.Marshal(fhir.TimeoutOutcome())
				return c.Blob(http.StatusGatewayTimeout, fhir.MIMEFHIRJSON, body)
			}
			return err
		}
	}
}
