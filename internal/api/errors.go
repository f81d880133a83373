package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

// ErrorHandler renders every error that reaches echo as an
// OperationOutcome. Unknown routes get a not-found issue naming the method
// and path; anything that is not an *echo.HTTPError is a 500 exception.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		var body *fhir.OperationOutcome

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			switch status {
			case http.StatusNotFound, http.StatusMethodNotAllowed:
				status = http.StatusNotFound
				body = fhir.RouteNotFoundOutcome(c.Request().Method, c.Request().URL.Path)
			default:
				body = fhir.NewOperationOutcome(fhir.IssueSeverityError, issueCode(status), message(he))
			}
		default:
			body = fhir.ErrorOutcome(err.Error())
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = writeFHIR(c, status, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}

func message(he *echo.HTTPError) string {
	if he.Internal != nil && he.Message == nil {
		return he.Internal.Error()
	}
	if s, ok := he.Message.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", he.Message)
}

func issueCode(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return fhir.IssueTypeThrottled
	case status == http.StatusRequestEntityTooLarge:
		return fhir.IssueTypeTooLong
	case status == http.StatusGatewayTimeout:
		return fhir.IssueTypeTimeout
	case status >= http.StatusInternalServerError:
		return fhir.IssueTypeException
	default:
		return fhir.IssueTypeInvalid
	}
}
