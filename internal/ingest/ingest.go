// Package ingest loads CSV exports into the record store through the
// service layer, so every row gets the same validation and defaults as an
// API write.
package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/service"
)

// Creator is the part of the service used by Load.
type Creator interface {
	Create(ctx context.Context, resourceType string, body []byte) service.Response
}

// RowError describes a row that could not be created. Row is 1-based and
// counts data rows only.
type RowError struct {
	Row     int    `json:"row"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result summarises a load.
type Result struct {
	Rows    int        `json:"rows"`
	Created int        `json:"created"`
	Failed  []RowError `json:"failed,omitempty"`
}

// ReadRows parses CSV with a header row. Headers and cells are trimmed and
// empty cells are left out of the row. A dotted header such as
// vitals.heart_rate becomes a nested object. Blank lines are skipped.
func ReadRows(r io.Reader) ([]map[string]interface{}, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]interface{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := map[string]interface{}{}
		for i, name := range header {
			if name == "" || i >= len(rec) {
				continue
			}
			if v := strings.TrimSpace(rec[i]); v != "" {
				setPath(row, strings.Split(name, "."), v)
			}
		}
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func setPath(m map[string]interface{}, path []string, v string) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// Load creates one resourceType record per CSV row. A rejected row is
// recorded in the result and does not stop the load.
func Load(ctx context.Context, c Creator, resourceType string, r io.Reader, logger zerolog.Logger) (*Result, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return nil, err
	}

	res := &Result{Rows: len(rows)}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		body, err := json.Marshal(row)
		if err != nil {
			return res, fmt.Errorf("encode row %d: %w", i+1, err)
		}

		resp := c.Create(ctx, resourceType, body)
		if resp.Status == http.StatusCreated {
			res.Created++
			continue
		}

		rowErr := RowError{Row: i + 1, Status: resp.Status, Message: diagnostics(resp.Body)}
		logger.Warn().
			Str("resource", resourceType).
			Int("row", rowErr.Row).
			Int("status", rowErr.Status).
			Msg(rowErr.Message)
		res.Failed = append(res.Failed, rowErr)
	}
	return res, nil
}

func diagnostics(body interface{}) string {
	if o, ok := body.(*fhir.OperationOutcome); ok && len(o.Issue) > 0 {
		return o.Issue[0].Diagnostics
	}
	return fmt.Sprintf("%v", body)
}
