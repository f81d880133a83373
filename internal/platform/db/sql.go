package db

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ehr/fhirbridge/internal/platform/store"
)

// Table describes the relational layout of one record type.
type Table struct {
	Name    string
	Columns []string
}

func (t Table) has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

func (t Table) columnList() string {
	return strings.Join(t.Columns, ", ")
}

// sqlBuilder accumulates positional arguments.
type sqlBuilder struct {
	table Table
	args  []interface{}
}

func (b *sqlBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) column(field string) (string, error) {
	if !b.table.has(field) {
		return "", fmt.Errorf("unknown column %q on %s", field, b.table.Name)
	}
	return field, nil
}

func (b *sqlBuilder) condition(c store.Condition) (string, error) {
	switch c.Op {
	case store.OpOr:
		parts := make([]string, 0, len(c.Any))
		for _, sub := range c.Any {
			p, err := b.condition(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	case store.OpContainsFold:
		col, err := b.column(c.Field)
		if err != nil {
			return "", err
		}
		s, _ := c.Value.(string)
		return col + " ILIKE " + b.arg("%"+EscapeLike(s)+"%"), nil
	default:
		col, err := b.column(c.Field)
		if err != nil {
			return "", err
		}
		return col + " = " + b.arg(c.Value), nil
	}
}

// EscapeLike escapes LIKE metacharacters so s matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// BuildSelect renders a SELECT for q. NULLs sort first ascending and last
// descending, matching document store ordering of missing fields.
func BuildSelect(t Table, q store.Query) (string, []interface{}, error) {
	b := &sqlBuilder{table: t}
	var sb strings.Builder
	sb.WriteString("SELECT " + t.columnList() + " FROM " + t.Name)

	if len(q.Where) > 0 {
		clauses := make([]string, 0, len(q.Where))
		for _, c := range q.Where {
			clause, err := b.condition(c)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
		}
		sb.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}

	if len(q.Sort) > 0 {
		order := make([]string, 0, len(q.Sort))
		for _, s := range q.Sort {
			col, err := b.column(s.Field)
			if err != nil {
				return "", nil, err
			}
			if s.Desc {
				order = append(order, col+" DESC NULLS LAST")
			} else {
				order = append(order, col+" ASC NULLS FIRST")
			}
		}
		sb.WriteString(" ORDER BY " + strings.Join(order, ", "))
	}
	return sb.String(), b.args, nil
}

// BuildInsert renders an INSERT of the given fields in key order.
func BuildInsert(t Table, fields store.Fields) (string, []interface{}, error) {
	b := &sqlBuilder{table: t}
	keys := sortedKeys(fields)
	cols := make([]string, 0, len(keys))
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		col, err := b.column(k)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
		vals = append(vals, b.arg(fields[k]))
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), strings.Join(vals, ", "))
	return sql, b.args, nil
}

// BuildUpdate renders an UPDATE ... RETURNING for the row with id. The id
// column itself is never updated.
func BuildUpdate(t Table, id string, fields store.Fields) (string, []interface{}, error) {
	b := &sqlBuilder{table: t}
	where := "id = " + b.arg(id)
	keys := sortedKeys(fields)
	sets := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "id" {
			continue
		}
		col, err := b.column(k)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, col+" = "+b.arg(fields[k]))
	}
	if len(sets) == 0 {
		return "SELECT " + t.columnList() + " FROM " + t.Name + " WHERE " + where, b.args, nil
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s", t.Name, strings.Join(sets, ", "), where, t.columnList())
	return sql, b.args, nil
}

func sortedKeys(f store.Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
