package store

// Operator identifies how a Condition compares a field.
type Operator int

const (
	OpEq           Operator = iota // exact equality
	OpContainsFold                 // case-insensitive literal substring
	OpOr                           // any of Any matches
)

// Condition is one predicate of a Query.
type Condition struct {
	Field string
	Op    Operator
	Value interface{}
	Any   []Condition
}

// Eq matches records whose field equals value.
func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// ContainsFold matches records whose string field contains substr,
// ignoring case. substr is matched literally.
func ContainsFold(field, substr string) Condition {
	return Condition{Field: field, Op: OpContainsFold, Value: substr}
}

// Or matches records satisfying at least one of conds.
func Or(conds ...Condition) Condition {
	return Condition{Op: OpOr, Any: conds}
}

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

func Asc(field string) SortField  { return SortField{Field: field} }
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

// Query is a conjunction of conditions plus a fixed sort order.
type Query struct {
	Where []Condition
	Sort  []SortField
}

// And appends a condition to the conjunction.
func (q *Query) And(c Condition) {
	q.Where = append(q.Where, c)
}
