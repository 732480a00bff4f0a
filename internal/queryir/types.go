package queryir

import "github.com/roach88/membrane/internal/ir"

// Audit tables.
const (
	TableFaults   = "faults"
	TableOutcomes = "outcomes"
)

// Columns lists each table's columns in select order. Only these names may
// appear in a Predicate.
var Columns = map[string][]string{
	TableFaults:   {"seq", "session", "op", "object", "name", "code"},
	TableOutcomes: {"seq", "session", "module_id", "success", "value", "describe", "error"},
}

// Query represents an abstract audit query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a row filter.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: column = value
//   - After: seq > n
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads rows of one audit table.
//
//	SELECT <Columns[From]> FROM <From> WHERE <Filter> ORDER BY seq ASC LIMIT <Limit>
//
// Rows always come back in seq order. Limit 0 means no limit.
type Select struct {
	From   string    // TableFaults or TableOutcomes
	Filter Predicate // nil = every row
	Limit  int
}

func (Select) queryNode() {}

// Equals matches rows whose column equals a primitive value. Strings, ints
// and bools are accepted; null and undefined never match anything and are
// rejected by Validate.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// After matches rows recorded after seq.
type After struct {
	Seq int64
}

func (After) predicateNode() {}

// And is a conjunction. An empty And matches every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Eq returns Equals{field, value} for a non-empty value and nil otherwise,
// so optional filters can be passed straight to All.
func Eq(field, value string) Predicate {
	if value == "" {
		return nil
	}
	return Equals{Field: field, Value: ir.String(value)}
}

// All conjoins the non-nil predicates. It returns nil when none are left
// and the single predicate when only one is.
func All(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
