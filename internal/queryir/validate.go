package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/membrane/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks a query against the audit schema: the table must exist,
// every predicate column must belong to it, and compared values must be
// strings, ints or bools.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{Valid: len(v.errors) == 0, Errors: v.errors}
}

// validator accumulates errors during traversal.
type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	columns, ok := Columns[sel.From]
	if !ok {
		v.addError("unknown table %q", sel.From)
		return
	}
	if sel.Limit < 0 {
		v.addError("negative limit %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter, columns)
}

func (v *validator) validatePredicate(p Predicate, columns []string) {
	switch pred := p.(type) {
	case nil:
		// no filter
	case Equals:
		v.validateEquals(pred, columns)
	case *Equals:
		v.validateEquals(*pred, columns)
	case After:
		if pred.Seq < 0 {
			v.addError("negative seq %d", pred.Seq)
		}
	case *After:
		if pred.Seq < 0 {
			v.addError("negative seq %d", pred.Seq)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, columns)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, columns)
		}
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals, columns []string) {
	if !slices.Contains(columns, eq.Field) {
		v.addError("unknown column %q", eq.Field)
	}
	switch ir.Normalize(eq.Value).(type) {
	case ir.String, ir.Int, ir.Bool:
	default:
		v.addError("column %q compared to %s", eq.Field, ir.TypeName(eq.Value))
	}
}
