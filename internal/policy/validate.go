package policy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/membrane/internal/membrane"
)

// Validation error codes (P100-P199)
const (
	ErrEmptyPath        = "P101" // path empty or has an empty segment
	ErrReservedPath     = "P102" // path segment in the reserved namespace
	ErrUnknownShape     = "P103" // shape not one of the accepted names
	ErrUnknownGrant     = "P104" // grant not one of the accepted names
	ErrSuperMisplaced   = "P105" // super given on a non-constructor
	ErrSuperMissing     = "P106" // constructor without super
	ErrDuplicatePath    = "P107" // path listed twice
	ErrHookOnData       = "P108" // pre/post hook on a data slot
	ErrSuperCycle       = "P109" // constructors derive from each other
	ErrPrototypeSegment = "P110" // "prototype" as the first segment
)

// RootConstructors are the super names resolved without a table entry.
var RootConstructors = []string{"Object", "Array", "Error"}

var (
	validShapes = []string{ShapeNone, ShapePlain, ShapeConstructor, ShapeExophoric, ShapeInnocent}
	validGrants = []string{GrantRead, GrantEnum, GrantCall, GrantSet, GrantDelete}
)

// ValidationError represents a table validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Index   int    `json:"index"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] entry %d: %s: %s", e.Code, e.Index, e.Field, e.Message)
}

// Validate checks a table. Returns all errors found (does not fail-fast).
func Validate(t *Table) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]int)

	for i, e := range t.Entries {
		add := func(field, code, format string, args ...any) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf(format, args...),
				Code:    code,
				Index:   i,
			})
		}

		segs := e.Segments()
		switch {
		case slices.Contains(segs, ""):
			add("path", ErrEmptyPath, "path %q has an empty segment", e.Path)
		case segs[0] == "prototype":
			add("path", ErrPrototypeSegment, "path %q must start at a root slot", e.Path)
		}
		for _, s := range segs {
			if strings.HasSuffix(s, membrane.ReservedSuffix) {
				add("path", ErrReservedPath, "segment %q is reserved", s)
			}
		}

		if first, dup := seen[e.Path]; dup {
			add("path", ErrDuplicatePath, "%q already listed at entry %d", e.Path, first)
		} else {
			seen[e.Path] = i
		}

		if !slices.Contains(validShapes, e.Shape) {
			add("shape", ErrUnknownShape, "unknown shape %q", e.Shape)
		}
		for _, g := range e.Grants {
			if !slices.Contains(validGrants, g) {
				add("grants", ErrUnknownGrant, "unknown grant %q", g)
			}
		}

		switch {
		case e.Shape == ShapeConstructor && e.Super == "":
			add("super", ErrSuperMissing, "constructor %q needs a super constructor", e.Path)
		case e.Shape != ShapeConstructor && e.Super != "":
			add("super", ErrSuperMisplaced, "super given for %s entry %q", shapeLabel(e.Shape), e.Path)
		}

		if e.Shape == ShapeNone && (e.Pre != "" || e.Post != "") {
			add("pre", ErrHookOnData, "hooks need a function shape on %q", e.Path)
		}
	}

	for _, c := range SuperCycles(t) {
		errs = append(errs, ValidationError{
			Field:   "super",
			Message: c.Message,
			Code:    ErrSuperCycle,
			Index:   seen[c.Path[0]],
		})
	}
	return errs
}

func shapeLabel(shape string) string {
	if shape == ShapeNone {
		return "data"
	}
	return shape
}
