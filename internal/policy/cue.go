package policy

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// schema closes every whitelist entry so misspelled fields fail with a
// source position.
const schema = `
#Entry: {
	shape?:  "plain" | "constructor" | "exophoric" | "innocent"
	grants?: [...("read" | "enum" | "call" | "set" | "delete")]
	super?:  string
	pre?:    string
	post?:   string
}
whitelist: [string]: #Entry
`

// ParseCUE compiles a CUE table. The source declares a whitelist struct
// keyed by slot path:
//
//	whitelist: {
//		"Math.max": {shape: "plain", grants: ["read", "call"]}
//		"Point":    {shape: "constructor", super: "Object"}
//	}
func ParseCUE(src []byte, filename string) (*Table, error) {
	ctx := cuecontext.New()
	s := ctx.CompileString(schema, cue.Filename("policy-schema.cue"))
	if err := s.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v = s.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileCUE(v.LookupPath(cue.ParsePath("whitelist")))
}

// CompileCUE converts a validated whitelist struct into a Table, keeping
// declaration order.
func CompileCUE(v cue.Value) (*Table, error) {
	t := &Table{}
	if !v.Exists() {
		return t, nil
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		entry, err := compileEntry(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, entry)
	}
	return t, nil
}

// compileEntry reads the regular fields of one entry. Optional schema
// fields that the source leaves unset are not listed by Fields.
func compileEntry(path string, v cue.Value) (Entry, error) {
	e := Entry{Path: path}
	iter, err := v.Fields()
	if err != nil {
		return e, formatCUEError(err)
	}
	for iter.Next() {
		field := iter.Selector().Unquoted()
		fv := iter.Value()
		switch field {
		case "grants":
			list, err := fv.List()
			if err != nil {
				return e, formatCUEError(err)
			}
			for list.Next() {
				g, err := list.Value().String()
				if err != nil {
					return e, formatCUEError(err)
				}
				e.Grants = append(e.Grants, g)
			}
		case "shape", "super", "pre", "post":
			s, err := fv.String()
			if err != nil {
				return e, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
			}
			switch field {
			case "shape":
				e.Shape = s
			case "super":
				e.Super = s
			case "pre":
				e.Pre = s
			case "post":
				e.Post = s
			}
		default:
			return e, &CompileError{Field: field, Message: "unknown entry field", Pos: fv.Pos()}
		}
	}
	return e, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
