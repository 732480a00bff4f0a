package module

import (
	"fmt"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
)

// InstantiateFunc runs a unit against an imports record. It sees the
// Runtime only through the confined Guest facade.
type InstantiateFunc func(g *membrane.Guest, imports *ir.Object) (ir.Value, error)

// Meta describes how a unit was produced.
type Meta struct {
	// ID overrides the content-addressed module id.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	CompilerName    string   `yaml:"compiler_name" json:"compiler_name"`
	CompilerVersion string   `yaml:"compiler_version" json:"compiler_version"`
	CompiledAt      string   `yaml:"compiled_at" json:"compiled_at"`
	Includes        []string `yaml:"includes,omitempty" json:"includes,omitempty"`
}

// Record renders m as an unfrozen metadata record. The explicit id is not
// part of the record.
func (m Meta) Record() *ir.Object {
	rec := ir.NewRecord(
		ir.P("compilerName", ir.String(m.CompilerName)),
		ir.P("compilerVersion", ir.String(m.CompilerVersion)),
		ir.P("compiledAt", ir.String(m.CompiledAt)),
	)
	if len(m.Includes) > 0 {
		elems := make([]ir.Value, len(m.Includes))
		for i, inc := range m.Includes {
			elems[i] = ir.String(inc)
		}
		inc := ir.NewArray(elems...)
		inc.Freeze()
		_ = rec.Set("includedModules", inc)
	}
	return rec
}

// Unit is a guest unit ready to load.
type Unit struct {
	Meta        Meta
	Instantiate InstantiateFunc
}

// Module is a loaded unit: frozen metadata and a Plain instantiate function
// taking the imports record as its only argument.
type Module struct {
	ID          string
	Meta        *ir.Object
	Instantiate *ir.Object
}

// newModule freezes u's metadata and classifies its instantiate function.
func newModule(rt *membrane.Runtime, u Unit) (*Module, error) {
	if u.Instantiate == nil {
		return nil, fmt.Errorf("module: unit has no instantiate function")
	}
	meta := u.Meta.Record()
	id := u.Meta.ID
	if id == "" {
		var err error
		id, err = ir.ModuleID(meta)
		if err != nil {
			return nil, fmt.Errorf("module: %w", err)
		}
	}
	if _, err := rt.Freeze(meta); err != nil {
		return nil, fmt.Errorf("module: freeze metadata: %w", err)
	}

	guest := rt.Guest()
	instantiate := u.Instantiate
	fn := ir.NewFunction("instantiate", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		var imports *ir.Object
		if len(args) > 0 {
			imports = ir.AsObject(args[0])
		}
		if imports == nil {
			return nil, fmt.Errorf("instantiate: imports must be an object")
		}
		return instantiate(guest, imports)
	})
	if err := rt.MarkPlain(fn, "instantiate"); err != nil {
		return nil, err
	}
	return &Module{ID: id, Meta: meta, Instantiate: fn}, nil
}
