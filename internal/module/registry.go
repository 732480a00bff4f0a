package module

import (
	"fmt"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/table"
)

// Registry assigns small integer ids to imports records so generated code
// can refer back to them. An imports record keeps its id after Unregister
// and is re-registered at the same id by a later ID call.
type Registry struct {
	entries []*ir.Object
	ids     *table.Table[int]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: table.NewKeyed[int]()}
}

// ID returns the id of imports, registering it if needed.
func (r *Registry) ID(imports *ir.Object) (int, error) {
	if imports == nil {
		return 0, fmt.Errorf("registry: imports must be an object")
	}
	id, ok := r.ids.Get(imports)
	if !ok {
		id = len(r.entries)
		r.entries = append(r.entries, nil)
		if err := r.ids.Set(imports, id); err != nil {
			return 0, err
		}
	}
	r.entries[id] = imports
	return id, nil
}

// Imports returns the record registered under id.
func (r *Registry) Imports(id int) (*ir.Object, error) {
	if id < 0 || id >= len(r.entries) || r.entries[id] == nil {
		return nil, fmt.Errorf("registry: imports#%d unregistered", id)
	}
	return r.entries[id], nil
}

// Unregister drops imports from the registry. Its id is never reassigned.
func (r *Registry) Unregister(imports *ir.Object) {
	if imports == nil {
		return
	}
	if id, ok := r.ids.Get(imports); ok {
		r.entries[id] = nil
	}
}
