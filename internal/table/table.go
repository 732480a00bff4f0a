// Package table provides identity-keyed tables over ir values.
//
// Two flavours exist:
//   - New: keys may be any value; objects are keyed by identity and
//     primitives by value. The table owns its entries.
//   - NewKeyed: keys must be objects; each entry is stored on the key
//     object itself as an annotation, so it lives exactly as long as the
//     key does and the table holds no reference to its keys.
//
// Delete removes an entry. Neither flavour is safe for
// concurrent use.
package table

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/roach88/membrane/internal/ir"
)

// ErrPrimitiveKey is returned when a key-lifetime table is given a
// primitive key.
var ErrPrimitiveKey = errors.New("key-lifetime table requires an object key")

// lastTableID hands out annotation keys; zero is never used.
var lastTableID atomic.Uint64

// Table maps values to arbitrary Go data.
type Table[V any] struct {
	id    uint64
	keyed bool

	objects    map[*ir.Object]V
	primitives map[ir.Value]V
}

// New creates a table accepting object and primitive keys.
func New[V any]() *Table[V] {
	return &Table[V]{
		id:         lastTableID.Add(1),
		objects:    make(map[*ir.Object]V),
		primitives: make(map[ir.Value]V),
	}
}

// NewKeyed creates a key-lifetime table.
func NewKeyed[V any]() *Table[V] {
	return &Table[V]{id: lastTableID.Add(1), keyed: true}
}

// KeyLifetime reports whether entries are stored on their keys.
func (t *Table[V]) KeyLifetime() bool { return t.keyed }

// Get returns the entry for key.
func (t *Table[V]) Get(key ir.Value) (V, bool) {
	var zero V
	key = ir.Normalize(key)
	if o, ok := key.(*ir.Object); ok {
		if t.keyed {
			raw, ok := o.Annotation(t.id)
			if !ok {
				return zero, false
			}
			return raw.(V), true
		}
		v, ok := t.objects[o]
		return v, ok
	}
	if t.keyed {
		return zero, false
	}
	v, ok := t.primitives[key]
	return v, ok
}

// Has reports whether key has an entry.
func (t *Table[V]) Has(key ir.Value) bool {
	_, ok := t.Get(key)
	return ok
}

// Set stores v under key.
func (t *Table[V]) Set(key ir.Value, v V) error {
	key = ir.Normalize(key)
	if o, ok := key.(*ir.Object); ok {
		if o == nil {
			return fmt.Errorf("table: nil object key")
		}
		if t.keyed {
			o.SetAnnotation(t.id, v)
			return nil
		}
		t.objects[o] = v
		return nil
	}
	if t.keyed {
		return fmt.Errorf("table: %s key: %w", ir.TypeName(key), ErrPrimitiveKey)
	}
	t.primitives[key] = v
	return nil
}

// Delete removes the entry for key, if any.
func (t *Table[V]) Delete(key ir.Value) {
	key = ir.Normalize(key)
	if o, ok := key.(*ir.Object); ok {
		if t.keyed {
			o.DeleteAnnotation(t.id)
			return
		}
		delete(t.objects, o)
		return
	}
	if !t.keyed {
		delete(t.primitives, key)
	}
}

// Len returns the number of entries. Key-lifetime tables do not track their
// keys and always report -1.
func (t *Table[V]) Len() int {
	if t.keyed {
		return -1
	}
	return len(t.objects) + len(t.primitives)
}
