package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
)

// ============================================================================
// World construction
// ============================================================================

// buildWorld creates the root record: literal records first, then builtin
// functions at their paths. Keys are inserted in canonical order so slot
// order, and with it enumeration order, is stable.
func buildWorld(rt *membrane.Runtime, w World) (*ir.Object, error) {
	root := ir.NewRecord()
	for _, name := range ir.SortKeys(slices.Collect(maps.Keys(w.Records))) {
		v, err := literal(w.Records[name], nil)
		if err != nil {
			return nil, fmt.Errorf("world.records.%s: %w", name, err)
		}
		if err := root.Set(name, v); err != nil {
			return nil, err
		}
	}
	for i, def := range w.Functions {
		if err := placeFunction(rt, root, def); err != nil {
			return nil, fmt.Errorf("world.functions[%d] %s: %w", i, def.Path, err)
		}
	}
	return root, nil
}

func placeFunction(rt *membrane.Runtime, root *ir.Object, def FuncDef) error {
	segs := strings.Split(def.Path, ".")
	holder := root
	for _, seg := range segs[:len(segs)-1] {
		v, ok := holder.Own(seg)
		if !ok {
			next := ir.NewRecord()
			if err := holder.Set(seg, next); err != nil {
				return err
			}
			holder = next
			continue
		}
		next := ir.AsObject(v)
		if next == nil || next.IsFunction() {
			return fmt.Errorf("%q is %s, not a record", seg, ir.TypeName(v))
		}
		holder = next
	}

	fn := newBuiltin(rt, segs[len(segs)-1], def.Builtin)
	if len(def.Prototype) > 0 {
		proto := ir.NewRecord()
		for _, name := range ir.SortKeys(slices.Collect(maps.Keys(def.Prototype))) {
			if err := proto.Set(name, newBuiltin(rt, name, def.Prototype[name])); err != nil {
				return err
			}
		}
		if err := fn.SetPrototype(proto); err != nil {
			return err
		}
	}
	return holder.Set(segs[len(segs)-1], fn)
}

func newBuiltin(rt *membrane.Runtime, name, builtin string) *ir.Object {
	b := builtinFuncs[builtin]
	return ir.NewFunction(name, b.arity, b.impl(rt))
}

// ============================================================================
// Literals and references
// ============================================================================

// resolver maps "$var.path" and "@world.path" strings to values.
type resolver func(ref string) (ir.Value, error)

// literal converts a decoded YAML value into an unfrozen IR value. Strings
// are passed to resolve when it is non-nil.
func literal(v any, resolve resolver) (ir.Value, error) {
	switch val := v.(type) {
	case nil:
		return ir.Null{}, nil
	case bool:
		return ir.Bool(val), nil
	case int:
		return ir.Int(val), nil
	case int64:
		return ir.Int(val), nil
	case uint64:
		return ir.Int(int64(val)), nil
	case string:
		if resolve != nil && isRef(val) {
			return resolve(val)
		}
		return ir.String(val), nil
	case []any:
		elems := make([]ir.Value, len(val))
		for i, e := range val {
			ev, err := literal(e, resolve)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = ev
		}
		return ir.NewArray(elems...), nil
	case map[string]any:
		rec := ir.NewRecord()
		for _, k := range ir.SortKeys(slices.Collect(maps.Keys(val))) {
			ev, err := literal(val[k], resolve)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if err := rec.Set(k, ev); err != nil {
				return nil, err
			}
		}
		return rec, nil
	case float64, float32:
		return nil, fmt.Errorf("floats are not supported: %v", val)
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// decodeNode decodes a YAML node and converts it with literal.
func decodeNode(node *yaml.Node, resolve resolver) (ir.Value, error) {
	if node == nil {
		return ir.Undefined{}, nil
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}
	return literal(raw, resolve)
}

func isRef(s string) bool {
	return strings.HasPrefix(s, "$") || strings.HasPrefix(s, "@")
}

// walk follows a dotted path host-side, without mediation. "prototype" on
// a function steps to its prototype.
func walk(v ir.Value, path string, origin string) (ir.Value, error) {
	if path == "" {
		return v, nil
	}
	for _, seg := range strings.Split(path, ".") {
		o := ir.AsObject(v)
		if o == nil {
			return nil, fmt.Errorf("%s: %q is on %s", origin, seg, ir.TypeName(v))
		}
		if seg == "prototype" && o.IsFunction() {
			if p := o.Prototype(); p != nil {
				v = p
				continue
			}
		}
		next, ok := o.Own(seg)
		if !ok {
			return nil, fmt.Errorf("%s: no slot %q", origin, seg)
		}
		v = next
	}
	return v, nil
}

// ============================================================================
// Rendering
// ============================================================================

// render converts a value into a canonical-JSON-compatible form that never
// depends on object ids. Functions render by shape and name, instances and
// errors carry a "$instance" or "$error" marker.
func render(rt *membrane.Runtime, v ir.Value) any {
	return renderSeen(rt, v, map[*ir.Object]bool{})
}

func renderSeen(rt *membrane.Runtime, v ir.Value, seen map[*ir.Object]bool) any {
	switch val := ir.Normalize(v).(type) {
	case ir.Undefined:
		return "<undefined>"
	case ir.Null:
		return "<null>"
	case ir.String:
		return string(val)
	case ir.Int:
		return int64(val)
	case ir.Bool:
		return bool(val)
	case *ir.Object:
		return renderObject(rt, val, seen)
	default:
		return ir.Describe(v)
	}
}

func renderObject(rt *membrane.Runtime, o *ir.Object, seen map[*ir.Object]bool) any {
	if o.IsFunction() {
		return fmt.Sprintf("<%s function %s>", rt.ShapeOf(o), o.Name())
	}
	if o.IsPrototypical() {
		return fmt.Sprintf("<prototype of %s>", o.PrototypeOf().Name())
	}
	if seen[o] {
		return "<cycle>"
	}
	seen[o] = true
	defer delete(seen, o)

	if o.Kind() == ir.KindArray {
		elems := make([]any, 0, o.Len())
		for _, e := range o.Elems() {
			elems = append(elems, renderSeen(rt, e, seen))
		}
		return elems
	}

	out := make(map[string]any)
	switch o.Kind() {
	case ir.KindError:
		msg, _ := o.Own("message")
		out["$error"] = renderSeen(rt, msg, seen)
	case ir.KindInstance:
		out["$instance"] = rt.DirectConstructor(o).Name()
	}
	for _, name := range o.Keys() {
		if name == "message" && o.Kind() == ir.KindError {
			continue
		}
		if strings.HasSuffix(name, membrane.ReservedSuffix) {
			continue
		}
		sv, _ := o.Own(name)
		out[name] = renderSeen(rt, sv, seen)
	}
	return out
}
