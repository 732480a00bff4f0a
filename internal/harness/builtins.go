package harness

import (
	"fmt"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
	"github.com/roach88/membrane/internal/module"
	"github.com/roach88/membrane/internal/policy"
)

// builtinFunc is a host function a scenario world can place at a path.
// impl receives the Runtime so constructors can grant on fresh instances.
type builtinFunc struct {
	arity int
	impl  func(rt *membrane.Runtime) ir.Func
}

var builtinFuncs = map[string]builtinFunc{
	// max returns the largest integer argument.
	"max": {arity: 2, impl: func(*membrane.Runtime) ir.Func {
		return func(_ ir.Value, args []ir.Value) (ir.Value, error) {
			var best ir.Int
			for i, a := range args {
				n, ok := a.(ir.Int)
				if !ok {
					return nil, fmt.Errorf("max: argument %d is %s, not an integer", i, ir.TypeName(a))
				}
				if i == 0 || n > best {
					best = n
				}
			}
			return best, nil
		}
	}},
	"add": {arity: 2, impl: func(*membrane.Runtime) ir.Func {
		return func(_ ir.Value, args []ir.Value) (ir.Value, error) {
			var sum ir.Int
			for i, a := range args {
				n, ok := a.(ir.Int)
				if !ok {
					return nil, fmt.Errorf("add: argument %d is %s, not an integer", i, ir.TypeName(a))
				}
				sum += n
			}
			return sum, nil
		}
	}},
	"identity": {arity: 1, impl: func(*membrane.Runtime) ir.Func {
		return func(_ ir.Value, args []ir.Value) (ir.Value, error) {
			return argAt(args, 0), nil
		}
	}},
	// self returns its receiver, exposing what an exophoric call binds.
	"self": {arity: 0, impl: func(*membrane.Runtime) ir.Func {
		return func(self ir.Value, _ []ir.Value) (ir.Value, error) {
			return ir.Normalize(self), nil
		}
	}},
	// getX reads the receiver's x slot without mediation.
	"getX": {arity: 0, impl: func(*membrane.Runtime) ir.Func {
		return func(self ir.Value, _ []ir.Value) (ir.Value, error) {
			o := ir.AsObject(self)
			if o == nil {
				return nil, fmt.Errorf("getX: receiver is %s", ir.TypeName(self))
			}
			v, ok := o.Own("x")
			if !ok {
				return ir.Undefined{}, nil
			}
			return v, nil
		}
	}},
	// point initializes x and y on the fresh instance and makes them
	// readable.
	"point": {arity: 2, impl: func(rt *membrane.Runtime) ir.Func {
		return func(self ir.Value, args []ir.Value) (ir.Value, error) {
			o := ir.AsObject(self)
			if o == nil {
				return nil, fmt.Errorf("point: called without an instance")
			}
			for i, name := range []string{"x", "y"} {
				if err := o.Set(name, argAt(args, i)); err != nil {
					return nil, err
				}
				if err := rt.GrantEnum(o, name); err != nil {
					return nil, err
				}
			}
			return ir.Undefined{}, nil
		}
	}},
	// secret returns a fresh record carrying a reserved slot.
	"secret": {arity: 0, impl: func(*membrane.Runtime) ir.Func {
		return func(_ ir.Value, _ []ir.Value) (ir.Value, error) {
			return ir.NewRecord(
				ir.P("visible", ir.Bool(true)),
				ir.P("hidden"+membrane.ReservedSuffix, ir.Bool(true)),
			), nil
		}
	}},
	"fail": {arity: 0, impl: func(*membrane.Runtime) ir.Func {
		return func(_ ir.Value, _ []ir.Value) (ir.Value, error) {
			return nil, fmt.Errorf("fail: host function failed")
		}
	}},
}

func argAt(args []ir.Value, i int) ir.Value {
	if i < len(args) {
		return ir.Normalize(args[i])
	}
	return ir.Undefined{}
}

// builtinHooks are the call hooks a scenario policy may name.
func builtinHooks() policy.Hooks {
	return policy.Hooks{
		Pre: map[string]membrane.PreHook{
			// clamp limits every integer argument to [0, 100].
			"clamp": func(_ ir.Value, args []ir.Value) ([]ir.Value, error) {
				out := make([]ir.Value, len(args))
				for i, a := range args {
					if n, ok := a.(ir.Int); ok {
						a = min(max(n, 0), 100)
					}
					out[i] = a
				}
				return out, nil
			},
			"deny": func(ir.Value, []ir.Value) ([]ir.Value, error) {
				return nil, membrane.NewAccessError(membrane.OpCall, nil, "", "call rejected by policy hook")
			},
		},
		Post: map[string]membrane.PostHook{
			"double": func(result ir.Value) (ir.Value, error) {
				if n, ok := result.(ir.Int); ok {
					return n * 2, nil
				}
				return result, nil
			},
		},
	}
}

// builtinModule is a guest unit body a load step can run.
type builtinModule func(g *membrane.Guest, imports *ir.Object, args []ir.Value) (ir.Value, error)

var builtinModules = map[string]builtinModule{
	"answer": func(*membrane.Guest, *ir.Object, []ir.Value) (ir.Value, error) {
		return ir.Int(42), nil
	},
	"throw": func(*membrane.Guest, *ir.Object, []ir.Value) (ir.Value, error) {
		return nil, fmt.Errorf("module threw")
	},
	"none": func(*membrane.Guest, *ir.Object, []ir.Value) (ir.Value, error) {
		return module.NoResult, nil
	},
	// counter increments imports.count, which persists across loads in
	// one session.
	"counter": func(g *membrane.Guest, imports *ir.Object, _ []ir.Value) (ir.Value, error) {
		n := ir.Int(0)
		if g.Has(imports, "count") {
			v, err := g.ReadSlot(imports, "count")
			if err != nil {
				return nil, err
			}
			if c, ok := v.(ir.Int); ok {
				n = c
			}
		}
		n++
		if err := g.WriteSlot(imports, "count", n); err != nil {
			return nil, err
		}
		return n, nil
	},
	// readWorld reads imports.world along the string arguments.
	"readWorld": func(g *membrane.Guest, imports *ir.Object, args []ir.Value) (ir.Value, error) {
		cur, err := g.ReadSlot(imports, "world")
		if err != nil {
			return nil, err
		}
		for i, a := range args {
			name, ok := a.(ir.String)
			if !ok {
				return nil, fmt.Errorf("readWorld: argument %d is %s, not a string", i, ir.TypeName(a))
			}
			if cur, err = g.ReadSlot(cur, string(name)); err != nil {
				return nil, err
			}
		}
		return cur, nil
	},
	// tryWrite assigns imports.world[args[0]] = args[1].
	"tryWrite": func(g *membrane.Guest, imports *ir.Object, args []ir.Value) (ir.Value, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("tryWrite: need a slot name and a value")
		}
		world, err := g.ReadSlot(imports, "world")
		if err != nil {
			return nil, err
		}
		name, ok := args[0].(ir.String)
		if !ok {
			return nil, fmt.Errorf("tryWrite: slot name is %s", ir.TypeName(args[0]))
		}
		if err := g.WriteSlot(world, string(name), args[1]); err != nil {
			return nil, err
		}
		return ir.Bool(true), nil
	},
}
