package membrane

import (
	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/table"
)

// TamingHook converts an object across the membrane. ok=false means the
// object has no counterpart.
type TamingHook func(o *ir.Object) (v ir.Value, ok bool)

type tamingHooks struct {
	asTamed   TamingHook
	asUntamed TamingHook
}

// SetTamingHooks installs custom conversions on o. Objects delegating to o
// inherit them. Either hook may be nil.
func (rt *Runtime) SetTamingHooks(o *ir.Object, asTamed, asUntamed TamingHook) error {
	if o == nil {
		return NewConfigurationError("taming hooks on nil object")
	}
	return rt.hooks.Set(o, &tamingHooks{asTamed: asTamed, asUntamed: asUntamed})
}

func (rt *Runtime) findHook(o *ir.Object, tamed bool) TamingHook {
	for cur := o; cur != nil; cur = cur.Parent() {
		h, ok := rt.hooks.Get(cur)
		if !ok {
			continue
		}
		if tamed && h.asTamed != nil {
			return h.asTamed
		}
		if !tamed && h.asUntamed != nil {
			return h.asUntamed
		}
	}
	return nil
}

// ============================================================================
// Registration
// ============================================================================

// TamesTo registers (feral, tamed) as a tame pair. Registering the same
// pair again is a logged no-op; pairing either side with anything else is
// a configuration error.
func (rt *Runtime) TamesTo(feral, tamed ir.Value) error {
	f := ir.AsObject(feral)
	t := ir.AsObject(tamed)
	if f == nil {
		return NewConfigurationError("unexpected feral primitive: %s", ir.Describe(feral))
	}
	if t == nil {
		return NewConfigurationError("unexpected tame primitive: %s", ir.Describe(tamed))
	}

	if tw, ok := rt.tamed.Get(f); ok && tw == ir.Value(t) {
		if fw, ok := rt.feral.Get(t); ok && fw == ir.Value(f) {
			rt.logger.Debug("multiply tamed", "feral", f.String(), "tamed", t.String())
			return nil
		}
	}
	if _, ok := rt.tamed.Get(f); ok {
		return NewConfigurationError("already tames to something: %s", f)
	}
	if fw, ok := rt.feral.Get(f); ok && fw != ir.Value(f) {
		return NewConfigurationError("already tame: %s", f)
	}
	if _, ok := rt.feral.Get(t); ok {
		return NewConfigurationError("already untames to something: %s", t)
	}
	if tw, ok := rt.tamed.Get(t); ok && tw != ir.Value(t) {
		return NewConfigurationError("already feral: %s", t)
	}

	_ = rt.tamed.Set(f, t)
	_ = rt.feral.Set(t, f)
	return nil
}

// TamesToSelf registers o as its own counterpart.
func (rt *Runtime) TamesToSelf(o ir.Value) error {
	return rt.TamesTo(o, o)
}

// ============================================================================
// Tame / Untame
// ============================================================================

// direction bundles the tables and recursion for one way across the
// membrane.
type direction struct {
	name     string
	forward  *table.Table[ir.Value] // source -> converted
	backward *table.Table[ir.Value] // converted -> source
	convert  func(ir.Value) (ir.Value, bool)
	register func(source, converted *ir.Object) error
}

func (rt *Runtime) tameDir() direction {
	return direction{
		name:     "tame",
		forward:  rt.tamed,
		backward: rt.feral,
		convert:  rt.Tame,
		register: func(source, converted *ir.Object) error { return rt.TamesTo(source, converted) },
	}
}

func (rt *Runtime) untameDir() direction {
	return direction{
		name:     "untame",
		forward:  rt.feral,
		backward: rt.tamed,
		convert:  rt.Untame,
		register: func(source, converted *ir.Object) error { return rt.TamesTo(converted, source) },
	}
}

// Tame returns the confined counterpart of a privileged value.
//
// Primitives cross unchanged. A registered pair wins; an object that is
// already confined is returned as is. Classified functions tame to
// themselves, exophoric ones to their PseudoFunction, innocent ones to a
// converting wrapper. Custom hooks come next, then deep taming of plain
// records and arrays. Anything else has no counterpart (ok=false).
func (rt *Runtime) Tame(x ir.Value) (ir.Value, bool) {
	return rt.cross(x, rt.tameDir())
}

// Untame returns the privileged counterpart of a confined value. It mirrors
// Tame.
func (rt *Runtime) Untame(x ir.Value) (ir.Value, bool) {
	return rt.cross(x, rt.untameDir())
}

func (rt *Runtime) cross(x ir.Value, dir direction) (ir.Value, bool) {
	o := ir.AsObject(x)
	if o == nil {
		return ir.Normalize(x), true
	}
	if twin, ok := dir.forward.Get(o); ok {
		return twin, true
	}
	if _, ok := dir.backward.Get(o); ok {
		// o is already on the target side.
		return o, true
	}

	if o.IsFunction() {
		return rt.crossFunction(o, dir)
	}

	if hook := rt.findHook(o, dir.name == "tame"); hook != nil {
		v, ok := hook(o)
		if !ok {
			return ir.Undefined{}, false
		}
		if converted := ir.AsObject(v); converted != nil {
			if err := dir.register(o, converted); err != nil {
				rt.logger.Warn("taming hook result rejected", "direction", dir.name, "object", o.String(), "error", err)
				return ir.Undefined{}, false
			}
		}
		return v, true
	}

	if isPlainContainer(o) {
		return rt.deepCross(o, dir)
	}
	return ir.Undefined{}, false
}

func (rt *Runtime) crossFunction(fn *ir.Object, dir direction) (ir.Value, bool) {
	info := rt.infoOf(fn, false)
	if info == nil {
		return ir.Undefined{}, false
	}
	var converted *ir.Object
	switch {
	case info.shape == Plain, info.shape == Constructor:
		converted = fn
	case info.shape == Exophoric && dir.name == "tame":
		pseudo, err := rt.PseudoFunction(fn)
		if err != nil {
			return ir.Undefined{}, false
		}
		converted = pseudo
	case info.innocent && dir.name == "tame":
		converted = rt.innocentWrapper(fn, info)
	default:
		return ir.Undefined{}, false
	}
	if err := dir.register(fn, converted); err != nil {
		rt.logger.Warn("function taming rejected", "direction", dir.name, "function", fn.String(), "error", err)
		return ir.Undefined{}, false
	}
	return converted, true
}

// deepCross converts a plain record or array slot by slot. A provisional
// registration of (o, result) is visible during the recursion so cycles
// resolve to the result, and is removed on every exit path.
func (rt *Runtime) deepCross(o *ir.Object, dir direction) (ir.Value, bool) {
	result, changed := rt.copyProvisionally(o, dir)
	if !changed {
		if err := dir.register(o, o); err != nil {
			rt.logger.Warn("self registration rejected", "direction", dir.name, "object", o.String(), "error", err)
		}
		return o, true
	}
	rt.PrimFreeze(result)
	if err := dir.register(o, result); err != nil {
		rt.logger.Warn("deep taming registration rejected", "direction", dir.name, "object", o.String(), "error", err)
		return ir.Undefined{}, false
	}
	return result, true
}

func (rt *Runtime) copyProvisionally(o *ir.Object, dir direction) (*ir.Object, bool) {
	var result *ir.Object
	if o.Kind() == ir.KindArray {
		result = ir.NewArray()
	} else {
		result = ir.NewRecord()
	}
	changed := !o.IsFrozen()

	_ = dir.forward.Set(o, result)
	_ = dir.backward.Set(result, o)
	defer func() {
		dir.forward.Delete(o)
		dir.backward.Delete(result)
	}()

	for _, name := range o.Keys() {
		if rt.isReserved(name) {
			continue
		}
		src, _ := o.Own(name)
		dst, ok := dir.convert(src)
		if !ok {
			changed = true
			if o.Kind() != ir.KindArray {
				continue
			}
			dst = ir.Undefined{}
		} else if !ir.Same(src, dst) {
			changed = true
		}
		_ = result.Set(name, dst)
	}
	return result, changed
}

// ============================================================================
// Pseudo-functions
// ============================================================================

// PseudoFunction returns the frozen record guests see in place of the
// exophoric function fn. Its Plain members are call(self, ...args),
// apply(self, args) and bind(self, ...args); length and name are data.
// (fn, pseudo) is registered as a tame pair when the record is built, so
// the pseudo untames to fn however the guest obtained it.
func (rt *Runtime) PseudoFunction(fn *ir.Object) (*ir.Object, error) {
	info := rt.infoOf(fn, false)
	if info == nil || info.shape != Exophoric {
		return nil, NewConfigurationError("not an exophoric function: %s", fn)
	}
	if info.pseudo != nil {
		return info.pseudo, nil
	}

	call := ir.NewFunction("call", fn.Func().Arity+1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		self, rest := splitReceiver(args)
		return rt.callFunc(fn, self, rest)
	})
	apply := ir.NewFunction("apply", 2, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		self, rest := splitReceiver(args)
		var list []ir.Value
		if len(rest) > 0 {
			arr := ir.AsObject(rest[0])
			if arr == nil || arr.Kind() != ir.KindArray {
				return nil, NewAccessError(OpCall, fn, "apply", "arguments must be an array")
			}
			list = arr.Elems()
		}
		return rt.callFunc(fn, self, list)
	})
	bind := ir.NewFunction("bind", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		self, bound := splitReceiver(args)
		bound = append([]ir.Value(nil), bound...)
		bf := ir.NewFunction(fn.Name(), max(fn.Func().Arity-len(bound), 0), func(_ ir.Value, more []ir.Value) (ir.Value, error) {
			return rt.callFunc(fn, self, append(append([]ir.Value(nil), bound...), more...))
		})
		if err := rt.MarkPlain(bf, fn.Name()); err != nil {
			return nil, err
		}
		return bf, nil
	})
	for _, member := range []*ir.Object{call, apply, bind} {
		if err := rt.MarkPlain(member, member.Name()); err != nil {
			return nil, err
		}
	}

	pseudo := ir.NewRecord(
		ir.P("call", call),
		ir.P("apply", apply),
		ir.P("bind", bind),
		ir.P("length", ir.Int(fn.Func().Arity)),
		ir.P("name", ir.String(info.name)),
	)
	rt.PrimFreeze(pseudo)
	if err := rt.TamesTo(fn, pseudo); err != nil {
		return nil, err
	}
	info.pseudo = pseudo
	return pseudo, nil
}

func splitReceiver(args []ir.Value) (ir.Value, []ir.Value) {
	if len(args) == 0 {
		return ir.Undefined{}, nil
	}
	return args[0], args[1:]
}

// innocentWrapper builds the Plain function an innocent host function tames
// to. It untames receiver and arguments, calls fn, and tames the result.
func (rt *Runtime) innocentWrapper(fn *ir.Object, info *funcInfo) *ir.Object {
	wrapper := ir.NewFunction(info.name, fn.Func().Arity+1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		self, rest := splitReceiver(args)
		feralSelf, ok := rt.Untame(self)
		if !ok {
			feralSelf = ir.Undefined{}
		}
		feralArgs := make([]ir.Value, len(rest))
		for i, a := range rest {
			fa, ok := rt.Untame(a)
			if !ok {
				fa = ir.Undefined{}
			}
			feralArgs[i] = fa
		}
		result, err := rt.callFunc(fn, feralSelf, feralArgs)
		if err != nil {
			return nil, err
		}
		tamed, ok := rt.Tame(result)
		if !ok {
			return ir.Undefined{}, nil
		}
		return tamed, nil
	})
	// wrapper is fresh and unclassified, so MarkPlain cannot fail.
	_ = rt.MarkPlain(wrapper, info.name)
	return wrapper
}
