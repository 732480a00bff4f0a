package policy

import (
	"errors"
	"fmt"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
)

// Hooks supplies the rewrite hooks a table refers to by name.
type Hooks struct {
	Pre  map[string]membrane.PreHook
	Post map[string]membrane.PostHook
}

// Apply classifies and grants every slot a table names, resolving paths
// from root. The table is validated first; nothing is applied if it has
// any error.
func Apply(rt *membrane.Runtime, root *ir.Object, t *Table, hooks Hooks) error {
	if root == nil {
		return membrane.NewConfigurationError("policy applied to nil root")
	}
	if verrs := Validate(t); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return membrane.NewConfigurationError("invalid policy: %v", errors.Join(errs...))
	}
	order, err := ApplyOrder(t)
	if err != nil {
		return membrane.NewConfigurationError("%v", err)
	}

	a := applier{rt: rt, root: root, hooks: hooks}
	for _, e := range order {
		if err := a.apply(e); err != nil {
			return err
		}
		rt.Logger().Debug("policy entry applied", "path", e.Path, "shape", e.Shape, "grants", e.Grants)
	}
	return nil
}

type applier struct {
	rt    *membrane.Runtime
	root  *ir.Object
	hooks Hooks
}

func (a applier) apply(e Entry) error {
	holder, name, v, err := a.resolve(e.Path)
	if err != nil {
		return err
	}

	if e.Shape != ShapeNone {
		fn := ir.AsObject(v)
		if fn == nil || !fn.IsFunction() {
			return membrane.NewConfigurationError("%s: %s entry is not a function", e.Path, e.Shape)
		}
		if err := a.classify(e, name, fn); err != nil {
			return fmt.Errorf("%s: %w", e.Path, err)
		}
		if err := a.installHooks(e, fn); err != nil {
			return err
		}
	}

	for _, g := range e.Grants {
		if err := a.grant(holder, name, g); err != nil {
			return fmt.Errorf("%s: %w", e.Path, err)
		}
	}
	return nil
}

func (a applier) classify(e Entry, name string, fn *ir.Object) error {
	switch e.Shape {
	case ShapePlain:
		return a.rt.MarkPlain(fn, name)
	case ShapeExophoric:
		return a.rt.MarkExophoric(fn, name)
	case ShapeInnocent:
		return a.rt.MarkInnocent(fn, name)
	case ShapeConstructor:
		super, err := a.constructor(e.Super)
		if err != nil {
			return err
		}
		return a.rt.MarkConstructor(fn, super, name)
	}
	return nil
}

func (a applier) installHooks(e Entry, fn *ir.Object) error {
	if e.Pre == "" && e.Post == "" {
		return nil
	}
	var (
		pre  membrane.PreHook
		post membrane.PostHook
	)
	if e.Pre != "" {
		h, ok := a.hooks.Pre[e.Pre]
		if !ok {
			return membrane.NewConfigurationError("%s: unknown pre hook %q", e.Path, e.Pre)
		}
		pre = h
	}
	if e.Post != "" {
		h, ok := a.hooks.Post[e.Post]
		if !ok {
			return membrane.NewConfigurationError("%s: unknown post hook %q", e.Path, e.Post)
		}
		post = h
	}
	return a.rt.SetCallHooks(fn, pre, post)
}

func (a applier) grant(holder *ir.Object, name, g string) error {
	switch g {
	case GrantRead:
		return a.rt.GrantRead(holder, name)
	case GrantEnum:
		return a.rt.GrantEnum(holder, name)
	case GrantCall:
		return a.rt.GrantCall(holder, name)
	case GrantSet:
		return a.rt.GrantSet(holder, name)
	case GrantDelete:
		return a.rt.GrantDelete(holder, name)
	}
	return membrane.NewConfigurationError("unknown grant %q", g)
}

// constructor resolves a super path. A root constructor name is used only
// when the world has no slot of that name.
func (a applier) constructor(path string) (*ir.Object, error) {
	if _, _, v, err := a.resolve(path); err == nil {
		if fn := ir.AsObject(v); fn != nil && fn.IsFunction() {
			return fn, nil
		}
		return nil, membrane.NewConfigurationError("super %q is not a function", path)
	}
	switch path {
	case "Object":
		return a.rt.ObjectCtor(), nil
	case "Array":
		return a.rt.ArrayCtor(), nil
	case "Error":
		return a.rt.ErrorCtor(), nil
	}
	return nil, membrane.NewConfigurationError("unknown super constructor %q", path)
}

// resolve walks a dotted path from the root. The segment "prototype" after
// a function steps into its prototype object.
func (a applier) resolve(path string) (holder *ir.Object, name string, v ir.Value, err error) {
	segs := Entry{Path: path}.Segments()
	cur := a.root
	for i, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, "", nil, membrane.NewConfigurationError("%s: no slot %q", path, seg)
		}
		if i == len(segs)-1 {
			return cur, ir.NormalizeName(seg), next, nil
		}
		obj := ir.AsObject(next)
		if obj == nil {
			return nil, "", nil, membrane.NewConfigurationError("%s: %q is %s, not an object", path, seg, ir.TypeName(next))
		}
		cur = obj
	}
	return nil, "", nil, membrane.NewConfigurationError("empty path")
}

func step(o *ir.Object, seg string) (ir.Value, bool) {
	if seg == "prototype" && o.IsFunction() {
		if p := o.Prototype(); p != nil {
			return p, true
		}
		return nil, false
	}
	return o.Own(ir.NormalizeName(seg))
}
