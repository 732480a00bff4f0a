package membrane

import (
	"strings"

	"github.com/roach88/membrane/internal/ir"
)

// Rights is a bitmap of the access rights cached for one slot.
type Rights uint8

const (
	// RightRead allows reading the slot.
	RightRead Rights = 1 << iota
	// RightEnum allows listing the slot name.
	RightEnum
	// RightCall allows invoking the slot's value as a method.
	RightCall
	// RightSet allows assigning the slot.
	RightSet
	// RightDelete allows deleting the slot.
	RightDelete
)

// String renders the set bits, e.g. "read|enum".
func (r Rights) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	for _, b := range []struct {
		bit  Rights
		name string
	}{{RightRead, "read"}, {RightEnum, "enum"}, {RightCall, "call"}, {RightSet, "set"}, {RightDelete, "delete"}} {
		if r&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	return strings.Join(parts, "|")
}

// objectTags is the out-of-band bookkeeping for one holder object.
type objectTags struct {
	rights   map[string]Rights
	handlers map[string]*slotHandlers

	// slowFreeze is set by the first granted write to a plain container;
	// freezing such an object must revoke its set/delete grants.
	slowFreeze bool
}

func (rt *Runtime) tagsOf(o *ir.Object, create bool) *objectTags {
	if tags, ok := rt.tags.Get(o); ok {
		return tags
	}
	if !create {
		return nil
	}
	tags := &objectTags{rights: make(map[string]Rights)}
	// Set cannot fail: o is an object and rt.tags is key-lifetime.
	_ = rt.tags.Set(o, tags)
	return tags
}

// rightsOf returns the cached rights of (holder, name).
func (rt *Runtime) rightsOf(holder *ir.Object, name string) Rights {
	tags := rt.tagsOf(holder, false)
	if tags == nil {
		return 0
	}
	return tags.rights[name]
}

func (rt *Runtime) hasRight(holder *ir.Object, name string, r Rights) bool {
	return rt.rightsOf(holder, name)&r == r
}

func (rt *Runtime) grant(holder *ir.Object, name string, r Rights) {
	tags := rt.tagsOf(holder, true)
	tags.rights[name] |= r
}

func (rt *Runtime) revoke(holder *ir.Object, name string, r Rights) {
	tags := rt.tagsOf(holder, false)
	if tags == nil {
		return
	}
	tags.rights[name] &^= r
	if tags.rights[name] == 0 {
		delete(tags.rights, name)
	}
}

// purge drops every cached right for (holder, name).
func (rt *Runtime) purge(holder *ir.Object, name string) {
	if tags := rt.tagsOf(holder, false); tags != nil {
		delete(tags.rights, name)
	}
}

// Rights returns the rights currently cached for (holder, name). Intended
// for diagnostics and tests; mediation never relies on the absence of a
// right.
func (rt *Runtime) Rights(holder *ir.Object, name string) Rights {
	return rt.rightsOf(holder, ir.NormalizeName(name))
}

// isReserved reports whether name falls in the reserved internal namespace.
func (rt *Runtime) isReserved(name string) bool {
	for _, suffix := range rt.reserved {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// isPlainContainer reports whether o is a non-prototypical record or array,
// the only objects whose local slots are readable and writable by default.
func isPlainContainer(o *ir.Object) bool {
	if o == nil || o.IsPrototypical() {
		return false
	}
	return o.Kind() == ir.KindRecord || o.Kind() == ir.KindArray
}

// ============================================================================
// Host grant API
// ============================================================================

func (rt *Runtime) grantChecked(holder *ir.Object, name string, r Rights) error {
	if holder == nil {
		return NewConfigurationError("grant %s on nil object", r)
	}
	name = ir.NormalizeName(name)
	if rt.isReserved(name) {
		return NewConfigurationError("cannot grant %s on reserved name %q", r, name)
	}
	rt.grant(holder, name, r)
	return nil
}

// GrantRead allows guests to read (holder, name).
func (rt *Runtime) GrantRead(holder *ir.Object, name string) error {
	return rt.grantChecked(holder, name, RightRead)
}

// GrantEnum allows guests to list (holder, name). Enumeration implies read.
func (rt *Runtime) GrantEnum(holder *ir.Object, name string) error {
	return rt.grantChecked(holder, name, RightEnum|RightRead)
}

// GrantCall allows guests to invoke (holder, name) as a method.
func (rt *Runtime) GrantCall(holder *ir.Object, name string) error {
	return rt.grantChecked(holder, name, RightCall)
}

// GrantSet allows guests to assign (holder, name).
func (rt *Runtime) GrantSet(holder *ir.Object, name string) error {
	return rt.grantChecked(holder, name, RightSet)
}

// GrantDelete allows guests to delete (holder, name).
func (rt *Runtime) GrantDelete(holder *ir.Object, name string) error {
	return rt.grantChecked(holder, name, RightDelete)
}
