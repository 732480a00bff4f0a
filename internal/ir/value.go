package ir

import (
	"fmt"
	"strconv"
)

// Value is a sealed interface representing everything a slot can hold.
// Only Undefined, Null, String, Int, Bool and *Object implement this.
// NO Float - floats are forbidden (breaks identity and determinism).
type Value interface {
	value() // Sealed - only these types implement it
}

// Undefined is the value of an absent slot and the default read fault.
type Undefined struct{}

func (Undefined) value() {}

// Null is the explicit empty value.
type Null struct{}

func (Null) value() {}

// String represents a string value.
type String string

func (String) value() {}

// Int represents an integer value.
// Always int64, never float64.
type Int int64

func (Int) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

func (*Object) value() {}

// IsPrimitive reports whether v is not an object. A nil Value counts as
// Undefined and is primitive.
func IsPrimitive(v Value) bool {
	_, ok := v.(*Object)
	return !ok
}

// AsObject returns v as an object, or nil if v is primitive.
func AsObject(v Value) *Object {
	o, _ := v.(*Object)
	return o
}

// IsUndefined reports whether v is Undefined (or a nil interface).
func IsUndefined(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Undefined)
	return ok
}

// Normalize replaces a nil Value with Undefined.
func Normalize(v Value) Value {
	if v == nil {
		return Undefined{}
	}
	return v
}

// Same reports identity: objects compare by pointer, primitives by value.
func Same(a, b Value) bool {
	return Normalize(a) == Normalize(b)
}

// TypeName returns a short name for the dynamic type of v, for messages.
func TypeName(v Value) string {
	switch val := Normalize(v).(type) {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case *Object:
		return val.Kind().String()
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Describe renders v for log lines and error messages. It never reads slots.
func Describe(v Value) string {
	switch val := Normalize(v).(type) {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case String:
		return strconv.Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case *Object:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
