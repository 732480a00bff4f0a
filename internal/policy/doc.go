// Package policy compiles whitelist tables and applies them to a
// membrane.Runtime.
//
// A table lists, per exposed slot path ("Math.max", "Point.prototype.getX"),
// the function shape, the rights guests get on the slot, the super
// constructor for constructors, and optional pre/post rewrite hooks run
// around every call. Tables are written in CUE or YAML; both compile to
// the same Table.
//
// CRITICAL PATTERNS:
//
// 1. Validate before touching the Runtime
//   - Validate reports every problem (it does not fail fast)
//   - Apply refuses a table with any validation error
//
// 2. Supers first
//   - constructor entries are applied after the entries they derive from
//   - a cycle of super references is a validation error
package policy
