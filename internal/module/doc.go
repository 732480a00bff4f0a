// Package module loads guest units into a membrane.Runtime.
//
// A Unit is metadata plus an instantiate function. LoadModule freezes the
// metadata, classifies instantiate as a Plain function and hands the
// resulting Module to the active Handler. The default NormalHandler keeps
// one mutable imports record shared by every unit it runs and records the
// outcome of each run instead of propagating failures.
//
// CRITICAL PATTERNS:
//
// 1. Outcomes, not panics or returned errors
//   - instantiate errors become Outcome{Success: false}
//   - NoResult leaves the previous outcome in place
//   - LoadModule returns an error only for a malformed Unit
//
// 2. Content-addressed module ids
//   - Meta.ID wins when set
//   - otherwise the id is ir.ModuleID of the canonical metadata record
package module
