// Package harness runs membrane scenarios and records their traces.
//
// A scenario builds a host world, applies a whitelist policy, and drives
// guest operations through the membrane, checking each step's result and
// the audit log afterwards.
//
// # Scenario Format
//
//	name: frozen_record
//	description: "Writes to a frozen record are denied"
//	session: s1
//	world:
//	  records:
//	    config: { limit: 10 }
//	  functions:
//	    - path: Math.max
//	      builtin: max
//	policy:
//	  entries:
//	    - path: Math.max
//	      shape: plain
//	steps:
//	  - op: freeze
//	    target: config
//	  - op: write
//	    target: config
//	    name: limit
//	    value: 11
//	    expect: { error: NOT_SETTABLE }
//	assertions:
//	  - type: fault_count
//	    count: 1
//
// # Values
//
// Step values are YAML literals. Maps become plain records (keys in
// canonical order), lists become arrays. A string starting with "$" names a
// saved step result ("$p", "$tm.stamp"); a string starting with "@" is a
// world path ("@config.limit"). Targets are always references; a bare
// target is a world path.
//
// # Trace
//
// Every step appends a TraceEvent holding the op, its rendered result or
// error code, and the denials observed while it ran. Rendering never
// includes object ids, so traces are stable across runs and can be
// compared against golden files.
//
// # Deterministic Testing
//
// The harness uses:
//   - Fixed session ids (scenario.session, default "test-session")
//   - Deterministic logical clocks (testutil.DeterministicClock)
//   - In-memory SQLite audit log unless WithDB names a file
package harness
