// Package ir provides the dynamic object model the membrane mediates.
//
// This package contains the value and object types only. All other internal
// packages import ir; ir imports nothing internal. Access rights, function
// shapes and taming registrations are NOT stored here: they live in
// out-of-band side tables owned by the membrane, so nothing a guest writes
// can collide with bookkeeping.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Object identity is pointer identity; every object also has a
//     process-unique ID used for logs and audit rows
//   - The direct constructor of an object is recorded at construction time
//     and never recomputed by walking the delegation chain
//   - Freeze is one-way; a frozen object never gains, loses or mutates
//     local slots
//   - Annotations (key-lifetime storage) are not slots and survive freeze
package ir
