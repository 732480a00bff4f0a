// Package queryir is a small query language over the membrane audit log.
//
// A Query names one audit table and filters its rows with a Predicate.
// Backends compile it; nothing here touches a database.
//
//	[harness assertions, cli trace] → [queryir.Select] → [querysql] → SQLite
//
// # Critical Patterns
//
// Closed schema
//   - Columns is the only source of table and column names; Validate
//     rejects anything else, so compiled SQL never carries caller text
//     outside parameters
//
// Primitive comparisons
//   - Equals compares against strings, ints or bools; null and undefined
//     are rejected instead of silently matching nothing
//
// Deterministic results
//   - every Select reads rows in seq order; there is no other ordering
//
// Optional filters
//   - Eq("op", "") is nil and All drops nils, so CLI flags and assertion
//     fields can be passed through unconditionally
package queryir
