// Package store provides a SQLite-backed audit log for a membrane session.
//
// The store is append-only and records:
//   - Outcomes: one row per module instantiation recorded by a handler
//   - Faults: one row per access the mediators denied
//
// # Critical Patterns
//
// Logical time
//   - every row is stamped with seq from a logical Clock, never wall time
//   - reopening a log resumes the clock after the highest stored seq
//
// Deterministic query results
//   - all reads ORDER BY seq ASC
//   - filtered reads go through queryir/querysql: values are bound as
//     parameters, column names come from queryir.Columns
//
// Observers never fail the caller
//   - ObserveFault and ObserveOutcome log write failures and keep them for
//     Err; mediation and module loading continue
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - one open connection: writes are serialised
package store
