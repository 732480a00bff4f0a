// Package guard provides ejectors, guards, trademarks and sealer/unsealer
// pairs on top of a membrane.Runtime.
//
// CRITICAL PATTERNS:
//
// 1. Ejectors are results, not unwinding
//   - Eject returns an *Ejection error bound to one Ejector
//   - only the CallWithEjector that created the Ejector consumes it
//   - once the attempt returns, the Ejector is disabled for good
//
// 2. Trademarks are nominal
//   - a Trademark's Guard accepts exactly the objects its Stamp marked
//   - marks live in a key-lifetime table, never in slots
//   - StampAll validates every stamp before applying any
//
// 3. Every guard passes GuardT
//   - guards made by a Kit are stamped with GuardStamp at creation
//   - Check and PassesGuard coerce the guard through GuardT first
package guard
