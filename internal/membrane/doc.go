// Package membrane mediates every access untrusted guest code makes to the
// shared object graph.
//
// The Runtime owns all bookkeeping: per-slot access rights, function
// shapes, taming registrations and per-slot fault handlers. None of it is
// stored in guest-visible slots; everything lives in key-lifetime side
// tables attached to the objects it describes.
//
// Guest code only ever holds a *Guest and the values it received through
// it. Host code holds the *Runtime.
//
// CRITICAL PATTERNS:
//
//  1. Only grants are cached. Denials are recomputed on every access, so a
//     cached right can never go stale in the permissive direction.
//
//  2. Rights belong to the object that directly holds a slot (the
//     "holder"), never to an object that merely delegates to it.
//
//  3. Names ending in a reserved suffix ("__") are invisible to every
//     mediated operation. No cached grant or handler can override this.
//
//  4. A frozen object rejects every write and delete, before any grant or
//     handler is consulted.
//
//  5. Writes always define or overwrite a local slot. A frozen delegation
//     parent therefore never blocks override-by-assignment on a child.
//
//  6. Deep taming registers a provisional pair before recursing and removes
//     it on every exit path, so cyclic records terminate.
//
// A Runtime is not safe for concurrent use.
package membrane
