// Package typesys implements rodengine's closed type system: primitive
// types of fixed width plus user-defined composites built from them.
//
// # Overview
//
// A TypeId identifies either a primitive (signed/unsigned integers of
// width 8/16/32/64, IEEE-754 binary32/binary64, or a 1-byte bool) or a
// composite: an ordered sequence of component TypeIds whose size is the
// sum of its components' sizes. Composites are acyclic by construction —
// the registry is append-only and immutable once a type is referenced by
// any field, so a component must exist before it can be named, and cycles
// cannot arise without a registry bug. register_composite nonetheless
// walks the new descriptor's component graph via DFS and rejects anything
// that would not resolve to a finite size, both as a direct spec
// requirement and as a defense against future registry changes.
//
// # Packing
//
// Composite alignment (the registry's reported Alignment field) is
// informational only, for external consumers that want natural alignment
// hints. The storage engine (internal/storage) always tight-packs with
// record alignment forced to 1; it never consults Alignment to insert
// padding.
//
// # Concurrency
//
// The registry is a value published through internal/swapcell, the same
// pattern used by internal/schema's catalog and every table's storage
// buffer (spec §5 "Shared-resource policy"): readers call Snapshot() and
// get an immutable view; writes are serialized by an internal mutex and
// publish a new snapshot on success, leaving the old one untouched on
// failure.
package typesys
