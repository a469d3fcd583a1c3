// Package swapcell implements the atomic swap cell from spec §4.4: a
// one-slot container holding a shared, immutable pointer to a value.
// Readers atomically acquire a stable snapshot; a single writer at a time
// atomically publishes a replacement.
//
// # Memory ordering
//
// Cell[T] is built directly on atomic.Pointer[T], whose Store/Load carry
// the release/acquire semantics the spec requires: any reader that
// observes a new pointer also observes every byte the publishing writer
// wrote before the Store. A reader that holds a *T keeps that exact value
// alive and consistent for as long as it retains the pointer, even after
// a later Store replaces the cell's contents — Go's garbage collector
// frees the old value only once the last reference (including a retained
// reader's local variable) is gone, which is exactly the "old snapshot
// persists as long as any reader retains it" rule from spec §4.4.
//
// # Invariant
//
// Every value passed to Store must already be fully constructed and
// considered immutable by every goroutine that might call Store or Load
// concurrently; Cell[T] itself enforces nothing about T's internal
// mutability, it only guarantees atomic, ordered publish/load of the
// pointer.
package swapcell
