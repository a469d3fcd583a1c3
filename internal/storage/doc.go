// Package storage implements the per-table storage buffer from spec §4.3:
// a contiguous, tight-packed, fixed-record byte buffer with bounds-checked
// accessors and zero-copy record access.
//
// # Architecture
//
// Generalizes the teacher's key-value Store interface
// (torua/internal/storage: Get/Put/Delete/List/Stats over a
// sync.RWMutex-guarded map[string][]byte) into a fixed-record binary
// layout addressed by logical index instead of string key:
//
//	┌──────────────────────────────────────┐
//	│              Buffer                  │
//	│  data: []byte (slotCount*recordSize) │
//	│  freeMask, freeStack: free-list state│
//	├──────────────────────────────────────┤
//	│  published (immutable, via swapcell) │
//	│  Record i @ [i*recordSize, (i+1)*rs) │
//	└──────────────────────────────────────┘
//	                 │ BeginMutation() copies whole buffer (COW)
//	                 ▼
//	┌──────────────────────────────────────┐
//	│             Mutation                 │
//	│  Insert/Update/Delete/Compact         │
//	│  Publish() → new immutable Buffer    │
//	└──────────────────────────────────────┘
//
// # Packing
//
// Record alignment is always 1: fields are laid out back to back with no
// inter-field padding, regardless of what internal/typesys reports as a
// type's informational alignment. Field access therefore never assumes
// the buffer's base address provides any field-specific alignment (spec
// §9 "Unsafe casting discipline") — primitive reads/writes go byte by byte
// through encoding/binary.LittleEndian, which is always correct
// regardless of the field's offset within the record.
//
// # Copy-on-write
//
// internal/txn copies an entire table's Buffer into a Mutation on first
// write within a transaction (not a partial byte-range share); spec §4.5
// permits finer-grained sharing but does not require it, and copying the
// whole (typically small, fixed-record) buffer keeps the bookkeeping
// simple while still publishing a single contiguous allocation on commit.
//
// # Free list
//
// Deleted slots are pushed onto a LIFO free stack and marked in a free
// mask; Insert pops the stack before appending, giving O(1) slot reuse
// and the "free-list reuse yields identical index" boundary behavior from
// spec §8 when a single slot is freed and immediately reused.
package storage
