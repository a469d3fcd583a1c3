// See doc.go for complete package documentation.
package storage

import (
	"fmt"

	"github.com/rodd-oss/rodengine/internal/errs"
)

// Buffer is an immutable, fully-initialized snapshot of one table's
// records: a contiguous byte slice plus its free-list state. Once
// published through a swapcell.Cell, a Buffer is never mutated — readers
// borrow directly into its bytes without copying.
type Buffer struct {
	data       []byte
	recordSize uint32
	freeMask   []bool // len == slot count; true means the slot is free
	freeStack  []int  // LIFO of free slot indices, for O(1) reuse
}

// BufferStats summarizes a Buffer's size for monitoring, mirroring the
// teacher's StoreStats (torua/internal/storage/store.go).
type BufferStats struct {
	Records int // live record count
	Slots   int // total slots, including free ones not yet compacted away
	Bytes   int // total buffer size in bytes
}

// NewEmptyBuffer returns a zero-record buffer for a table whose records
// are recordSize bytes each.
func NewEmptyBuffer(recordSize uint32) *Buffer {
	return &Buffer{recordSize: recordSize}
}

// NewBufferFromRaw reconstructs a Buffer from already-decoded data and
// free-slot mask, used by internal/recovery to restore a table exactly
// as it was captured by internal/snapshot (including free-list state, so
// logical indices survive a save/load round trip unchanged). data's
// length must be an exact multiple of recordSize and freeMask must have
// one entry per slot.
func NewBufferFromRaw(data []byte, recordSize uint32, freeMask []bool) *Buffer {
	var freeStack []int
	for i, free := range freeMask {
		if free {
			freeStack = append(freeStack, i)
		}
	}
	return &Buffer{
		data:       data,
		recordSize: recordSize,
		freeMask:   freeMask,
		freeStack:  freeStack,
	}
}

// RecordSize returns the fixed size in bytes of every record in this
// buffer.
func (b *Buffer) RecordSize() uint32 { return b.recordSize }

// Len returns the total slot count, i.e. buffer length divided by record
// size (spec §3 invariant 3). This includes free (deleted) slots not yet
// reclaimed by Compact.
func (b *Buffer) Len() int {
	if b.recordSize == 0 {
		return 0
	}
	return len(b.data) / int(b.recordSize)
}

// LiveCount returns the number of non-free (live) slots.
func (b *Buffer) LiveCount() int {
	return b.Len() - len(b.freeStack)
}

// IsFree reports whether slot i is on the free list. Out-of-range indices
// report false.
func (b *Buffer) IsFree(i int) bool {
	if i < 0 || i >= len(b.freeMask) {
		return false
	}
	return b.freeMask[i]
}

// RecordBytes returns a read-only view of record i's bytes, borrowing
// directly into the buffer (no copy). A free (deleted) slot is reported
// as out of bounds, like Mutation.RecordBytes. Callers must not mutate the
// returned slice: the Buffer is shared by every concurrent reader that
// has loaded this snapshot.
func (b *Buffer) RecordBytes(i int) ([]byte, error) {
	if i < 0 || i >= b.Len() || b.IsFree(i) {
		return nil, &errs.OutOfBoundsError{Index: i, Len: b.Len()}
	}
	start := i * int(b.recordSize)
	return b.data[start : start+int(b.recordSize) : start+int(b.recordSize)], nil
}

// FieldBytes returns a read-only view of one field's bytes within record
// i, given the field's byte offset and size within a record.
func (b *Buffer) FieldBytes(i int, offset, size uint32) ([]byte, error) {
	rec, err := b.RecordBytes(i)
	if err != nil {
		return nil, err
	}
	if uint64(offset)+uint64(size) > uint64(len(rec)) {
		return nil, fmt.Errorf("%w: field [%d,%d) exceeds record size %d", errs.ErrSizeOverflow, offset, offset+size, len(rec))
	}
	return rec[offset : offset+size], nil
}

// Stats returns current buffer statistics.
func (b *Buffer) Stats() BufferStats {
	return BufferStats{
		Records: b.LiveCount(),
		Slots:   b.Len(),
		Bytes:   len(b.data),
	}
}

// FragmentationRatio returns the fraction of slots that are free, in
// [0,1]. Exposed per spec §9 Open Question (ii): compaction is explicit
// only (Mutation.Compact), this is the signal a future automatic policy
// could act on; nothing in this package consults it.
func (b *Buffer) FragmentationRatio() float64 {
	slots := b.Len()
	if slots == 0 {
		return 0
	}
	return float64(len(b.freeStack)) / float64(slots)
}

// recordSource is the minimal read surface an Iterator needs; both
// Buffer and Mutation satisfy it, so internal/integrity can scan a
// table's committed records or its in-progress working copy uniformly.
type recordSource interface {
	Len() int
	IsFree(i int) bool
	RecordBytes(i int) ([]byte, error)
}

// Iterator yields live records of a recordSource in ascending index
// order. It is restartable: construct a new one to iterate again from
// the start. Built from a Buffer it never observes a mutation, since the
// Buffer is immutable; built from a Mutation it reflects edits made
// before the Iterator was constructed but not concurrent ones.
type Iterator struct {
	src  recordSource
	next int
}

// Iter returns a fresh Iterator positioned before the first live record.
func (b *Buffer) Iter() *Iterator {
	return &Iterator{src: b}
}

// Next advances the iterator and returns the next live record, in
// ascending index order, skipping free slots. ok is false once every
// slot has been visited.
func (it *Iterator) Next() (index int, record []byte, ok bool) {
	for it.next < it.src.Len() {
		i := it.next
		it.next++
		if it.src.IsFree(i) {
			continue
		}
		rec, err := it.src.RecordBytes(i)
		if err != nil {
			return 0, nil, false
		}
		return i, rec, true
	}
	return 0, nil, false
}

// Mutation is a mutable working copy of one table's Buffer, used
// exclusively inside a single in-progress transaction (internal/txn).
// It is created by copying an entire prior Buffer (copy-on-write at
// transaction scope, not per byte range) and frozen into a new immutable
// Buffer by Publish.
type Mutation struct {
	data       []byte
	recordSize uint32
	freeMask   []bool
	freeStack  []int
	published  bool
}

// BeginMutation returns a Mutation that is an independent copy of b,
// ready for Insert/Update/Delete. b itself is untouched.
func BeginMutation(b *Buffer) *Mutation {
	m := &Mutation{
		recordSize: b.recordSize,
		data:       append([]byte(nil), b.data...),
		freeMask:   append([]bool(nil), b.freeMask...),
		freeStack:  append([]int(nil), b.freeStack...),
	}
	return m
}

func (m *Mutation) checkNotPublished() {
	if m.published {
		panic("storage: Mutation used after Publish")
	}
}

// Len returns the current slot count.
func (m *Mutation) Len() int {
	if m.recordSize == 0 {
		return 0
	}
	return len(m.data) / int(m.recordSize)
}

// IsFree reports whether slot i is currently on the free list.
func (m *Mutation) IsFree(i int) bool {
	if i < 0 || i >= len(m.freeMask) {
		return false
	}
	return m.freeMask[i]
}

// Iter returns a fresh Iterator over the Mutation's current state. The
// Mutation must not be published or further mutated while the Iterator
// is in use.
func (m *Mutation) Iter() *Iterator {
	return &Iterator{src: m}
}

// RecordBytes returns a snapshot copy of record i's bytes. Unlike
// Buffer.RecordBytes this always copies, since the underlying array is
// still being mutated within the transaction and a borrowed slice could
// be invalidated by a subsequent Insert growing the backing array.
func (m *Mutation) RecordBytes(i int) ([]byte, error) {
	if i < 0 || i >= m.Len() || (i < len(m.freeMask) && m.freeMask[i]) {
		return nil, &errs.OutOfBoundsError{Index: i, Len: m.Len()}
	}
	start := i * int(m.recordSize)
	out := make([]byte, m.recordSize)
	copy(out, m.data[start:start+int(m.recordSize)])
	return out, nil
}

// Insert places record in the most recently freed slot (popped from the
// LIFO free stack) or, if none is free, at the end of the buffer. record must
// be exactly recordSize bytes. Returns the logical index assigned.
func (m *Mutation) Insert(record []byte) (int, error) {
	m.checkNotPublished()
	if uint32(len(record)) != m.recordSize {
		return 0, fmt.Errorf("%w: record is %d bytes, want %d", errs.ErrSizeOverflow, len(record), m.recordSize)
	}

	if n := len(m.freeStack); n > 0 {
		idx := m.freeStack[n-1]
		m.freeStack = m.freeStack[:n-1]
		m.freeMask[idx] = false
		start := idx * int(m.recordSize)
		copy(m.data[start:start+int(m.recordSize)], record)
		return idx, nil
	}

	idx := m.Len()
	m.data = append(m.data, record...)
	m.freeMask = append(m.freeMask, false)
	return idx, nil
}

// ReinsertAt forcibly places record at slot i, growing the buffer with
// free (masked) slots if necessary, and marks the slot live. Used by the
// undo log to restore a deleted record to its original index (spec §4.5
// "reinsert bytes at slot N with free-list state F").
func (m *Mutation) ReinsertAt(i int, record []byte) error {
	m.checkNotPublished()
	if uint32(len(record)) != m.recordSize {
		return fmt.Errorf("%w: record is %d bytes, want %d", errs.ErrSizeOverflow, len(record), m.recordSize)
	}
	for m.Len() <= i {
		m.data = append(m.data, make([]byte, m.recordSize)...)
		m.freeMask = append(m.freeMask, true)
		m.freeStack = append(m.freeStack, len(m.freeMask)-1)
	}
	start := i * int(m.recordSize)
	copy(m.data[start:start+int(m.recordSize)], record)
	if m.freeMask[i] {
		m.removeFromFreeStack(i)
		m.freeMask[i] = false
	}
	return nil
}

func (m *Mutation) removeFromFreeStack(i int) {
	for idx, v := range m.freeStack {
		if v == i {
			m.freeStack = append(m.freeStack[:idx], m.freeStack[idx+1:]...)
			return
		}
	}
}

// Update overwrites record i's full contents.
func (m *Mutation) Update(i int, record []byte) error {
	m.checkNotPublished()
	if uint32(len(record)) != m.recordSize {
		return fmt.Errorf("%w: record is %d bytes, want %d", errs.ErrSizeOverflow, len(record), m.recordSize)
	}
	if i < 0 || i >= m.Len() || m.freeMask[i] {
		return &errs.OutOfBoundsError{Index: i, Len: m.Len()}
	}
	start := i * int(m.recordSize)
	copy(m.data[start:start+int(m.recordSize)], record)
	return nil
}

// UpdateRange overwrites the byte range [offset, offset+len(data)) within
// record i, leaving the rest of the record untouched. Used for
// single-field updates so the undo log only needs to capture the
// previous bytes of that range.
func (m *Mutation) UpdateRange(i int, offset uint32, data []byte) error {
	m.checkNotPublished()
	if i < 0 || i >= m.Len() || m.freeMask[i] {
		return &errs.OutOfBoundsError{Index: i, Len: m.Len()}
	}
	if uint64(offset)+uint64(len(data)) > uint64(m.recordSize) {
		return fmt.Errorf("%w: range [%d,%d) exceeds record size %d", errs.ErrSizeOverflow, offset, uint64(offset)+uint64(len(data)), m.recordSize)
	}
	start := i*int(m.recordSize) + int(offset)
	copy(m.data[start:start+len(data)], data)
	return nil
}

// Delete marks slot i as free and returns a copy of the bytes it held
// immediately before deletion, for the undo log. Deleting an already-free
// or out-of-range slot is an error (the transaction layer is responsible
// for idempotency policy, if any is desired at a higher layer).
func (m *Mutation) Delete(i int) ([]byte, error) {
	m.checkNotPublished()
	if i < 0 || i >= m.Len() || m.freeMask[i] {
		return nil, &errs.OutOfBoundsError{Index: i, Len: m.Len()}
	}
	prev, _ := m.RecordBytes(i)
	m.freeMask[i] = true
	m.freeStack = append(m.freeStack, i)
	return prev, nil
}

// Compact rebuilds the buffer with live records contiguous and
// reindexed in their previous relative order, invalidating every prior
// logical index. It returns the new Buffer and a map from old index to
// new index for every record that survived (free slots have no entry).
func (m *Mutation) Compact() (*Buffer, map[int]int) {
	m.checkNotPublished()
	remap := make(map[int]int)
	newData := make([]byte, 0, len(m.data))
	newIndex := 0
	for i := 0; i < m.Len(); i++ {
		if m.freeMask[i] {
			continue
		}
		start := i * int(m.recordSize)
		newData = append(newData, m.data[start:start+int(m.recordSize)]...)
		remap[i] = newIndex
		newIndex++
	}
	out := &Buffer{
		data:       newData,
		recordSize: m.recordSize,
		freeMask:   make([]bool, newIndex),
		freeStack:  nil,
	}
	return out, remap
}

// Publish freezes the Mutation into an immutable Buffer. The Mutation
// must not be used again after Publish; doing so panics, since its
// backing array is now shared with the published Buffer.
func (m *Mutation) Publish() *Buffer {
	m.checkNotPublished()
	m.published = true
	return &Buffer{
		data:       m.data,
		recordSize: m.recordSize,
		freeMask:   m.freeMask,
		freeStack:  m.freeStack,
	}
}
