package txn

import (
	"fmt"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/integrity"
	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/storage"
)

// undoEntry records the pre-state of one operation on one table. Update
// and delete entries carry the record's prior bytes; insert entries carry
// only the assigned index, and compact entries only the number of
// surviving records, so neither holds the bytes needed to restore a
// reused slot or an uncompacted buffer byte-for-byte. Rollback prior to
// Commit never replays these (discarding the Mutation is sufficient,
// since nothing was published).
type undoEntry struct {
	table string
	kind  string // "insert", "update", "delete", "compact"
	index int
	prior []byte // record bytes as they stood before the operation; nil for insert
}

// Transaction is one in-progress unit of work against the catalog.
// Tables are copied into a working Mutation lazily, on first touch;
// untouched tables are never copied (spec §4.5 "copy-on-first-write").
type Transaction struct {
	catalog  *schema.Catalog
	enforcer *integrity.Enforcer

	mutations map[string]*storage.Mutation
	touched   []string // commit order: first-touch order
	undo      []undoEntry
}

func newTransaction(cat *schema.Catalog, enf *integrity.Enforcer) *Transaction {
	return &Transaction{
		catalog:   cat,
		enforcer:  enf,
		mutations: make(map[string]*storage.Mutation),
	}
}

// mutationFor returns the working Mutation for tableName, creating it
// from the table's currently published Buffer on first call within this
// transaction.
func (tx *Transaction) mutationFor(tableName string) (*storage.Mutation, *schema.Table, error) {
	table, ok := tx.catalog.Table(tableName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: table %q", errs.ErrUnknownTable, tableName)
	}
	if m, ok := tx.mutations[tableName]; ok {
		return m, table, nil
	}
	m := storage.BeginMutation(table.Cell.Load())
	tx.mutations[tableName] = m
	tx.touched = append(tx.touched, tableName)
	return m, table, nil
}

// view returns the current read view of tableName: its working Mutation
// if this transaction has already touched it, otherwise its last
// published Buffer. Satisfies integrity.ViewLookup.
func (tx *Transaction) view(tableName string) (integrity.TableView, error) {
	if m, ok := tx.mutations[tableName]; ok {
		return m, nil
	}
	table, ok := tx.catalog.Table(tableName)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", errs.ErrUnknownTable, tableName)
	}
	return table.Cell.Load(), nil
}

// Insert encodes values against table's fields in declared order and
// inserts the resulting record, reusing a freed slot if one is
// available.
func (tx *Transaction) Insert(tableName string, values []storage.FieldValue) (int, error) {
	m, table, err := tx.mutationFor(tableName)
	if err != nil {
		return 0, err
	}
	rec, err := encodeTableRecord(tx.catalog, table, values)
	if err != nil {
		return 0, err
	}
	idx, err := m.Insert(rec)
	if err != nil {
		return 0, err
	}
	tx.undo = append(tx.undo, undoEntry{table: tableName, kind: "insert", index: idx})
	return idx, nil
}

// Update re-encodes and overwrites record index's full contents.
func (tx *Transaction) Update(tableName string, index int, values []storage.FieldValue) error {
	m, table, err := tx.mutationFor(tableName)
	if err != nil {
		return err
	}
	prior, err := m.RecordBytes(index)
	if err != nil {
		return err
	}
	rec, err := encodeTableRecord(tx.catalog, table, values)
	if err != nil {
		return err
	}
	if err := m.Update(index, rec); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undoEntry{table: tableName, kind: "update", index: index, prior: prior})
	return nil
}

// Delete removes record index from tableName, failing with
// *errs.RelationViolationError if any RESTRICT relation destined at
// tableName still references it.
func (tx *Transaction) Delete(tableName string, index int) error {
	if err := tx.enforcer.CheckDelete(tx.view, tableName, index); err != nil {
		return err
	}
	m, _, err := tx.mutationFor(tableName)
	if err != nil {
		return err
	}
	prior, err := m.Delete(index)
	if err != nil {
		return err
	}
	tx.undo = append(tx.undo, undoEntry{table: tableName, kind: "delete", index: index, prior: prior})
	return nil
}

// Compact reclaims every freed slot in tableName, reindexing live
// records contiguously in their previous relative order. Every logical
// index previously returned by Insert for this table is invalidated by
// a successful call; callers must not rely on indices recorded before a
// Compact.
func (tx *Transaction) Compact(tableName string) error {
	m, _, err := tx.mutationFor(tableName)
	if err != nil {
		return err
	}
	compacted, remap := m.Compact()
	tx.mutations[tableName] = storage.BeginMutation(compacted)
	tx.undo = append(tx.undo, undoEntry{table: tableName, kind: "compact", index: len(remap)})
	return nil
}

// Get reads record index from tableName's current view (working copy if
// touched, else the last published buffer) and decodes it against the
// table's fields.
func (tx *Transaction) Get(tableName string, index int) ([]storage.FieldValue, error) {
	table, ok := tx.catalog.Table(tableName)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", errs.ErrUnknownTable, tableName)
	}
	view, err := tx.view(tableName)
	if err != nil {
		return nil, err
	}
	rec, err := view.RecordBytes(index)
	if err != nil {
		return nil, err
	}
	return decodeTableRecord(tx.catalog, table, rec)
}

// commit publishes every touched table's working buffer, in first-touch
// order, and invalidates the enforcer's cached reference indexes for
// those tables.
func (tx *Transaction) commit() error {
	for _, name := range tx.touched {
		table, ok := tx.catalog.Table(name)
		if !ok {
			continue // table was dropped concurrently by a schema mutation; nothing to publish
		}
		table.Cell.Store(tx.mutations[name].Publish())
	}
	for _, name := range tx.touched {
		tx.enforcer.InvalidateTable(name)
	}
	return nil
}

// discard abandons every working buffer built by this transaction. Safe
// to call whether or not commit ran; calling it after commit is a no-op
// since nothing further references the (already published) mutations.
func (tx *Transaction) discard() {
	tx.mutations = nil
	tx.touched = nil
}

func encodeTableRecord(cat *schema.Catalog, table *schema.Table, values []storage.FieldValue) ([]byte, error) {
	if len(values) != len(table.Fields) {
		return nil, &errs.TypeMismatchError{Expected: fmt.Sprintf("%d values", len(table.Fields)), Actual: fmt.Sprintf("%d values", len(values))}
	}
	rec := make([]byte, table.RecordSize)
	for i, f := range table.Fields {
		if err := storage.EncodeValue(cat.Types, f.Type, rec[f.Offset:f.Offset+f.Size], values[i]); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func decodeTableRecord(cat *schema.Catalog, table *schema.Table, rec []byte) ([]storage.FieldValue, error) {
	out := make([]storage.FieldValue, len(table.Fields))
	for i, f := range table.Fields {
		v, err := storage.DecodeValue(cat.Types, f.Type, rec[f.Offset:f.Offset+f.Size])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
