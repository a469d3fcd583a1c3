package integrity

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/metrics"
	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/storage"
)

// TableView is the read surface the enforcer needs over one table's
// records: both *storage.Buffer (a committed, published snapshot) and
// *storage.Mutation (an in-progress transaction's working copy) satisfy
// it, so the caller can hand over whichever view is live for a table at
// check time.
type TableView interface {
	RecordBytes(i int) ([]byte, error)
	Iter() *storage.Iterator
}

// ViewLookup resolves a table name to its current view, as seen by the
// caller's transaction (the table's own working copy if already touched,
// its last-published Buffer otherwise).
type ViewLookup func(table string) (TableView, error)

type refIndex struct {
	view   TableView
	values map[string]int
}

// Enforcer is the relation enforcer of spec §4.6, checking RESTRICT
// relations on every record delete.
type Enforcer struct {
	catalog *schema.Catalog

	mu    sync.Mutex
	cache map[uuid.UUID]*refIndex
}

// NewEnforcer returns an Enforcer checking relations registered in cat.
func NewEnforcer(cat *schema.Catalog) *Enforcer {
	return &Enforcer{catalog: cat, cache: make(map[uuid.UUID]*refIndex)}
}

// CheckDelete verifies that deleting record index within table is not
// blocked by any RESTRICT relation that names table as a destination. If
// a referencing record is found, it returns *errs.RelationViolationError
// and the caller must not apply the delete.
func (e *Enforcer) CheckDelete(lookup ViewLookup, table string, index int) error {
	relations := e.catalog.RelationsDestinedAt(table)
	if len(relations) == 0 {
		return nil
	}

	destTable, ok := e.catalog.Table(table)
	if !ok {
		return nil // unknown table: nothing for the enforcer to protect
	}
	destView, err := lookup(table)
	if err != nil {
		return err
	}
	destRecord, err := destView.RecordBytes(index)
	if err != nil {
		return err
	}

	for _, rel := range relations {
		destField, ok := destTable.FieldByName(rel.DestField)
		if !ok {
			continue
		}
		destValue := string(destRecord[destField.Offset : destField.Offset+destField.Size])

		srcTable, ok := e.catalog.Table(rel.SourceTable)
		if !ok {
			continue
		}
		srcField, ok := srcTable.FieldByName(rel.SourceField)
		if !ok {
			continue
		}
		srcView, err := lookup(rel.SourceTable)
		if err != nil {
			return err
		}

		idx := e.indexFor(rel.ID, srcView, srcField)
		if idx.values[destValue] > 0 {
			referring := findReferringIndex(srcView, srcField, destValue)
			metrics.RelationViolationsTotal.Inc()
			return &errs.RelationViolationError{RelationID: rel.ID.String(), ReferringIndex: referring}
		}
	}
	return nil
}

// indexFor returns the cached value-presence index for relation id
// against view, rebuilding it if view is not the same object the cache
// was last built from (e.g. the table was mutated since). Only immutable
// *storage.Buffer views are cached; a *storage.Mutation changes in place,
// so its index is rebuilt on every call.
func (e *Enforcer) indexFor(id uuid.UUID, view TableView, srcField schema.Field) *refIndex {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, immutable := view.(*storage.Buffer)
	if cached, ok := e.cache[id]; ok && immutable && cached.view == view {
		return cached
	}

	values := make(map[string]int)
	it := view.Iter()
	for {
		_, rec, ok := it.Next()
		if !ok {
			break
		}
		v := string(rec[srcField.Offset : srcField.Offset+srcField.Size])
		values[v]++
	}

	idx := &refIndex{view: view, values: values}
	if immutable {
		e.cache[id] = idx
	}
	return idx
}

// findReferringIndex re-scans view for the first record whose srcField
// bytes equal target, for error reporting only (the presence check
// itself uses the cached index; this walk runs solely on the rare path
// where a delete is actually being rejected).
func findReferringIndex(view TableView, srcField schema.Field, target string) int {
	it := view.Iter()
	for {
		idx, rec, ok := it.Next()
		if !ok {
			break
		}
		if string(rec[srcField.Offset:srcField.Offset+srcField.Size]) == target {
			return idx
		}
	}
	return -1
}

// InvalidateTable drops any cached index built against table's source
// records, forcing the next CheckDelete against a relation sourced from
// table to rebuild from the supplied view. internal/txn calls this after
// committing a transaction that touched table.
func (e *Enforcer) InvalidateTable(table string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rel := range e.catalog.Relations() {
		if rel.SourceTable == table {
			delete(e.cache, rel.ID)
		}
	}
}
