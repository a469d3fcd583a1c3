package rodb

import (
	"context"

	"github.com/google/uuid"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/handlers"
	"github.com/rodd-oss/rodengine/internal/integrity"
	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/storage"
	"github.com/rodd-oss/rodengine/internal/txn"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

// Engine is a fully wired storage engine: the type registry, schema
// catalog, relation enforcer, single-writer transaction engine, and
// handler registry, all bound together. It is the one type most callers
// need to import.
type Engine struct {
	Types    *typesys.Registry
	Catalog  *schema.Catalog
	Enforcer *integrity.Enforcer
	Txn      *txn.Engine
	Handlers *handlers.Registry
}

// New builds an Engine around a fresh, empty catalog and starts its
// writer goroutine.
func New() *Engine {
	return FromCatalog(schema.NewCatalog(typesys.NewRegistry()))
}

// FromCatalog wires an Engine around an already-built catalog, e.g. one
// produced by internal/recovery.Load — so a recovered instance and a
// freshly created one share the same wiring path.
func FromCatalog(cat *schema.Catalog) *Engine {
	enf := integrity.NewEnforcer(cat)
	txe := txn.NewEngine(cat, enf)
	txe.Start()
	return &Engine{
		Types:    cat.Types,
		Catalog:  cat,
		Enforcer: enf,
		Txn:      txe,
		Handlers: handlers.NewRegistry(txe),
	}
}

// Close stops the writer goroutine. Safe to call once; further Submit
// calls through the Engine will fail with errs.ErrWriterShutdown.
func (e *Engine) Close() {
	e.Txn.Stop()
}

// TableRef identifies a table by name or by its uuid.UUID handle, the
// caller's choice per spec §4.10.
type TableRef struct {
	name string
	id   uuid.UUID
	byID bool
}

// Table builds a TableRef from a table name.
func Table(name string) TableRef { return TableRef{name: name} }

// TableID builds a TableRef from a table's uuid.UUID handle.
func TableID(id uuid.UUID) TableRef { return TableRef{id: id, byID: true} }

func (e *Engine) resolveTable(ref TableRef) (*schema.Table, error) {
	if ref.byID {
		t, ok := e.Catalog.TableByID(ref.id)
		if !ok {
			return nil, errs.ErrUnknownTable
		}
		return t, nil
	}
	t, ok := e.Catalog.Table(ref.name)
	if !ok {
		return nil, errs.ErrUnknownTable
	}
	return t, nil
}

func decodeRecord(types *typesys.Registry, table *schema.Table, rec []byte) ([]storage.FieldValue, error) {
	values := make([]storage.FieldValue, len(table.Fields))
	for i, f := range table.Fields {
		v, err := storage.DecodeValue(types, f.Type, rec[f.Offset:f.Offset+f.Size])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// CreateTable defines a new table (schema.create_table).
func (e *Engine) CreateTable(name string, fields []schema.FieldDef) (*schema.Table, error) {
	return e.Catalog.CreateTable(name, fields)
}

// DeleteTable removes a table and cascades relation deletion
// (schema.delete_table).
func (e *Engine) DeleteTable(name string) error {
	return e.Catalog.DeleteTable(name)
}

// AddField appends a field to an empty table (schema.add_field).
func (e *Engine) AddField(table string, def schema.FieldDef) error {
	return e.Catalog.AddField(table, def)
}

// RemoveField removes a field from an empty, unreferenced table
// (schema.remove_field).
func (e *Engine) RemoveField(table, field string) error {
	return e.Catalog.RemoveField(table, field)
}

// CreateRelation establishes a RESTRICT relation between two fields
// (schema.create_relation).
func (e *Engine) CreateRelation(srcTable, srcField, dstTable, dstField string) (uuid.UUID, error) {
	return e.Catalog.CreateRelation(srcTable, srcField, dstTable, dstField)
}

// DeleteRelation removes a relation by id (schema.delete_relation).
func (e *Engine) DeleteRelation(id uuid.UUID) error {
	return e.Catalog.DeleteRelation(id)
}

// Insert appends a new record to table, returning its index
// (data.insert). Runs as its own single-operation transaction.
func (e *Engine) Insert(ctx context.Context, table TableRef, values []storage.FieldValue) (int, error) {
	t, err := e.resolveTable(table)
	if err != nil {
		return 0, err
	}
	var idx int
	err = e.Txn.Submit(ctx, func(tx *txn.Transaction) error {
		var err error
		idx, err = tx.Insert(t.Name, values)
		return err
	})
	return idx, err
}

// Read returns the record at index (data.read). Reads never touch the
// writer queue: they load the table's published buffer directly, giving
// a consistent snapshot without blocking on in-flight writes.
func (e *Engine) Read(table TableRef, index int) ([]storage.FieldValue, error) {
	t, err := e.resolveTable(table)
	if err != nil {
		return nil, err
	}
	rec, err := t.Cell.Load().RecordBytes(index)
	if err != nil {
		return nil, err
	}
	return decodeRecord(e.Types, t, rec)
}

// Update overwrites the record at index (data.update).
func (e *Engine) Update(ctx context.Context, table TableRef, index int, values []storage.FieldValue) error {
	t, err := e.resolveTable(table)
	if err != nil {
		return err
	}
	return e.Txn.Submit(ctx, func(tx *txn.Transaction) error {
		return tx.Update(t.Name, index, values)
	})
}

// Delete removes the record at index, subject to RESTRICT relation
// checks (data.delete).
func (e *Engine) Delete(ctx context.Context, table TableRef, index int) error {
	t, err := e.resolveTable(table)
	if err != nil {
		return err
	}
	return e.Txn.Submit(ctx, func(tx *txn.Transaction) error {
		return tx.Delete(t.Name, index)
	})
}

// Compact reclaims table's freed slots, reindexing live records
// contiguously (data.compact). Every index previously returned by
// Insert for this table is invalidated by a successful call.
func (e *Engine) Compact(ctx context.Context, table TableRef) error {
	t, err := e.resolveTable(table)
	if err != nil {
		return err
	}
	return e.Txn.Submit(ctx, func(tx *txn.Transaction) error {
		return tx.Compact(t.Name)
	})
}

// List returns up to limit live records starting after offset, in
// ascending index order (data.list). limit <= 0 means unbounded.
func (e *Engine) List(table TableRef, limit, offset int) ([][]storage.FieldValue, error) {
	t, err := e.resolveTable(table)
	if err != nil {
		return nil, err
	}
	it := t.Cell.Load().Iter()
	var out [][]storage.FieldValue
	skipped := 0
	for {
		_, rec, ok := it.Next()
		if !ok {
			break
		}
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		values, err := decodeRecord(e.Types, t, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, nil
}

// RecordIterator is the lazy sequence returned by Engine.Iter
// (data.iter), decoding each live record on demand.
type RecordIterator struct {
	types *typesys.Registry
	table *schema.Table
	it    *storage.Iterator
}

// Next advances the iterator, decoding the next live record if any.
func (it *RecordIterator) Next() (index int, values []storage.FieldValue, ok bool) {
	i, rec, ok := it.it.Next()
	if !ok {
		return 0, nil, false
	}
	values, err := decodeRecord(it.types, it.table, rec)
	if err != nil {
		return i, nil, false
	}
	return i, values, true
}

// Iter returns a lazy iterator over table's live records as of the
// moment Iter was called (data.iter).
func (e *Engine) Iter(table TableRef) (*RecordIterator, error) {
	t, err := e.resolveTable(table)
	if err != nil {
		return nil, err
	}
	return &RecordIterator{types: e.Types, table: t, it: t.Cell.Load().Iter()}, nil
}

// RegisterProc registers a procedure callback (proc.register).
func (e *Engine) RegisterProc(name string, fn handlers.Func) (uuid.UUID, error) {
	return e.Handlers.Register(name, fn)
}

// InvokeProc runs a registered procedure inside a fresh transaction
// (proc.invoke).
func (e *Engine) InvokeProc(ctx context.Context, id uuid.UUID) error {
	return e.Handlers.Invoke(ctx, id)
}

// InvokeProcByName resolves name to its current id and invokes it,
// letting proc.invoke(name, args) callers address procedures by name
// instead of by handle.
func (e *Engine) InvokeProcByName(ctx context.Context, name string) error {
	id, ok := e.Handlers.IDForName(name)
	if !ok {
		return errs.ErrUnknownHandler
	}
	return e.Handlers.Invoke(ctx, id)
}

// UnregisterProc removes a registered procedure (proc.unregister).
func (e *Engine) UnregisterProc(id uuid.UUID) error {
	return e.Handlers.Unregister(id)
}

// ListProcs returns every registered procedure in registration order.
func (e *Engine) ListProcs() []handlers.Info {
	return e.Handlers.List()
}
