package schema

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/storage"
	"github.com/rodd-oss/rodengine/internal/swapcell"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

// FieldDef is caller-supplied input to CreateTable/AddField: a name and a
// type, with the byte offset left for the catalog to derive.
type FieldDef struct {
	Name string
	Type typesys.TypeId
}

// catalogSnapshot is the immutable state published through Catalog.cell.
// Insertion order of tables/relations is preserved in the order slices
// for stable JSON and iteration output (spec §3 "insertion-order
// preserved for iteration stability").
type catalogSnapshot struct {
	tables      map[string]*Table
	tablesByID  map[uuid.UUID]*Table
	tableOrder  []string
	relations   map[uuid.UUID]*Relation
	relOrder    []uuid.UUID
}

func emptyCatalogSnapshot() *catalogSnapshot {
	return &catalogSnapshot{
		tables:     make(map[string]*Table),
		tablesByID: make(map[uuid.UUID]*Table),
		relations:  make(map[uuid.UUID]*Relation),
	}
}

func (s *catalogSnapshot) clone() *catalogSnapshot {
	out := &catalogSnapshot{
		tables:     make(map[string]*Table, len(s.tables)),
		tablesByID: make(map[uuid.UUID]*Table, len(s.tablesByID)),
		tableOrder: append([]string(nil), s.tableOrder...),
		relations:  make(map[uuid.UUID]*Relation, len(s.relations)),
		relOrder:   append([]uuid.UUID(nil), s.relOrder...),
	}
	for k, v := range s.tables {
		out.tables[k] = v
	}
	for k, v := range s.tablesByID {
		out.tablesByID[k] = v
	}
	for k, v := range s.relations {
		out.relations[k] = v
	}
	return out
}

// Catalog is the schema catalog for one rodengine instance: table,
// field, and relation metadata, plus the type registry fields are
// declared against. Reads are lock-free snapshot loads; writes are
// serialized by mu and validated against a cloned snapshot before
// publishing (spec §4.2 "computed from an immutable snapshot and then
// published; on any validation failure the snapshot is untouched").
type Catalog struct {
	cell  swapcell.Cell[catalogSnapshot]
	mu    sync.Mutex
	Types *typesys.Registry
}

// NewCatalog returns an empty Catalog backed by types for field type
// resolution.
func NewCatalog(types *typesys.Registry) *Catalog {
	c := &Catalog{Types: types}
	c.cell.Store(emptyCatalogSnapshot())
	return c
}

// Snapshot returns the current immutable catalog state.
func (c *Catalog) Snapshot() *catalogSnapshot {
	return c.cell.Load()
}

// Table returns the named table, if any.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.Snapshot().tables[name]
	return t, ok
}

// TableByID returns the table with the given handle, if any.
func (c *Catalog) TableByID(id uuid.UUID) (*Table, bool) {
	t, ok := c.Snapshot().tablesByID[id]
	return t, ok
}

// Tables returns every table in creation order.
func (c *Catalog) Tables() []*Table {
	s := c.Snapshot()
	out := make([]*Table, 0, len(s.tableOrder))
	for _, name := range s.tableOrder {
		out = append(out, s.tables[name])
	}
	return out
}

// Relation returns the relation with the given handle, if any.
func (c *Catalog) Relation(id uuid.UUID) (*Relation, bool) {
	r, ok := c.Snapshot().relations[id]
	return r, ok
}

// Relations returns every relation in creation order.
func (c *Catalog) Relations() []*Relation {
	s := c.Snapshot()
	out := make([]*Relation, 0, len(s.relOrder))
	for _, id := range s.relOrder {
		out = append(out, s.relations[id])
	}
	return out
}

// RelationsDestinedAt returns every relation whose destination table is
// tableName, the set internal/integrity scans when a record in
// tableName is about to be deleted.
func (c *Catalog) RelationsDestinedAt(tableName string) []*Relation {
	var out []*Relation
	for _, r := range c.Relations() {
		if r.DestTable == tableName {
			out = append(out, r)
		}
	}
	return out
}

func validateName(name string) error {
	if name == "" {
		return errs.ErrInvalidName
	}
	return nil
}

// CreateTable registers a new table with the given fields, computing
// each field's byte_offset as the prefix sum of the preceding fields'
// sizes (tight packing, no padding). The table starts with an empty
// buffer.
func (c *Catalog) CreateTable(name string, defs []FieldDef) (*Table, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.Snapshot()
	if _, exists := cur.tables[name]; exists {
		return nil, fmt.Errorf("%w: table %q", errs.ErrDuplicateName, name)
	}

	fields, recordSize, err := c.buildFields(defs)
	if err != nil {
		return nil, err
	}

	table := &Table{
		ID:         uuid.New(),
		Name:       name,
		Fields:     fields,
		RecordSize: recordSize,
		Cell:       &swapcell.Cell[storage.Buffer]{},
	}
	table.Cell.Store(storage.NewEmptyBuffer(recordSize))

	next := cur.clone()
	next.tables[name] = table
	next.tablesByID[table.ID] = table
	next.tableOrder = append(next.tableOrder, name)
	c.cell.Store(next)

	return table, nil
}

// buildFields validates and lays out defs against the catalog's type
// registry, computing tight-packed offsets.
func (c *Catalog) buildFields(defs []FieldDef) ([]Field, uint32, error) {
	seen := make(map[string]bool, len(defs))
	fields := make([]Field, 0, len(defs))
	var offset uint64
	for _, d := range defs {
		if err := validateName(d.Name); err != nil {
			return nil, 0, err
		}
		if seen[d.Name] {
			return nil, 0, fmt.Errorf("%w: field %q", errs.ErrDuplicateName, d.Name)
		}
		seen[d.Name] = true

		size, ok := c.Types.Size(d.Type)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %d", errs.ErrUnknownType, d.Type)
		}
		fields = append(fields, Field{Name: d.Name, Type: d.Type, Offset: uint32(offset), Size: size})
		offset += uint64(size)
		if offset > 0xFFFFFFFF {
			return nil, 0, fmt.Errorf("%w: record exceeds maximum size", errs.ErrSizeOverflow)
		}
	}
	return fields, uint32(offset), nil
}

// DeleteTable removes table name, cascading removal of every relation
// that references it as source or destination.
func (c *Catalog) DeleteTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.Snapshot()
	table, ok := cur.tables[name]
	if !ok {
		return fmt.Errorf("%w: table %q", errs.ErrUnknownTable, name)
	}

	next := cur.clone()
	delete(next.tables, name)
	delete(next.tablesByID, table.ID)
	next.tableOrder = removeString(next.tableOrder, name)

	var keptOrder []uuid.UUID
	for _, id := range next.relOrder {
		r := next.relations[id]
		if r.SourceTable == name || r.DestTable == name {
			delete(next.relations, id)
			continue
		}
		keptOrder = append(keptOrder, id)
	}
	next.relOrder = keptOrder

	c.cell.Store(next)
	return nil
}

// AddField appends a field to table, legal only while the table holds no
// live records (spec §4.2 "records prohibit in-place migration").
func (c *Catalog) AddField(tableName string, def FieldDef) error {
	if err := validateName(def.Name); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.Snapshot()
	table, ok := cur.tables[tableName]
	if !ok {
		return fmt.Errorf("%w: table %q", errs.ErrUnknownTable, tableName)
	}
	if _, exists := table.FieldByName(def.Name); exists {
		return fmt.Errorf("%w: field %q", errs.ErrDuplicateName, def.Name)
	}
	if table.Cell.Load().LiveCount() > 0 {
		return fmt.Errorf("%w: table %q", errs.ErrTableNotEmpty, tableName)
	}

	size, ok := c.Types.Size(def.Type)
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrUnknownType, def.Type)
	}

	newField := Field{Name: def.Name, Type: def.Type, Offset: table.RecordSize, Size: size}
	newRecordSize := uint64(table.RecordSize) + uint64(size)
	if newRecordSize > 0xFFFFFFFF {
		return fmt.Errorf("%w: record exceeds maximum size", errs.ErrSizeOverflow)
	}

	updated := table.withFields(append(append([]Field(nil), table.Fields...), newField), uint32(newRecordSize))
	updated.Cell.Store(storage.NewEmptyBuffer(uint32(newRecordSize)))

	next := cur.clone()
	next.tables[tableName] = updated
	next.tablesByID[updated.ID] = updated
	c.cell.Store(next)
	return nil
}

// RemoveField drops a field from table, legal only while the table is
// empty and no relation references the field.
func (c *Catalog) RemoveField(tableName, fieldName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.Snapshot()
	table, ok := cur.tables[tableName]
	if !ok {
		return fmt.Errorf("%w: table %q", errs.ErrUnknownTable, tableName)
	}
	if _, exists := table.FieldByName(fieldName); !exists {
		return fmt.Errorf("%w: field %q", errs.ErrUnknownField, fieldName)
	}
	if table.Cell.Load().LiveCount() > 0 {
		return fmt.Errorf("%w: table %q", errs.ErrTableNotEmpty, tableName)
	}
	for _, r := range cur.relations {
		if (r.SourceTable == tableName && r.SourceField == fieldName) ||
			(r.DestTable == tableName && r.DestField == fieldName) {
			return fmt.Errorf("%w: field %q referenced by relation %s", errs.ErrFieldReferencedByRel, fieldName, r.ID)
		}
	}

	remaining := make([]Field, 0, len(table.Fields)-1)
	var offset uint32
	for _, f := range table.Fields {
		if f.Name == fieldName {
			continue
		}
		remaining = append(remaining, Field{Name: f.Name, Type: f.Type, Offset: offset, Size: f.Size})
		offset += f.Size
	}

	updated := table.withFields(remaining, offset)
	updated.Cell.Store(storage.NewEmptyBuffer(offset))

	next := cur.clone()
	next.tables[tableName] = updated
	next.tablesByID[updated.ID] = updated
	c.cell.Store(next)
	return nil
}

// CreateRelation registers a relation from srcTable.srcField to
// dstTable.dstField, requiring both fields to exist with identical
// types and rejecting an exact duplicate of an existing relation.
func (c *Catalog) CreateRelation(srcTable, srcField, dstTable, dstField string) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.Snapshot()

	src, ok := cur.tables[srcTable]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: table %q", errs.ErrUnknownTable, srcTable)
	}
	dst, ok := cur.tables[dstTable]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: table %q", errs.ErrUnknownTable, dstTable)
	}
	sf, ok := src.FieldByName(srcField)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: field %q.%q", errs.ErrUnknownField, srcTable, srcField)
	}
	df, ok := dst.FieldByName(dstField)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: field %q.%q", errs.ErrUnknownField, dstTable, dstField)
	}
	if sf.Type != df.Type {
		return uuid.Nil, errs.ErrRelationTypeMismatch
	}

	candidate := Relation{SourceTable: srcTable, SourceField: srcField, DestTable: dstTable, DestField: dstField, Policy: RestrictPolicy}
	for _, r := range cur.relations {
		if r.key() == candidate.key() {
			return uuid.Nil, errs.ErrDuplicateRelation
		}
	}

	candidate.ID = uuid.New()
	next := cur.clone()
	next.relations[candidate.ID] = &candidate
	next.relOrder = append(next.relOrder, candidate.ID)
	c.cell.Store(next)

	return candidate.ID, nil
}

// DeleteRelation removes the relation identified by id.
func (c *Catalog) DeleteRelation(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.Snapshot()
	if _, ok := cur.relations[id]; !ok {
		return fmt.Errorf("%w: relation %s", errs.ErrUnknownRelation, id)
	}

	next := cur.clone()
	delete(next.relations, id)
	var order []uuid.UUID
	for _, rid := range next.relOrder {
		if rid != id {
			order = append(order, rid)
		}
	}
	next.relOrder = order
	c.cell.Store(next)
	return nil
}

func removeString(ss []string, target string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
