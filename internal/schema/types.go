package schema

import (
	"github.com/google/uuid"
	"github.com/rodd-oss/rodengine/internal/storage"
	"github.com/rodd-oss/rodengine/internal/swapcell"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

// Field is one column of a Table: a name, its type, and its byte offset
// within a record. Offsets are computed at schema-mutation time and never
// include padding (spec invariant 1 and 2).
type Field struct {
	Name   string
	Type   typesys.TypeId
	Offset uint32
	Size   uint32
}

// ToFieldSpec projects f into the storage package's decoupled FieldSpec,
// the only shape internal/storage knows about.
func (f Field) ToFieldSpec() storage.FieldSpec {
	return storage.FieldSpec{Offset: f.Offset, Size: f.Size, Type: f.Type}
}

// Table is catalog metadata for one table: its name, ordered fields, and
// the swap cell holding its published record buffer. Fields is replaced
// wholesale by AddField/RemoveField (only legal on an empty table); Cell
// is shared across those replacements so a concurrent reader that looked
// up the table before a field change still observes the correct buffer.
type Table struct {
	ID         uuid.UUID
	Name       string
	Fields     []Field
	RecordSize uint32
	Cell       *swapcell.Cell[storage.Buffer]
}

// FieldByName returns the field named name, if any.
func (t *Table) FieldByName(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// withFields returns a copy of t with Fields and RecordSize replaced,
// sharing the same Cell (and therefore the same buffer, empty at the
// time this is ever called — see Catalog.AddField/RemoveField).
func (t *Table) withFields(fields []Field, recordSize uint32) *Table {
	return &Table{
		ID:         t.ID,
		Name:       t.Name,
		Fields:     fields,
		RecordSize: recordSize,
		Cell:       t.Cell,
	}
}

// RelationPolicy names the referential-integrity policy enforced on
// delete. RESTRICT is the only policy spec §4.6 defines.
type RelationPolicy string

// RestrictPolicy rejects deleting a destination record still referenced
// by a source record.
const RestrictPolicy RelationPolicy = "restrict"

// Relation links a source table's field to a destination table's field:
// every non-sentinel value of the source field must equal some value of
// the destination field currently present in the destination table.
type Relation struct {
	ID              uuid.UUID
	SourceTable     string
	SourceField     string
	DestTable       string
	DestField       string
	Policy          RelationPolicy
}

// key returns the four-tuple used to detect a duplicate relation.
func (r Relation) key() [4]string {
	return [4]string{r.SourceTable, r.SourceField, r.DestTable, r.DestField}
}
