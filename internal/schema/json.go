package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

// SchemaVersion is the version header emitted by SerializeJSON and the
// only version DeserializeJSON accepts (spec §6.1).
const SchemaVersion = "1.0"

type wireType struct {
	Name       string   `json:"name"`
	Components []string `json:"components"`
}

type wireField struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Offset uint32 `json:"offset"`
}

type wireTable struct {
	Name       string      `json:"name"`
	Fields     []wireField `json:"fields"`
	RecordSize uint32      `json:"record_size"`
}

type wireRelation struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type wireCatalog struct {
	Version   string         `json:"version"`
	Types     []wireType     `json:"types"`
	Tables    []wireTable    `json:"tables"`
	Relations []wireRelation `json:"relations"`
}

// SerializeJSON encodes the catalog's current snapshot per spec §6.1:
// stable (insertion) key order, version header "1.0". Unknown fields are
// never emitted; DeserializeJSON ignores any it does not recognize.
func (c *Catalog) SerializeJSON() ([]byte, error) {
	s := c.Snapshot()

	w := wireCatalog{Version: SchemaVersion}
	for _, d := range c.Types.Composites() {
		comps := make([]string, len(d.Components))
		for i, cid := range d.Components {
			name, err := c.typeName(cid)
			if err != nil {
				return nil, err
			}
			comps[i] = name
		}
		w.Types = append(w.Types, wireType{Name: d.Name, Components: comps})
	}

	for _, name := range s.tableOrder {
		t := s.tables[name]
		wt := wireTable{Name: t.Name, RecordSize: t.RecordSize}
		for _, f := range t.Fields {
			typeName, err := c.typeName(f.Type)
			if err != nil {
				return nil, err
			}
			wt.Fields = append(wt.Fields, wireField{Name: f.Name, Type: typeName, Offset: f.Offset})
		}
		w.Tables = append(w.Tables, wt)
	}

	for _, id := range s.relOrder {
		r := s.relations[id]
		w.Relations = append(w.Relations, wireRelation{
			ID:          r.ID.String(),
			Source:      r.SourceTable + "." + r.SourceField,
			Destination: r.DestTable + "." + r.DestField,
		})
	}

	return json.MarshalIndent(w, "", "  ")
}

func (c *Catalog) typeName(id typesys.TypeId) (string, error) {
	if typesys.IsPrimitive(id) {
		return id.Name(), nil
	}
	d, ok := c.Types.Descriptor(id)
	if !ok {
		return "", fmt.Errorf("%w: %d", errs.ErrUnknownType, id)
	}
	return d.Name, nil
}

// DeserializeJSON replaces the catalog's content with data decoded from
// data, validating every foreign reference and the packing invariant
// (field offsets are the prefix sum of preceding field sizes, record_size
// equals the sum of all field sizes) before accepting it. On any
// validation failure the catalog is left untouched — it is built
// entirely against a fresh Catalog, with its own fresh type registry, and
// swapped in (catalog and registry together) only on full success. This
// makes repeated calls safe even when an earlier payload registered
// composite names that the new payload also declares.
func (c *Catalog) DeserializeJSON(data []byte) error {
	var w wireCatalog
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrMalformedPayload, err)
	}
	if w.Version != SchemaVersion {
		return fmt.Errorf("%w: got %q, want %q", errs.ErrUnsupportedVersion, w.Version, SchemaVersion)
	}

	fresh := NewCatalog(typesys.NewRegistry())
	if err := registerWireTypes(fresh.Types, w.Types); err != nil {
		return err
	}

	for _, wt := range w.Tables {
		defs := make([]FieldDef, len(wt.Fields))
		for i, wf := range wt.Fields {
			typ, ok := fresh.Types.ByName(wf.Type)
			if !ok {
				return fmt.Errorf("%w: %q", errs.ErrUnknownType, wf.Type)
			}
			defs[i] = FieldDef{Name: wf.Name, Type: typ}
		}
		table, err := fresh.CreateTable(wt.Name, defs)
		if err != nil {
			return err
		}
		if table.RecordSize != wt.RecordSize {
			return fmt.Errorf("%w: table %q declares record_size %d, computed %d", errs.ErrMalformedPayload, wt.Name, wt.RecordSize, table.RecordSize)
		}
		for i, wf := range wt.Fields {
			if table.Fields[i].Offset != wf.Offset {
				return fmt.Errorf("%w: table %q field %q declares offset %d, computed %d", errs.ErrMalformedPayload, wt.Name, wf.Name, wf.Offset, table.Fields[i].Offset)
			}
		}
	}

	for _, wr := range w.Relations {
		srcTable, srcField, ok := splitDotted(wr.Source)
		if !ok {
			return fmt.Errorf("%w: malformed source %q", errs.ErrMalformedPayload, wr.Source)
		}
		dstTable, dstField, ok := splitDotted(wr.Destination)
		if !ok {
			return fmt.Errorf("%w: malformed destination %q", errs.ErrMalformedPayload, wr.Destination)
		}
		id, err := fresh.CreateRelation(srcTable, srcField, dstTable, dstField)
		if err != nil {
			return err
		}
		if wr.ID != "" {
			if parsed, err := uuid.Parse(wr.ID); err == nil {
				renameRelationID(fresh, id, parsed)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Types = fresh.Types
	c.cell.Store(fresh.Snapshot())
	return nil
}

// renameRelationID substitutes the freshly minted relation id with the
// one recorded on the wire, preserving round-trip equality of explicit
// IDs across a serialize/deserialize cycle.
func renameRelationID(cat *Catalog, oldID, newID uuid.UUID) {
	s := cat.Snapshot()
	r, ok := s.relations[oldID]
	if !ok {
		return
	}
	next := s.clone()
	delete(next.relations, oldID)
	renamed := *r
	renamed.ID = newID
	next.relations[newID] = &renamed
	for i, id := range next.relOrder {
		if id == oldID {
			next.relOrder[i] = newID
		}
	}
	cat.cell.Store(next)
}

func splitDotted(s string) (table, field string, ok bool) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// registerWireTypes registers every composite in defs against reg,
// repeating passes so a composite may reference one declared later in
// the array as long as the overall graph is acyclic (spec types are
// unordered; the wire format does not mandate dependency order).
func registerWireTypes(reg *typesys.Registry, defs []wireType) error {
	pending := append([]wireType(nil), defs...)
	for len(pending) > 0 {
		progressed := false
		var next []wireType
		for _, d := range pending {
			components := make([]typesys.TypeId, 0, len(d.Components))
			resolvable := true
			for _, name := range d.Components {
				id, ok := reg.ByName(name)
				if !ok {
					resolvable = false
					break
				}
				components = append(components, id)
			}
			if !resolvable {
				next = append(next, d)
				continue
			}
			if _, err := reg.RegisterComposite(d.Name, components); err != nil {
				return err
			}
			progressed = true
		}
		if !progressed {
			return fmt.Errorf("%w: unresolved or cyclic type definitions", errs.ErrCyclicType)
		}
		pending = next
	}
	return nil
}
