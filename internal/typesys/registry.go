package typesys

import (
	"fmt"
	"sync"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/swapcell"
)

// snapshot is the immutable registry state published through the swap
// cell. It is never mutated after construction; register_composite builds
// a new snapshot from a copy of the previous one's maps.
type snapshot struct {
	byID   map[TypeId]Descriptor
	byName map[string]TypeId
	nextID TypeId
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byID:   make(map[TypeId]Descriptor),
		byName: make(map[string]TypeId),
		nextID: firstCompositeID,
	}
}

// clone returns a shallow copy of s with fresh top-level maps, suitable
// as the basis for a new registry version. Descriptor values themselves
// are immutable once stored, so copying the map is sufficient — no
// Descriptor is ever mutated in place.
func (s *snapshot) clone() *snapshot {
	out := &snapshot{
		byID:   make(map[TypeId]Descriptor, len(s.byID)+1),
		byName: make(map[string]TypeId, len(s.byName)+1),
		nextID: s.nextID,
	}
	for k, v := range s.byID {
		out.byID[k] = v
	}
	for k, v := range s.byName {
		out.byName[k] = v
	}
	return out
}

// Registry is the type registry for one rodengine instance. Reads take a
// lock-free Snapshot(); writes are serialized by mu and publish a new
// immutable snapshot through cell on success.
type Registry struct {
	cell swapcell.Cell[snapshot]
	mu   sync.Mutex // serializes register_composite calls
}

// NewRegistry returns a Registry pre-populated with nothing but the
// built-in primitives (which are not entries in the snapshot maps at all
// — they're compile-time constants resolved by Size/Alignment/Name
// directly, so an empty registry already answers queries about them).
func NewRegistry() *Registry {
	r := &Registry{}
	r.cell.Store(emptySnapshot())
	return r
}

// Snapshot returns the current immutable registry state. Safe to call
// concurrently with any number of readers and at most one concurrent
// register_composite.
func (r *Registry) Snapshot() *snapshot {
	return r.cell.Load()
}

// Size returns the byte size of id, primitive or composite. ok is false
// if id is not known to this registry (or to the primitive set).
func (r *Registry) Size(id TypeId) (size uint32, ok bool) {
	if sz, isPrim := primitiveSizes[id]; isPrim {
		return sz, true
	}
	d, found := r.Snapshot().byID[id]
	if !found {
		return 0, false
	}
	return d.Size, true
}

// Alignment returns the informational alignment of id. Composite
// alignment is the max of its components' alignments; primitive
// alignment equals its size (the conventional natural alignment), though
// the storage engine never uses this value to insert padding.
func (r *Registry) Alignment(id TypeId) (alignment uint32, ok bool) {
	if sz, isPrim := primitiveSizes[id]; isPrim {
		return sz, true
	}
	d, found := r.Snapshot().byID[id]
	if !found {
		return 0, false
	}
	return d.Alignment, true
}

// Descriptor returns the full descriptor for id. For primitives this is
// synthesized on demand (primitives are not stored in the snapshot).
func (r *Registry) Descriptor(id TypeId) (Descriptor, bool) {
	if IsPrimitive(id) {
		sz := primitiveSizes[id]
		return Descriptor{Name: id.Name(), Kind: KindPrimitive, ID: id, Size: sz, Alignment: sz}, true
	}
	d, ok := r.Snapshot().byID[id]
	return d, ok
}

// ByName resolves any registered name — primitive or composite — to its
// TypeId.
func (r *Registry) ByName(name string) (TypeId, bool) {
	if id, ok := namesToPrimitives[name]; ok {
		return id, true
	}
	id, ok := r.Snapshot().byName[name]
	return id, ok
}

// Composites returns every registered composite descriptor in ascending
// TypeId order (equivalently, registration order), for schema
// serialization.
func (r *Registry) Composites() []Descriptor {
	s := r.Snapshot()
	out := make([]Descriptor, 0, len(s.byID))
	for id := TypeId(firstCompositeID); id < s.nextID; id++ {
		if d, ok := s.byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// RegisterComposite registers a new composite type named name, built
// from components in order. Size is the sum of each component's size;
// Alignment is the max of each component's alignment. Returns
// errs.ErrDuplicateName if name is already registered (primitive or
// composite), errs.ErrUnknownType if any component is not known to this
// registry, errs.ErrSizeOverflow if the total size would overflow a
// uint32, and errs.ErrCyclicType if the component graph is not acyclic
// (see package doc for why this can only happen through a registry bug,
// never through normal use).
func (r *Registry) RegisterComposite(name string, components []TypeId) (TypeId, error) {
	if name == "" {
		return 0, errs.ErrInvalidName
	}
	if _, isPrim := namesToPrimitives[name]; isPrim {
		return 0, fmt.Errorf("%w: %q", errs.ErrDuplicateName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.Snapshot()
	if _, exists := cur.byName[name]; exists {
		return 0, fmt.Errorf("%w: %q", errs.ErrDuplicateName, name)
	}

	var size, alignment uint64
	for _, c := range components {
		csize, ok := r.sizeIn(cur, c)
		if !ok {
			return 0, fmt.Errorf("%w: component %d", errs.ErrUnknownType, c)
		}
		calign, _ := r.alignmentIn(cur, c)
		size += uint64(csize)
		if uint64(calign) > alignment {
			alignment = uint64(calign)
		}
		if size > 0xFFFFFFFF {
			return 0, fmt.Errorf("%w: composite %q exceeds maximum record size", errs.ErrSizeOverflow, name)
		}
	}
	if alignment == 0 {
		alignment = 1
	}

	id := cur.nextID
	desc := Descriptor{
		Name:       name,
		Kind:       KindComposite,
		ID:         id,
		Size:       uint32(size),
		Alignment:  uint32(alignment),
		Components: append([]TypeId(nil), components...),
	}

	if err := detectCycle(cur, desc); err != nil {
		return 0, err
	}

	next := cur.clone()
	next.byID[id] = desc
	next.byName[name] = id
	next.nextID = id + 1

	r.cell.Store(next)
	return id, nil
}

func (r *Registry) sizeIn(s *snapshot, id TypeId) (uint32, bool) {
	if sz, ok := primitiveSizes[id]; ok {
		return sz, true
	}
	d, ok := s.byID[id]
	if !ok {
		return 0, false
	}
	return d.Size, true
}

func (r *Registry) alignmentIn(s *snapshot, id TypeId) (uint32, bool) {
	if sz, ok := primitiveSizes[id]; ok {
		return sz, true
	}
	d, ok := s.byID[id]
	if !ok {
		return 0, false
	}
	return d.Alignment, true
}

// detectCycle walks desc's component graph via DFS against the already-
// registered types in s, looking for a path back to desc.ID. Because the
// registry is append-only and desc.ID has not yet been published into s,
// no existing descriptor can reference it — this always returns nil in
// practice, but it runs unconditionally so a future change to the
// registry's append-only guarantee would be caught here rather than
// producing an infinite-size composite.
func detectCycle(s *snapshot, desc Descriptor) error {
	visiting := map[TypeId]bool{desc.ID: true}
	var walk func(id TypeId) error
	walk = func(id TypeId) error {
		if IsPrimitive(id) {
			return nil
		}
		if visiting[id] {
			return fmt.Errorf("%w: type %d", errs.ErrCyclicType, id)
		}
		d, ok := s.byID[id]
		if !ok {
			return nil // unknown components are reported by the caller
		}
		visiting[id] = true
		defer delete(visiting, id)
		for _, c := range d.Components {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range desc.Components {
		if err := walk(c); err != nil {
			return err
		}
	}
	return nil
}
