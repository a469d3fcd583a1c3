package typesys

// TypeId identifies a primitive or composite type within a Registry.
// Primitive TypeIds are stable well-known constants; composite TypeIds
// are assigned sequentially starting at firstCompositeID as they are
// registered.
type TypeId uint32

// Kind distinguishes a primitive TypeId from a user-defined composite.
type Kind int

const (
	KindPrimitive Kind = iota
	KindComposite
)

// Primitive TypeIds. Values are stable across process restarts and across
// the wire (the schema JSON encodes these by name, not by numeric ID —
// see internal/schema/json.go — so renumbering here would not break
// on-disk compatibility, but the values are fixed anyway for clarity).
const (
	I8 TypeId = iota + 1
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Bool

	firstCompositeID = 1000
)

// primitiveNames maps every primitive TypeId to its canonical name, used
// by the schema JSON codec and by error messages.
var primitiveNames = map[TypeId]string{
	I8:   "i8",
	I16:  "i16",
	I32:  "i32",
	I64:  "i64",
	U8:   "u8",
	U16:  "u16",
	U32:  "u32",
	U64:  "u64",
	F32:  "f32",
	F64:  "f64",
	Bool: "bool",
}

var namesToPrimitives = func() map[string]TypeId {
	m := make(map[string]TypeId, len(primitiveNames))
	for id, name := range primitiveNames {
		m[name] = id
	}
	return m
}()

// primitiveSizes maps every primitive TypeId to its size in bytes.
var primitiveSizes = map[TypeId]uint32{
	I8:   1,
	I16:  2,
	I32:  4,
	I64:  8,
	U8:   1,
	U16:  2,
	U32:  4,
	U64:  8,
	F32:  4,
	F64:  8,
	Bool: 1,
}

// IsPrimitive reports whether id names one of the built-in primitive
// types.
func IsPrimitive(id TypeId) bool {
	_, ok := primitiveSizes[id]
	return ok
}

// PrimitiveByName resolves a primitive's canonical name (e.g. "u64",
// "bool") to its TypeId. ok is false for unknown names or composite
// names (composites are resolved through a Registry instead).
func PrimitiveByName(name string) (id TypeId, ok bool) {
	id, ok = namesToPrimitives[name]
	return
}

// Name returns the primitive's canonical lowercase name. Panics if id is
// not a registered primitive; callers that might hold a composite ID
// should read the Name of a Registry's Descriptor instead.
func (id TypeId) Name() string {
	name, ok := primitiveNames[id]
	if !ok {
		panic("typesys: Name called on non-primitive TypeId")
	}
	return name
}

// Descriptor describes a single registered type, primitive or composite.
type Descriptor struct {
	Name       string
	Kind       Kind
	ID         TypeId
	Size       uint32
	Alignment  uint32
	Components []TypeId // non-empty only for KindComposite
}
