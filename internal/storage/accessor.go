package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

// FieldSpec locates one field's bytes within a record. Storage never
// imports internal/schema — schema.Field is converted to a FieldSpec by
// its own package, keeping the dependency graph schema -> storage ->
// typesys acyclic.
type FieldSpec struct {
	Offset uint32
	Size   uint32
	Type   typesys.TypeId
}

// FieldValue is the dynamic value of one field: a Go scalar
// (int8/.../uint64/float32/float64/bool) for a primitive field, or
// []FieldValue — one element per component, in declaration order — for a
// composite field.
type FieldValue interface{}

// EncodeValue writes v's bytes into dst, which must be exactly as long
// as typ's size according to reg. v's dynamic type must match typ:
// a Go scalar for a primitive typ, or []FieldValue for a composite.
func EncodeValue(reg *typesys.Registry, typ typesys.TypeId, dst []byte, v FieldValue) error {
	size, ok := reg.Size(typ)
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrUnknownType, typ)
	}
	if uint32(len(dst)) != size {
		return &errs.OutOfBoundsError{Index: len(dst), Len: int(size)}
	}

	if typesys.IsPrimitive(typ) {
		return encodePrimitive(typ, dst, v)
	}

	desc, ok := reg.Descriptor(typ)
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrUnknownType, typ)
	}
	values, ok := v.([]FieldValue)
	if !ok || len(values) != len(desc.Components) {
		return &errs.TypeMismatchError{Expected: fmt.Sprintf("%d-component composite %q", len(desc.Components), desc.Name), Actual: fmt.Sprintf("%T", v)}
	}
	offset := uint32(0)
	for i, comp := range desc.Components {
		csize, _ := reg.Size(comp)
		if err := EncodeValue(reg, comp, dst[offset:offset+csize], values[i]); err != nil {
			return err
		}
		offset += csize
	}
	return nil
}

// DecodeValue reads a FieldValue out of src, which must be exactly as
// long as typ's size according to reg.
func DecodeValue(reg *typesys.Registry, typ typesys.TypeId, src []byte) (FieldValue, error) {
	size, ok := reg.Size(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownType, typ)
	}
	if uint32(len(src)) != size {
		return nil, &errs.OutOfBoundsError{Index: len(src), Len: int(size)}
	}

	if typesys.IsPrimitive(typ) {
		return decodePrimitive(typ, src)
	}

	desc, ok := reg.Descriptor(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownType, typ)
	}
	out := make([]FieldValue, len(desc.Components))
	offset := uint32(0)
	for i, comp := range desc.Components {
		csize, _ := reg.Size(comp)
		v, err := DecodeValue(reg, comp, src[offset:offset+csize])
		if err != nil {
			return nil, err
		}
		out[i] = v
		offset += csize
	}
	return out, nil
}

// encodePrimitive writes v into dst byte by byte through
// encoding/binary.LittleEndian, never through an unsafe.Pointer cast of dst
// itself — dst's address within a tight-packed (alignment-1) record is
// not guaranteed to satisfy the field type's natural alignment, and
// dereferencing a misaligned pointer is undefined behavior on some
// architectures. A byte-for-byte copy is correct regardless of offset.
func encodePrimitive(typ typesys.TypeId, dst []byte, v FieldValue) error {
	switch typ {
	case typesys.I8:
		x, err := asInt64(v)
		if err != nil {
			return err
		}
		dst[0] = byte(int8(x))
	case typesys.U8:
		x, err := asUint64(v)
		if err != nil {
			return err
		}
		dst[0] = byte(uint8(x))
	case typesys.Bool:
		b, ok := v.(bool)
		if !ok {
			return errs.ErrInvalidBool
		}
		if b {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case typesys.I16:
		x, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(dst, uint16(int16(x)))
	case typesys.U16:
		x, err := asUint64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(dst, uint16(x))
	case typesys.I32:
		x, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, uint32(int32(x)))
	case typesys.U32:
		x, err := asUint64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, uint32(x))
	case typesys.I64:
		x, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case typesys.U64:
		x, err := asUint64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, x)
	case typesys.F32:
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
	case typesys.F64:
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
	default:
		return fmt.Errorf("%w: %d", errs.ErrUnknownType, typ)
	}
	return nil
}

func decodePrimitive(typ typesys.TypeId, src []byte) (FieldValue, error) {
	switch typ {
	case typesys.I8:
		return int8(src[0]), nil
	case typesys.U8:
		return uint8(src[0]), nil
	case typesys.Bool:
		// Canonicalize: any non-zero byte decodes as true, matching the
		// spec's "boolean canonicalization" boundary case for a buffer
		// that was written by something other than EncodeValue.
		return src[0] != 0, nil
	case typesys.I16:
		return int16(binary.LittleEndian.Uint16(src)), nil
	case typesys.U16:
		return binary.LittleEndian.Uint16(src), nil
	case typesys.I32:
		return int32(binary.LittleEndian.Uint32(src)), nil
	case typesys.U32:
		return binary.LittleEndian.Uint32(src), nil
	case typesys.I64:
		return int64(binary.LittleEndian.Uint64(src)), nil
	case typesys.U64:
		return binary.LittleEndian.Uint64(src), nil
	case typesys.F32:
		return math.Float32frombits(binary.LittleEndian.Uint32(src)), nil
	case typesys.F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(src)), nil
	default:
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownType, typ)
	}
}

func asInt64(v FieldValue) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	default:
		return 0, &errs.TypeMismatchError{Expected: "signed integer", Actual: fmt.Sprintf("%T", v)}
	}
}

func asUint64(v FieldValue) (uint64, error) {
	switch x := v.(type) {
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	default:
		return 0, &errs.TypeMismatchError{Expected: "unsigned integer", Actual: fmt.Sprintf("%T", v)}
	}
}

func asFloat64(v FieldValue) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		return 0, &errs.TypeMismatchError{Expected: "float", Actual: fmt.Sprintf("%T", v)}
	}
}
