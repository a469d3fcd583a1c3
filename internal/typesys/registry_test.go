package typesys

import (
	"errors"
	"testing"

	"github.com/rodd-oss/rodengine/internal/errs"
)

func TestPrimitiveSizes(t *testing.T) {
	cases := map[TypeId]uint32{
		I8: 1, I16: 2, I32: 4, I64: 8,
		U8: 1, U16: 2, U32: 4, U64: 8,
		F32: 4, F64: 8, Bool: 1,
	}
	r := NewRegistry()
	for id, want := range cases {
		got, ok := r.Size(id)
		if !ok || got != want {
			t.Errorf("Size(%v) = %v, %v; want %v, true", id, got, ok, want)
		}
	}
}

func TestRegisterComposite(t *testing.T) {
	r := NewRegistry()

	vec3, err := r.RegisterComposite("Vec3", []TypeId{F32, F32, F32})
	if err != nil {
		t.Fatalf("RegisterComposite: %v", err)
	}

	size, ok := r.Size(vec3)
	if !ok || size != 12 {
		t.Fatalf("Size(Vec3) = %v, %v; want 12, true", size, ok)
	}

	align, ok := r.Alignment(vec3)
	if !ok || align != 4 {
		t.Fatalf("Alignment(Vec3) = %v, %v; want 4, true", align, ok)
	}

	byName, ok := r.ByName("Vec3")
	if !ok || byName != vec3 {
		t.Fatalf("ByName(Vec3) = %v, %v; want %v, true", byName, ok, vec3)
	}
}

func TestRegisterCompositeOfComposite(t *testing.T) {
	r := NewRegistry()
	vec3, err := r.RegisterComposite("Vec3", []TypeId{F32, F32, F32})
	if err != nil {
		t.Fatal(err)
	}
	transform, err := r.RegisterComposite("Transform", []TypeId{vec3, vec3})
	if err != nil {
		t.Fatal(err)
	}
	size, _ := r.Size(transform)
	if size != 24 {
		t.Fatalf("Size(Transform) = %d, want 24", size)
	}
}

func TestRegisterCompositeDuplicateName(t *testing.T) {
	r := NewRegistry()
	if _, err := r.RegisterComposite("Vec3", []TypeId{F32, F32, F32}); err != nil {
		t.Fatal(err)
	}
	_, err := r.RegisterComposite("Vec3", []TypeId{I32})
	if !errors.Is(err, errs.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestRegisterCompositeUnknownComponent(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterComposite("Bogus", []TypeId{TypeId(9999)})
	if !errors.Is(err, errs.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestRegisterCompositeZeroComponents(t *testing.T) {
	r := NewRegistry()
	id, err := r.RegisterComposite("Empty", nil)
	if err != nil {
		t.Fatal(err)
	}
	size, ok := r.Size(id)
	if !ok || size != 0 {
		t.Fatalf("Size(Empty) = %v, %v; want 0, true", size, ok)
	}
}

func TestRegistryIsolatedAcrossInstances(t *testing.T) {
	r1 := NewRegistry()
	r2 := NewRegistry()
	if _, err := r1.RegisterComposite("Vec3", []TypeId{F32, F32, F32}); err != nil {
		t.Fatal(err)
	}
	if _, ok := r2.ByName("Vec3"); ok {
		t.Fatal("expected registries to be isolated per instance")
	}
}
