package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/snapshot"
	"github.com/rodd-oss/rodengine/internal/storage"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

func TestLoadWithNoSnapshotReturnsEmptyCatalog(t *testing.T) {
	reg := typesys.NewRegistry()
	cat, err := Load(filepath.Join(t.TempDir(), "missing.bin"), reg)
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Tables()) != 0 {
		t.Fatalf("expected empty catalog, got %d tables", len(cat.Tables()))
	}
}

func TestLoadRoundTripsTableData(t *testing.T) {
	reg := typesys.NewRegistry()
	cat := schema.NewCatalog(reg)
	if _, err := cat.CreateTable("players", []schema.FieldDef{
		{Name: "id", Type: typesys.U64},
		{Name: "hp", Type: typesys.I32},
	}); err != nil {
		t.Fatal(err)
	}

	table, _ := cat.Table("players")
	mut := storage.BeginMutation(table.Cell.Load())
	rec := make([]byte, table.RecordSize)
	if err := storage.EncodeValue(reg, typesys.U64, rec[0:8], uint64(42)); err != nil {
		t.Fatal(err)
	}
	if err := storage.EncodeValue(reg, typesys.I32, rec[8:12], int32(7)); err != nil {
		t.Fatal(err)
	}
	if _, err := mut.Insert(rec); err != nil {
		t.Fatal(err)
	}
	table.Cell.Store(mut.Publish())

	path := filepath.Join(t.TempDir(), "snap.bin")
	if _, err := snapshot.WriteFile(path, cat); err != nil {
		t.Fatal(err)
	}

	recovered, err := Load(path, reg)
	if err != nil {
		t.Fatal(err)
	}
	rtable, ok := recovered.Table("players")
	if !ok {
		t.Fatal("expected players table after recovery")
	}
	if rtable.Cell.Load().LiveCount() != 1 {
		t.Fatalf("expected 1 live record, got %d", rtable.Cell.Load().LiveCount())
	}
	got, err := rtable.Cell.Load().RecordBytes(0)
	if err != nil {
		t.Fatal(err)
	}
	v, err := storage.DecodeValue(reg, typesys.U64, got[0:8])
	if err != nil {
		t.Fatal(err)
	}
	if v.(uint64) != 42 {
		t.Fatalf("expected id 42, got %v", v)
	}
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	reg := typesys.NewRegistry()
	path := filepath.Join(t.TempDir(), "corrupt.bin")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, reg); err == nil {
		t.Fatal("expected an error for a corrupt snapshot file")
	}
}
