// Package integration holds cross-package end-to-end scenarios against
// the public facade, mirroring the teacher's practice of a
// test/integration directory reserved for scenarios that exercise more
// than one package's collaboration rather than a single package's unit
// behavior.
package integration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/rodd-oss/rodengine/internal/errs"
	rodb "github.com/rodd-oss/rodengine/internal/facade"
	"github.com/rodd-oss/rodengine/internal/recovery"
	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/snapshot"
	"github.com/rodd-oss/rodengine/internal/storage"
	"github.com/rodd-oss/rodengine/internal/txn"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

func newEngine(t *testing.T) *rodb.Engine {
	t.Helper()
	e := rodb.New()
	t.Cleanup(e.Close)
	return e
}

// Scenario 1: create table, insert, read.
func TestScenarioCreateInsertRead(t *testing.T) {
	e := newEngine(t)

	vec3, err := e.Types.RegisterComposite("Vec3", []typesys.TypeId{typesys.F32, typesys.F32, typesys.F32})
	if err != nil {
		t.Fatal(err)
	}

	table, err := e.CreateTable("players", []schema.FieldDef{
		{Name: "id", Type: typesys.U64},
		{Name: "pos", Type: vec3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if table.RecordSize != 20 {
		t.Fatalf("expected record size 20, got %d", table.RecordSize)
	}

	idx, err := e.Insert(context.Background(), rodb.Table("players"), []storage.FieldValue{
		uint64(7),
		[]storage.FieldValue{float32(1.0), float32(2.0), float32(3.0)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}

	values, err := e.Read(rodb.Table("players"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if values[0].(uint64) != 7 {
		t.Fatalf("expected id 7, got %v", values[0])
	}
	pos := values[1].([]storage.FieldValue)
	if pos[0].(float32) != 1.0 || pos[1].(float32) != 2.0 || pos[2].(float32) != 3.0 {
		t.Fatalf("expected pos (1,2,3), got %v", pos)
	}

	refreshed, _ := e.Catalog.Table("players")
	if refreshed.Cell.Load().Len() != 1 {
		t.Fatalf("expected buffer length 1 slot, got %d", refreshed.Cell.Load().Len())
	}
}

// Scenario 2: a RESTRICT relation blocks a delete, and the whole
// transaction (both tables touched) is left unchanged.
func TestScenarioRelationBlocksDelete(t *testing.T) {
	e := newEngine(t)
	if _, err := e.CreateTable("users", []schema.FieldDef{{Name: "id", Type: typesys.U64}}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateTable("posts", []schema.FieldDef{{Name: "author_id", Type: typesys.U64}}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateRelation("posts", "author_id", "users", "id"); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Insert(context.Background(), rodb.Table("users"), []storage.FieldValue{uint64(1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Insert(context.Background(), rodb.Table("posts"), []storage.FieldValue{uint64(1)}); err != nil {
		t.Fatal(err)
	}

	err := e.Delete(context.Background(), rodb.Table("users"), 0)
	var rv *errs.RelationViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected RelationViolationError, got %v", err)
	}
	if rv.ReferringIndex != 0 {
		t.Fatalf("expected referring index 0, got %d", rv.ReferringIndex)
	}

	users, _ := e.Catalog.Table("users")
	posts, _ := e.Catalog.Table("posts")
	if users.Cell.Load().LiveCount() != 1 || posts.Cell.Load().LiveCount() != 1 {
		t.Fatal("expected both tables unchanged after a blocked delete")
	}
}

// Scenario 3: a panicking procedure rolls back completely.
func TestScenarioRollbackOnPanic(t *testing.T) {
	e := newEngine(t)
	if _, err := e.CreateTable("users", []schema.FieldDef{{Name: "id", Type: typesys.U64}}); err != nil {
		t.Fatal(err)
	}

	id, err := e.RegisterProc("bad", func(tx *txn.Transaction) error {
		if _, err := tx.Insert("users", []storage.FieldValue{uint64(42)}); err != nil {
			return err
		}
		panic("boom")
	})
	if err != nil {
		t.Fatal(err)
	}

	err = e.InvokeProc(context.Background(), id)
	var panicErr *errs.PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", err)
	}

	users, _ := e.Catalog.Table("users")
	if users.Cell.Load().LiveCount() != 0 {
		t.Fatal("expected no committed records after a panicking procedure")
	}
	if _, err := e.Read(rodb.Table("users"), 0); err == nil {
		t.Fatal("expected reading index 0 to fail, no record was ever committed")
	}
}

// Scenario 4: snapshot round-trip across 3 tables, including an empty
// one and a self-referential relation.
func TestScenarioSnapshotRoundTrip(t *testing.T) {
	e := newEngine(t)
	if _, err := e.CreateTable("empty_table", []schema.FieldDef{{Name: "id", Type: typesys.U64}}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateTable("scores", []schema.FieldDef{{Name: "value", Type: typesys.I32}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := e.Insert(context.Background(), rodb.Table("scores"), []storage.FieldValue{int32(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.CreateTable("nodes", []schema.FieldDef{
		{Name: "id", Type: typesys.U64},
		{Name: "parent_id", Type: typesys.U64},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateRelation("nodes", "parent_id", "nodes", "id"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Insert(context.Background(), rodb.Table("nodes"), []storage.FieldValue{uint64(1), uint64(1)}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "roundtrip.snap")
	if _, err := snapshot.WriteFile(path, e.Catalog); err != nil {
		t.Fatal(err)
	}

	recovered, err := recovery.Load(path, typesys.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"empty_table", "scores", "nodes"} {
		orig, ok := e.Catalog.Table(name)
		if !ok {
			t.Fatalf("original missing table %q", name)
		}
		got, ok := recovered.Table(name)
		if !ok {
			t.Fatalf("recovered catalog missing table %q", name)
		}
		if got.RecordSize != orig.RecordSize {
			t.Fatalf("table %q: record size mismatch %d != %d", name, got.RecordSize, orig.RecordSize)
		}
		if got.Cell.Load().LiveCount() != orig.Cell.Load().LiveCount() {
			t.Fatalf("table %q: live count mismatch", name)
		}
		for i := 0; i < orig.Cell.Load().Len(); i++ {
			origRec, origErr := orig.Cell.Load().RecordBytes(i)
			gotRec, gotErr := got.Cell.Load().RecordBytes(i)
			if (origErr == nil) != (gotErr == nil) {
				t.Fatalf("table %q index %d: free-state mismatch after round trip", name, i)
			}
			if origErr == nil && string(origRec) != string(gotRec) {
				t.Fatalf("table %q index %d: record bytes mismatch after round trip", name, i)
			}
		}
	}

	if len(recovered.Relations()) != 1 {
		t.Fatalf("expected 1 relation after round trip, got %d", len(recovered.Relations()))
	}
}

// Scenario 5: concurrent readers never observe a torn write.
func TestScenarioConcurrentReaderConsistency(t *testing.T) {
	e := newEngine(t)
	if _, err := e.CreateTable("scores", []schema.FieldDef{{Name: "value", Type: typesys.I32}}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Insert(context.Background(), rodb.Table("scores"), []storage.FieldValue{int32(100)}); err != nil {
		t.Fatal(err)
	}

	var g errgroup.Group

	g.Go(func() error {
		toggle := int32(200)
		for i := 0; i < 1000; i++ {
			if err := e.Update(context.Background(), rodb.Table("scores"), 0, []storage.FieldValue{toggle}); err != nil {
				return err
			}
			if toggle == 200 {
				toggle = 100
			} else {
				toggle = 200
			}
		}
		return nil
	})

	const readers = 8
	const readsPerReader = 10000
	for r := 0; r < readers; r++ {
		g.Go(func() error {
			for i := 0; i < readsPerReader; i++ {
				values, err := e.Read(rodb.Table("scores"), 0)
				if err != nil {
					return err
				}
				v := values[0].(int32)
				if v != 100 && v != 200 {
					return errors.New("observed a value other than 100 or 200")
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// Scenario 6: atomic swap ordering — a reader either sees a whole
// published buffer or none of it, never a mix of two publications.
func TestScenarioAtomicSwapOrdering(t *testing.T) {
	e := newEngine(t)
	if _, err := e.CreateTable("widgets", []schema.FieldDef{{Name: "tag", Type: typesys.U64}}); err != nil {
		t.Fatal(err)
	}
	table, _ := e.Catalog.Table("widgets")

	bufA := storage.NewEmptyBuffer(table.RecordSize)
	mutA := storage.BeginMutation(bufA)
	for i := 0; i < 5; i++ {
		rec := make([]byte, table.RecordSize)
		if err := storage.EncodeValue(e.Types, typesys.U64, rec, uint64(1)); err != nil {
			t.Fatal(err)
		}
		if _, err := mutA.Insert(rec); err != nil {
			t.Fatal(err)
		}
	}
	publishedA := mutA.Publish()
	table.Cell.Store(publishedA)

	bufB := storage.NewEmptyBuffer(table.RecordSize)
	mutB := storage.BeginMutation(bufB)
	for i := 0; i < 5; i++ {
		rec := make([]byte, table.RecordSize)
		if err := storage.EncodeValue(e.Types, typesys.U64, rec, uint64(2)); err != nil {
			t.Fatal(err)
		}
		if _, err := mutB.Insert(rec); err != nil {
			t.Fatal(err)
		}
	}
	publishedB := mutB.Publish()
	table.Cell.Store(publishedB)

	loaded := table.Cell.Load()
	if loaded != publishedB {
		t.Fatal("expected the latest published buffer to be observed wholesale")
	}
	for i := 0; i < loaded.Len(); i++ {
		rec, err := loaded.RecordBytes(i)
		if err != nil {
			t.Fatal(err)
		}
		v, err := storage.DecodeValue(e.Types, typesys.U64, rec)
		if err != nil {
			t.Fatal(err)
		}
		if v.(uint64) != 2 {
			t.Fatalf("expected every record to belong to buffer B (tag 2), got %v at index %d", v, i)
		}
	}
}
