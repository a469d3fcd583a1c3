package integrity

import (
	"errors"
	"testing"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/storage"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

func setup(t *testing.T) (*schema.Catalog, *Enforcer) {
	t.Helper()
	cat := schema.NewCatalog(typesys.NewRegistry())
	if _, err := cat.CreateTable("users", []schema.FieldDef{{Name: "id", Type: typesys.U64}}); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.CreateTable("posts", []schema.FieldDef{{Name: "author_id", Type: typesys.U64}}); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.CreateRelation("posts", "author_id", "users", "id"); err != nil {
		t.Fatal(err)
	}
	return cat, NewEnforcer(cat)
}

func insertU64(t *testing.T, table *schema.Table, v uint64) int {
	t.Helper()
	reg := typesys.NewRegistry()
	rec := make([]byte, table.RecordSize)
	if err := storage.EncodeValue(reg, typesys.U64, rec, v); err != nil {
		t.Fatal(err)
	}
	mut := storage.BeginMutation(table.Cell.Load())
	idx, err := mut.Insert(rec)
	if err != nil {
		t.Fatal(err)
	}
	table.Cell.Store(mut.Publish())
	return idx
}

func lookupFor(cat *schema.Catalog) ViewLookup {
	return func(name string) (TableView, error) {
		table, ok := cat.Table(name)
		if !ok {
			return nil, errs.ErrUnknownTable
		}
		return table.Cell.Load(), nil
	}
}

func TestCheckDeleteBlocksWhenReferenced(t *testing.T) {
	cat, enf := setup(t)
	users, _ := cat.Table("users")
	posts, _ := cat.Table("posts")

	userIdx := insertU64(t, users, 42)
	insertU64(t, posts, 42)

	err := enf.CheckDelete(lookupFor(cat), "users", userIdx)
	var rv *errs.RelationViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected RelationViolationError, got %v", err)
	}
}

func TestCheckDeleteAllowsWhenUnreferenced(t *testing.T) {
	cat, enf := setup(t)
	users, _ := cat.Table("users")
	posts, _ := cat.Table("posts")

	userIdx := insertU64(t, users, 42)
	insertU64(t, posts, 7) // references a different user id

	if err := enf.CheckDelete(lookupFor(cat), "users", userIdx); err != nil {
		t.Fatalf("expected no violation, got %v", err)
	}
}

func TestCheckDeleteNoOpWithoutRelations(t *testing.T) {
	cat := schema.NewCatalog(typesys.NewRegistry())
	cat.CreateTable("standalone", []schema.FieldDef{{Name: "id", Type: typesys.U64}})
	enf := NewEnforcer(cat)
	table, _ := cat.Table("standalone")
	idx := insertU64(t, table, 1)

	if err := enf.CheckDelete(lookupFor(cat), "standalone", idx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
