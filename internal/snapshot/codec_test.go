package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/storage"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

func buildTestCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	reg := typesys.NewRegistry()
	cat := schema.NewCatalog(reg)
	_, err := cat.CreateTable("users", []schema.FieldDef{
		{Name: "id", Type: typesys.U64},
		{Name: "hp", Type: typesys.I32},
	})
	require.NoError(t, err)
	_, err = cat.CreateTable("posts", []schema.FieldDef{
		{Name: "author_id", Type: typesys.U64},
	})
	require.NoError(t, err)
	_, err = cat.CreateRelation("posts", "author_id", "users", "id")
	require.NoError(t, err)

	table, _ := cat.Table("users")
	mut := storage.BeginMutation(table.Cell.Load())
	for i := uint64(1); i <= 3; i++ {
		rec := make([]byte, table.RecordSize)
		require.NoError(t, storage.EncodeValue(reg, typesys.U64, rec[0:8], i))
		require.NoError(t, storage.EncodeValue(reg, typesys.I32, rec[8:12], int32(100)))
		_, err := mut.Insert(rec)
		require.NoError(t, err)
	}
	table.Cell.Store(mut.Publish())

	// Delete the middle record so the free mask is exercised.
	table2, _ := cat.Table("users")
	mut2 := storage.BeginMutation(table2.Cell.Load())
	_, err = mut2.Delete(1)
	require.NoError(t, err)
	table2.Cell.Store(mut2.Publish())

	return cat
}

func TestWriteReadRoundTrip(t *testing.T) {
	cat := buildTestCatalog(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.bin")

	n, err := WriteFile(path, cat)
	require.NoError(t, err)
	assert.NotZero(t, n)

	snap, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, snap.FormatVersion)
	assert.NotEmpty(t, snap.SchemaJSON)
	assert.NotEmpty(t, snap.RelationsJSON)
	require.Len(t, snap.Tables, 2)

	var users *TableData
	for i := range snap.Tables {
		if snap.Tables[i].Name == "users" {
			users = &snap.Tables[i]
		}
	}
	require.NotNil(t, users, "expected users table in snapshot")
	assert.EqualValues(t, 3, users.SlotCount)
	assert.True(t, users.FreeMask[1], "expected slot 1 to be marked free")
	assert.False(t, users.FreeMask[0], "expected slot 0 to be live")
	assert.False(t, users.FreeMask[2], "expected slot 2 to be live")

	rebuilt := storage.NewBufferFromRaw(users.Data, users.RecordSize, users.FreeMask)
	assert.Equal(t, 2, rebuilt.LiveCount())
}

func TestReadRejectsBadMagic(t *testing.T) {
	cat := buildTestCatalog(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.bin")
	_, err := WriteFile(path, cat)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] = 'X'
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadFile(path)
	assert.ErrorIs(t, err, errs.ErrBadMagic)
}

func TestReadRejectsChecksumMismatch(t *testing.T) {
	cat := buildTestCatalog(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.bin")
	_, err := WriteFile(path, cat)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadFile(path)
	assert.ErrorIs(t, err, errs.ErrChecksumMismatch)
}

func TestReadRejectsTruncatedFile(t *testing.T) {
	cat := buildTestCatalog(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.bin")
	_, err := WriteFile(path, cat)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	truncated := data[:len(data)-10]
	require.NoError(t, os.WriteFile(path, truncated, 0o644))

	_, err = ReadFile(path)
	assert.True(t, err == errs.ErrTruncated || err == errs.ErrChecksumMismatch,
		"expected ErrTruncated or ErrChecksumMismatch, got %v", err)
}

func TestReadRejectsUnsupportedVersion(t *testing.T) {
	cat := buildTestCatalog(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.bin")
	_, err := WriteFile(path, cat)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Bump the version field; this invalidates the checksum too, but
	// version is checked first.
	data[8] = 99
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadFile(path)
	assert.Error(t, err)
}

func TestReadRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := ReadFile(path)
	assert.ErrorIs(t, err, errs.ErrTruncated)
}
