package table

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TFMV/folderindex/internal/walk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// sampleRecords mirrors root/{a.txt, sub/, sub/b.txt, sub/.env}.
func sampleRecords() []walk.PathRecord {
	modified := time.Date(2024, 3, 1, 12, 30, 15, 987654321, time.UTC)
	return []walk.PathRecord{
		{
			Path: "/root/a.txt", Parent: "/root", Name: "a.txt",
			Stem: ptr("a"), Extension: ptr("txt"), Size: ptr(int64(100)),
			Created: ptr(modified.Add(-time.Hour)), Modified: ptr(modified),
			Hash: ptr("aa11"),
		},
		{
			Path: "/root/sub", Parent: "/root", Name: "sub",
			Modified: ptr(modified), IsFolder: true,
		},
		{
			Path: "/root/sub/b.txt", Parent: "/root/sub", Name: "b.txt",
			Stem: ptr("b"), Extension: ptr("txt"), Size: ptr(int64(50)),
			Modified: ptr(modified), Hash: ptr("bb22"),
		},
		{
			Path: "/root/sub/.env", Parent: "/root/sub", Name: ".env",
			Stem: ptr(".env"), Size: ptr(int64(0)),
		},
	}
}

func TestColumn(t *testing.T) {
	var c Column[int64]
	c.Append(7, true)
	c.AppendPtr(nil)
	c.AppendPtr(ptr(int64(9)))
	c.Append(5, false)

	require.Equal(t, 4, c.Len())

	v, ok := c.At(0)
	assert.True(t, ok)
	assert.EqualValues(t, 7, v)

	v, ok = c.At(1)
	assert.False(t, ok)
	assert.Zero(t, v)

	assert.Nil(t, c.Ptr(3), "absent slots hold no value")
	require.NotNil(t, c.Ptr(2))
	assert.EqualValues(t, 9, *c.Ptr(2))
}

func TestBuild(t *testing.T) {
	records := sampleRecords()
	tbl := Build(records)

	require.NoError(t, tbl.Validate())
	require.Equal(t, len(records), tbl.Len())

	assert.Equal(t, []string{"/root/a.txt", "/root/sub", "/root/sub/b.txt", "/root/sub/.env"}, tbl.Path)
	assert.Equal(t, []bool{false, true, false, false}, tbl.IsFolder)
	assert.Equal(t, []bool{true, false, true, true}, tbl.Size.Valid)
	assert.Equal(t, []bool{true, false, true, false}, tbl.Extension.Valid)
	assert.Equal(t, []bool{true, false, false, false}, tbl.Created.Valid)

	created, ok := tbl.Created.At(0)
	require.True(t, ok)
	assert.Equal(t, records[0].Created.Unix(), created)

	assert.True(t, tbl.HasMetadata())
	assert.Len(t, ColumnNames, 10)
}

func TestBuild_Empty(t *testing.T) {
	tbl := Build(nil)
	assert.Zero(t, tbl.Len())
	assert.NoError(t, tbl.Validate())
	assert.False(t, tbl.HasMetadata())
}

func TestValidate_Misaligned(t *testing.T) {
	tbl := Build(sampleRecords())
	tbl.Hash.Values = tbl.Hash.Values[:2]

	err := tbl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash")
}

func TestRecord_TruncatesToSeconds(t *testing.T) {
	records := sampleRecords()
	tbl := Build(records)

	got := tbl.Record(0)
	require.NotNil(t, got.Modified)
	assert.True(t, got.Modified.Equal(records[0].Modified.Truncate(time.Second)))
	assert.Equal(t, *records[0].Hash, *got.Hash)
	assert.Equal(t, *records[0].Size, *got.Size)

	folder := tbl.Record(1)
	assert.True(t, folder.IsFolder)
	assert.Nil(t, folder.Size)
	assert.Nil(t, folder.Hash)
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Build(sampleRecords())

	path, err := SaveCache(want, dir)
	require.NoError(t, err)
	assert.Equal(t, CachePath(dir), path)
	assert.Equal(t, CacheFileName, filepath.Base(path))
	assert.True(t, CacheExists(path))

	got, err := LoadCache(path)
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	assert.Equal(t, want, got)
}

func TestSaveCache_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()

	// Saving twice replaces the cache in place.
	_, err := SaveCache(Build(sampleRecords()), dir)
	require.NoError(t, err)
	_, err = SaveCache(Build(sampleRecords()[:1]), dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CacheFileName, entries[0].Name())

	got, err := LoadCache(CachePath(dir))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestSaveCache_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	path, err := SaveCache(Build(sampleRecords()), dir)
	require.NoError(t, err)
	assert.True(t, CacheExists(path))
}

func TestSaveCache_RejectsMisalignedTable(t *testing.T) {
	tbl := Build(sampleRecords())
	tbl.Name = tbl.Name[:1]

	_, err := SaveCache(tbl, t.TempDir())
	assert.Error(t, err)
}

func TestLoadCache_Missing(t *testing.T) {
	path := CachePath(t.TempDir())
	assert.False(t, CacheExists(path))

	_, err := LoadCache(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrCacheCorrupt)
}

func TestLoadCache_Corrupt(t *testing.T) {
	path := CachePath(t.TempDir())
	require.NoError(t, os.WriteFile(path, []byte("definitely not a columnar file"), 0o644))

	_, err := LoadCache(path)
	assert.ErrorIs(t, err, ErrCacheCorrupt)
}

func TestCacheExists_Folder(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, CacheExists(dir))
}

func TestExportSQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "export", "index.db")
	tbl := Build(sampleRecords())

	require.NoError(t, ExportSQLite(ctx, tbl, dbPath))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM path_index`).Scan(&count))
	assert.Equal(t, tbl.Len(), count)

	var total int64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT SUM(size) FROM path_index`).Scan(&total))
	assert.EqualValues(t, 150, total)

	var nullSizes int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM path_index WHERE size IS NULL`).Scan(&nullSizes))
	assert.Equal(t, 1, nullSizes, "the folder row has no size")

	var folders int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM path_index WHERE is_folder = 1`).Scan(&folders))
	assert.Equal(t, 1, folders)

	// A second export replaces the first.
	require.NoError(t, ExportSQLite(ctx, Build(sampleRecords()[:2]), dbPath))
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM path_index`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestExportSQLite_EmptyPath(t *testing.T) {
	err := ExportSQLite(context.Background(), Build(sampleRecords()), " ")
	assert.Error(t, err)
}

func TestIsCacheFile(t *testing.T) {
	assert.True(t, IsCacheFile(CacheFileName))
	assert.True(t, IsCacheFile(".folder-index-123456.parquet"))
	assert.False(t, IsCacheFile("data.parquet"))
	assert.False(t, IsCacheFile(".folder-index-123456.tmp"))
}
