package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/TFMV/folderindex/internal/hashing"
	"github.com/TFMV/folderindex/internal/table"
	"github.com/TFMV/folderindex/internal/walk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func file(parent, name, ext string, size int64, hash string) walk.PathRecord {
	rec := walk.PathRecord{
		Path:   filepath.Join(parent, name),
		Parent: parent,
		Name:   name,
		Stem:   ptr(name),
		Size:   ptr(size),
	}
	if ext != "" {
		rec.Extension = ptr(ext)
	}
	if hash != "" {
		rec.Hash = ptr(hash)
	}
	return rec
}

func folder(parent, name string) walk.PathRecord {
	return walk.PathRecord{Path: filepath.Join(parent, name), Parent: parent, Name: name, IsFolder: true}
}

// sampleTable has 6 files totalling 1000 bytes and 2 folders.
func sampleTable() *table.Table {
	return table.Build([]walk.PathRecord{
		file("/r", "big.csv", "csv", 400, "h1"),
		folder("/r", "docs"),
		file("/r", "notes.txt", "txt", 100, "h2"),
		folder("/r", "img"),
		file("/r/docs", "a.txt", "txt", 150, "h3"),
		file("/r/docs", "b.TXT", "TXT", 150, "h1"),
		file("/r/img", "logo.png", "png", 200, "h4"),
		file("/r/img", "Makefile", "", 0, ""),
	})
}

func column(res Result, c int) []string {
	out := make([]string, len(res.Rows))
	for i, row := range res.Rows {
		out[i] = row[c]
	}
	return out
}

func TestTotalSize(t *testing.T) {
	assert.EqualValues(t, 1000, TotalSize(sampleTable()))
	assert.Zero(t, TotalSize(table.Build([]walk.PathRecord{folder("/r", "x")})))
	assert.Zero(t, TotalSize(table.Build(nil)))
}

func TestTopNBySize(t *testing.T) {
	tbl := sampleTable()

	res := TopNBySize(tbl, 3)
	assert.Equal(t, TopNBySizeName, res.Name)
	assert.Equal(t, []string{"path", "name", "extension", "size"}, res.Header)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, []string{"/r/big.csv", "big.csv", "csv", "400"}, res.Rows[0])
	assert.Equal(t, "/r/img/logo.png", res.Rows[1][0])
	// a.txt and b.TXT tie at 150; table order is kept.
	assert.Equal(t, "/r/docs/a.txt", res.Rows[2][0])

	t.Run("NonIncreasing", func(t *testing.T) {
		all := TopNBySize(tbl, 100)
		assert.Len(t, all.Rows, 6, "folders have no size")
		sizes := column(all, 3)
		for i := 1; i < len(sizes); i++ {
			prev, _ := strconv.Atoi(sizes[i-1])
			cur, _ := strconv.Atoi(sizes[i])
			assert.GreaterOrEqual(t, prev, cur)
		}
	})

	t.Run("Zero", func(t *testing.T) {
		assert.Empty(t, TopNBySize(tbl, 0).Rows)
	})
}

func TestLargestRows_Filter(t *testing.T) {
	tbl := sampleTable()
	rows := LargestRows(tbl, 10, func(i int) bool { return !tbl.IsFolder[i] && tbl.Parent[i] == "/r/docs" })
	require.Len(t, rows, 2)
	assert.Equal(t, "/r/docs/a.txt", tbl.Path[rows[0]])
	assert.Equal(t, "/r/docs/b.TXT", tbl.Path[rows[1]])
}

func TestSizeByExtension(t *testing.T) {
	res := SizeByExtension(sampleTable())

	assert.Equal(t, []string{"extension", "size"}, res.Header)
	assert.Equal(t, [][]string{
		{"csv", "400"},
		{"txt", "250"},
		{"png", "200"},
		{"TXT", "150"},
		{"", "0"},
	}, res.Rows)
}

func TestCountByExtension(t *testing.T) {
	tbl := sampleTable()
	res := CountByExtension(tbl)

	assert.Equal(t, []string{"extension", "count"}, res.Header)
	// Folders and Makefile share the absent group.
	assert.Equal(t, [][]string{
		{"", "3"},
		{"txt", "2"},
		{"TXT", "1"},
		{"csv", "1"},
		{"png", "1"},
	}, res.Rows)

	var total int
	for _, n := range column(res, 1) {
		v, err := strconv.Atoi(n)
		require.NoError(t, err)
		total += v
	}
	assert.Equal(t, tbl.Len(), total, "groups partition every row")
}

func TestExtensionGroups_Fold(t *testing.T) {
	groups := ExtensionGroups(sampleTable(), true)
	SortByCount(groups)

	require.Len(t, groups, 4)
	assert.Equal(t, Group{Key: "", Size: 0, Count: 3}, groups[0])
	assert.Equal(t, Group{Key: "txt", Size: 400, Count: 3}, groups[1])
}

func TestSizeByParent(t *testing.T) {
	res := SizeByParent(sampleTable())

	assert.Equal(t, []string{"parent", "size"}, res.Header)
	assert.Equal(t, [][]string{
		{"/r", "500"},
		{"/r/docs", "300"},
		{"/r/img", "200"},
	}, res.Rows)
}

func TestSortBySize_TieBreaksByKey(t *testing.T) {
	groups := []Group{{Key: "b", Size: 5}, {Key: "c", Size: 9}, {Key: "a", Size: 5}}
	SortBySize(groups)
	assert.Equal(t, []string{"c", "a", "b"}, []string{groups[0].Key, groups[1].Key, groups[2].Key})
}

func TestDuplicates(t *testing.T) {
	res := Duplicates(sampleTable())

	assert.Equal(t, []string{"hash", "path", "size", "copies"}, res.Header)
	assert.Equal(t, [][]string{
		{"h1", "/r/big.csv", "400", "2"},
		{"h1", "/r/docs/b.TXT", "150", "2"},
	}, res.Rows)
}

func TestTreeHash(t *testing.T) {
	tbl := sampleTable()

	t.Run("RowOrder", func(t *testing.T) {
		want := hashing.HashMany([]string{"h1", "h2", "h3", "h1", "h4"})
		assert.Equal(t, want, TreeHash(tbl, hashing.SHA256, false))
	})

	t.Run("Stable", func(t *testing.T) {
		// Sorted by path: big.csv, docs/a.txt, docs/b.TXT, img/logo.png, notes.txt
		want := hashing.HashMany([]string{"h1", "h3", "h1", "h4", "h2"})
		assert.Equal(t, want, TreeHash(tbl, hashing.SHA256, true))
	})

	t.Run("DependsOnDiscoveryOrder", func(t *testing.T) {
		reordered := table.Build([]walk.PathRecord{
			file("/r", "b", "", 1, "h2"),
			file("/r", "a", "", 1, "h1"),
		})
		original := table.Build([]walk.PathRecord{
			file("/r", "a", "", 1, "h1"),
			file("/r", "b", "", 1, "h2"),
		})
		assert.NotEqual(t, TreeHash(original, hashing.SHA256, false), TreeHash(reordered, hashing.SHA256, false))
		assert.Equal(t, TreeHash(original, hashing.SHA256, true), TreeHash(reordered, hashing.SHA256, true))
	})

	t.Run("Algorithm", func(t *testing.T) {
		assert.NotEqual(t, TreeHash(tbl, hashing.SHA256, false), TreeHash(tbl, hashing.BLAKE3, false))
	})
}

func TestAnalyzer_Analyze(t *testing.T) {
	a := NewAnalyzer()
	a.SetTopN(2)
	a.EnableStableTreeHash()

	report, err := a.Analyze(context.Background(), sampleTable())
	require.NoError(t, err)

	assert.EqualValues(t, 1000, report.TotalSize)
	assert.Equal(t, TreeHash(sampleTable(), hashing.SHA256, true), report.TreeHash)

	names := make([]string, len(report.Results))
	for i, res := range report.Results {
		names[i] = res.Name
	}
	assert.Equal(t, []string{TopNBySizeName, SizeByExtensionName, CountByExtensionName, SizeByParentName, DuplicatesName}, names)

	top, ok := report.Result(TopNBySizeName)
	require.True(t, ok)
	assert.Len(t, top.Rows, 2)
}

func TestAnalyzer_ExtensionOptions(t *testing.T) {
	a := NewAnalyzer()
	a.EnableExtensionFolding()
	a.SetExtensionFilter(".TXT")

	report, err := a.Analyze(context.Background(), sampleTable())
	require.NoError(t, err)

	top, ok := report.Result(TopNBySizeName)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"/r/notes.txt", "/r/docs/a.txt", "/r/docs/b.TXT"}, column(top, 0))

	sizes, ok := report.Result(SizeByExtensionName)
	require.True(t, ok)
	assert.Contains(t, sizes.Rows, []string{"txt", "400"})
	assert.NotContains(t, sizes.Rows, []string{"TXT", "150"})
}

func TestAnalyzer_ExactFilter(t *testing.T) {
	a := NewAnalyzer()
	a.SetExtensionFilter("txt")

	report, err := a.Analyze(context.Background(), sampleTable())
	require.NoError(t, err)

	top, _ := report.Result(TopNBySizeName)
	assert.ElementsMatch(t, []string{"/r/notes.txt", "/r/docs/a.txt"}, column(top, 0))
}

func TestAnalyzer_WithoutHashes(t *testing.T) {
	tbl := table.Build([]walk.PathRecord{file("/r", "a.txt", "txt", 1, "")})

	report, err := NewAnalyzer().Analyze(context.Background(), tbl)
	require.NoError(t, err)

	assert.Empty(t, report.TreeHash)
	_, ok := report.Result(DuplicatesName)
	assert.False(t, ok)
	assert.Len(t, report.Results, 4)
}

func TestAnalyzer_NoMetadata(t *testing.T) {
	tbl := table.Build([]walk.PathRecord{{Path: "/r/a", Parent: "/r", Name: "a"}})

	_, err := NewAnalyzer().Analyze(context.Background(), tbl)
	assert.ErrorIs(t, err, ErrNoMetadata)
}

func TestAnalyzer_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer().Analyze(ctx, sampleTable())
	assert.ErrorIs(t, err, context.Canceled)
}

// The a.txt(100) + sub/b.txt(50) tree, indexed from disk.
func TestAnalyzer_IndexedTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), make([]byte, 100), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), make([]byte, 50), 0o644))

	records, err := walk.Walk(context.Background(), root, walk.Options{CollectMetadata: true})
	require.NoError(t, err)
	tbl := table.Build(records)

	assert.EqualValues(t, 150, TotalSize(tbl))

	parents := SizeByParent(tbl)
	assert.Equal(t, [][]string{
		{root, "100"},
		{filepath.Join(root, "sub"), "50"},
	}, parents.Rows)

	counts := CountByExtension(tbl)
	require.NotEmpty(t, counts.Rows)
	assert.Equal(t, []string{"txt", "2"}, counts.Rows[0])
}
