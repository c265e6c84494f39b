// Package analysis runs aggregate queries over an index table: totals,
// largest files, groupings by extension or parent folder, duplicate content
// and a whole-tree content hash.
//
// Every query is a pure function of a read-only *table.Table, so any number
// of them may run at the same time over the same table.
package analysis

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/TFMV/folderindex/internal/hashing"
	"github.com/TFMV/folderindex/internal/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Result names written by Report.WriteAll, one file each.
const (
	TopNBySizeName       = "top_n_by_size"
	SizeByExtensionName  = "size_by_extension"
	CountByExtensionName = "count_by_extension"
	SizeByParentName     = "size_by_parent"
	DuplicatesName       = "duplicates"
)

// Result is the tabular output of one query.
type Result struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Group is one bucket of a group-by query. An empty Key is the group of rows
// whose key is absent.
type Group struct {
	Key   string
	Size  int64 // Sum of present sizes
	Count int64 // Number of rows
}

// TotalSize sums the size column over present values.
func TotalSize(t *table.Table) int64 {
	var total int64
	for i, ok := range t.Size.Valid {
		if ok {
			total += t.Size.Values[i]
		}
	}
	return total
}

// LargestRows returns the indices of at most n rows with a present size,
// largest first. Rows of equal size keep table order. keep may be nil.
func LargestRows(t *table.Table, n int, keep func(row int) bool) []int {
	if n <= 0 {
		return nil
	}
	rows := make([]int, 0, t.Len())
	for i, ok := range t.Size.Valid {
		if ok && (keep == nil || keep(i)) {
			rows = append(rows, i)
		}
	}
	slices.SortStableFunc(rows, func(a, b int) int {
		return cmp.Compare(t.Size.Values[b], t.Size.Values[a])
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// TopNBySize lists the n largest rows with columns path, name, extension, size.
func TopNBySize(t *table.Table, n int) Result {
	return topNResult(t, LargestRows(t, n, nil))
}

func topNResult(t *table.Table, rows []int) Result {
	res := Result{
		Name:   TopNBySizeName,
		Header: []string{"path", "name", "extension", "size"},
		Rows:   make([][]string, 0, len(rows)),
	}
	for _, i := range rows {
		ext, _ := t.Extension.At(i)
		res.Rows = append(res.Rows, []string{
			t.Path[i], t.Name[i], ext, strconv.FormatInt(t.Size.Values[i], 10),
		})
	}
	return res
}

// ExtensionGroups groups every row, folders included, by extension. With
// fold set, extensions that differ only in case or Unicode normalization
// share a group keyed by their folded form.
func ExtensionGroups(t *table.Table, fold bool) []Group {
	key := exactKey
	if fold {
		key = newFoldKey()
	}
	return groupBy(t, func(i int) string {
		ext, ok := t.Extension.At(i)
		if !ok {
			return ""
		}
		return key(ext)
	})
}

// ParentGroups groups every row by its immediate parent folder. Sizes are not
// rolled up into ancestors.
func ParentGroups(t *table.Table) []Group {
	return groupBy(t, func(i int) string { return t.Parent[i] })
}

func groupBy(t *table.Table, key func(row int) string) []Group {
	index := make(map[string]int)
	var groups []Group
	for i := 0; i < t.Len(); i++ {
		k := key(i)
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, Group{Key: k})
		}
		groups[g].Count++
		if size, ok := t.Size.At(i); ok {
			groups[g].Size += size
		}
	}
	return groups
}

// SortBySize orders groups by summed size, largest first, then by key.
func SortBySize(groups []Group) {
	slices.SortFunc(groups, func(a, b Group) int {
		return cmp.Or(cmp.Compare(b.Size, a.Size), strings.Compare(a.Key, b.Key))
	})
}

// SortByCount orders groups by row count, largest first, then by key.
func SortByCount(groups []Group) {
	slices.SortFunc(groups, func(a, b Group) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Key, b.Key))
	})
}

// SizeByExtension sums sizes per extension with columns extension, size.
func SizeByExtension(t *table.Table) Result {
	return sizeByExtension(t, false)
}

func sizeByExtension(t *table.Table, fold bool) Result {
	groups := ExtensionGroups(t, fold)
	SortBySize(groups)
	return groupResult(SizeByExtensionName, "extension", "size", groups, func(g Group) int64 { return g.Size })
}

// CountByExtension counts rows per extension with columns extension, count.
func CountByExtension(t *table.Table) Result {
	return countByExtension(t, false)
}

func countByExtension(t *table.Table, fold bool) Result {
	groups := ExtensionGroups(t, fold)
	SortByCount(groups)
	return groupResult(CountByExtensionName, "extension", "count", groups, func(g Group) int64 { return g.Count })
}

// SizeByParent sums sizes per parent folder with columns parent, size.
func SizeByParent(t *table.Table) Result {
	groups := ParentGroups(t)
	SortBySize(groups)
	return groupResult(SizeByParentName, "parent", "size", groups, func(g Group) int64 { return g.Size })
}

func groupResult(name, keyColumn, valueColumn string, groups []Group, value func(Group) int64) Result {
	res := Result{
		Name:   name,
		Header: []string{keyColumn, valueColumn},
		Rows:   make([][]string, 0, len(groups)),
	}
	for _, g := range groups {
		res.Rows = append(res.Rows, []string{g.Key, strconv.FormatInt(value(g), 10)})
	}
	return res
}

// Duplicates lists files whose content hash is shared with at least one
// other file, with columns hash, path, size, copies. Sets are ordered by the
// bytes they waste, then by hash; paths within a set are sorted.
func Duplicates(t *table.Table) Result {
	byHash := make(map[string][]int)
	for i, ok := range t.Hash.Valid {
		if ok && !t.IsFolder[i] {
			h := t.Hash.Values[i]
			byHash[h] = append(byHash[h], i)
		}
	}

	type dupSet struct {
		hash   string
		rows   []int
		wasted int64
	}
	var sets []dupSet
	for h, rows := range byHash {
		if len(rows) < 2 {
			continue
		}
		size, _ := t.Size.At(rows[0])
		slices.SortFunc(rows, func(a, b int) int { return strings.Compare(t.Path[a], t.Path[b]) })
		sets = append(sets, dupSet{hash: h, rows: rows, wasted: size * int64(len(rows)-1)})
	}
	slices.SortFunc(sets, func(a, b dupSet) int {
		return cmp.Or(cmp.Compare(b.wasted, a.wasted), strings.Compare(a.hash, b.hash))
	})

	res := Result{Name: DuplicatesName, Header: []string{"hash", "path", "size", "copies"}}
	for _, s := range sets {
		copies := strconv.Itoa(len(s.rows))
		for _, i := range s.rows {
			size := ""
			if v, ok := t.Size.At(i); ok {
				size = strconv.FormatInt(v, 10)
			}
			res.Rows = append(res.Rows, []string{s.hash, t.Path[i], size, copies})
		}
	}
	return res
}

// TreeHash folds the present content hashes into one digest.
//
// By default hashes are folded in table row order, so the result follows
// discovery order: the same tree indexed twice only yields the same digest
// if it was discovered in the same order. With stable set, rows are ordered
// by path first, which makes the digest a fingerprint of paths and contents.
func TreeHash(t *table.Table, alg hashing.Algorithm, stable bool) string {
	rows := make([]int, 0, t.Len())
	for i, ok := range t.Hash.Valid {
		if ok {
			rows = append(rows, i)
		}
	}
	if stable {
		slices.SortFunc(rows, func(a, b int) int { return strings.Compare(t.Path[a], t.Path[b]) })
	}

	hashes := make([]string, len(rows))
	for j, i := range rows {
		hashes[j] = t.Hash.Values[i]
	}
	return hashing.HashManyWith(alg, hashes)
}

// HasHashes reports whether any row carries a content hash.
func HasHashes(t *table.Table) bool {
	return slices.Contains(t.Hash.Valid, true)
}

func exactKey(ext string) string { return ext }

// newFoldKey returns a case-folding key function. Casers keep state, so each
// caller needs its own.
func newFoldKey() func(string) string {
	caser := cases.Fold()
	return func(ext string) string {
		return norm.NFC.String(caser.String(ext))
	}
}
