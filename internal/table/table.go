// Package table holds the columnar form of an index: one slice per attribute,
// all of the same length, with row i describing the i-th indexed path.
//
// A Table is built once from walker records and is read-only afterwards, so
// it may be shared by concurrent readers.
package table

import (
	"fmt"
	"time"

	"github.com/TFMV/folderindex/internal/walk"
)

// ColumnNames lists the table columns in storage order.
var ColumnNames = []string{
	"path", "parent", "name", "stem", "size",
	"extension", "created", "modified", "is_folder", "hash",
}

// Column is a nullable column. Valid[i] reports whether Values[i] is present;
// an absent slot holds the zero value.
type Column[T any] struct {
	Values []T
	Valid  []bool
}

func newColumn[T any](n int) Column[T] {
	return Column[T]{
		Values: make([]T, 0, n),
		Valid:  make([]bool, 0, n),
	}
}

// Append adds one slot.
func (c *Column[T]) Append(v T, ok bool) {
	if !ok {
		var zero T
		v = zero
	}
	c.Values = append(c.Values, v)
	c.Valid = append(c.Valid, ok)
}

// AppendPtr adds *p, or an absent slot when p is nil.
func (c *Column[T]) AppendPtr(p *T) {
	if p == nil {
		var zero T
		c.Append(zero, false)
		return
	}
	c.Append(*p, true)
}

// Len returns the number of slots.
func (c Column[T]) Len() int {
	return len(c.Values)
}

// At returns slot i and whether it is present.
func (c Column[T]) At(i int) (T, bool) {
	return c.Values[i], c.Valid[i]
}

// Ptr returns a pointer to a copy of slot i, or nil when it is absent.
func (c Column[T]) Ptr(i int) *T {
	if !c.Valid[i] {
		return nil
	}
	v := c.Values[i]
	return &v
}

// Table is the columnar index. Created and Modified hold Unix seconds.
type Table struct {
	Path      []string
	Parent    []string
	Name      []string
	Stem      Column[string]
	Size      Column[int64]
	Extension Column[string]
	Created   Column[int64]
	Modified  Column[int64]
	IsFolder  []bool
	Hash      Column[string]
}

func newTable(n int) *Table {
	return &Table{
		Path:      make([]string, 0, n),
		Parent:    make([]string, 0, n),
		Name:      make([]string, 0, n),
		Stem:      newColumn[string](n),
		Size:      newColumn[int64](n),
		Extension: newColumn[string](n),
		Created:   newColumn[int64](n),
		Modified:  newColumn[int64](n),
		IsFolder:  make([]bool, 0, n),
		Hash:      newColumn[string](n),
	}
}

// Build projects records into a Table, preserving their order.
func Build(records []walk.PathRecord) *Table {
	t := newTable(len(records))
	for i := range records {
		t.appendRecord(&records[i])
	}
	return t
}

func (t *Table) appendRecord(rec *walk.PathRecord) {
	t.Path = append(t.Path, rec.Path)
	t.Parent = append(t.Parent, rec.Parent)
	t.Name = append(t.Name, rec.Name)
	t.Stem.AppendPtr(rec.Stem)
	t.Size.AppendPtr(rec.Size)
	t.Extension.AppendPtr(rec.Extension)
	t.Created.AppendPtr(unixSeconds(rec.Created))
	t.Modified.AppendPtr(unixSeconds(rec.Modified))
	t.IsFolder = append(t.IsFolder, rec.IsFolder)
	t.Hash.AppendPtr(rec.Hash)
}

func unixSeconds(ts *time.Time) *int64 {
	if ts == nil {
		return nil
	}
	sec := ts.Unix()
	return &sec
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Path)
}

// Validate reports an error if the columns are not all of the same length.
func (t *Table) Validate() error {
	n := len(t.Path)
	columns := []struct {
		name  string
		slots int
	}{
		{"parent", len(t.Parent)},
		{"name", len(t.Name)},
		{"stem", t.Stem.Len()},
		{"stem validity", len(t.Stem.Valid)},
		{"size", t.Size.Len()},
		{"size validity", len(t.Size.Valid)},
		{"extension", t.Extension.Len()},
		{"extension validity", len(t.Extension.Valid)},
		{"created", t.Created.Len()},
		{"created validity", len(t.Created.Valid)},
		{"modified", t.Modified.Len()},
		{"modified validity", len(t.Modified.Valid)},
		{"is_folder", len(t.IsFolder)},
		{"hash", t.Hash.Len()},
		{"hash validity", len(t.Hash.Valid)},
	}
	for _, c := range columns {
		if c.slots != n {
			return fmt.Errorf("column %s has %d rows, want %d", c.name, c.slots, n)
		}
	}
	return nil
}

// Record rebuilds row i as a PathRecord. Timestamps carry second precision.
func (t *Table) Record(i int) walk.PathRecord {
	return walk.PathRecord{
		Path:      t.Path[i],
		Parent:    t.Parent[i],
		Name:      t.Name[i],
		Stem:      t.Stem.Ptr(i),
		Size:      t.Size.Ptr(i),
		Extension: t.Extension.Ptr(i),
		Created:   fromUnix(t.Created, i),
		Modified:  fromUnix(t.Modified, i),
		IsFolder:  t.IsFolder[i],
		Hash:      t.Hash.Ptr(i),
	}
}

func fromUnix(c Column[int64], i int) *time.Time {
	sec, ok := c.At(i)
	if !ok {
		return nil
	}
	ts := time.Unix(sec, 0)
	return &ts
}

// HasMetadata reports whether any row carries a size or a modification time.
func (t *Table) HasMetadata() bool {
	for i := 0; i < t.Len(); i++ {
		if t.Size.Valid[i] || t.Modified.Valid[i] {
			return true
		}
	}
	return false
}
