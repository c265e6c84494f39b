package table

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// CacheFileName is the name of the cache file inside the cache folder.
const CacheFileName = "folder-index.parquet"

// tempPrefix and tempSuffix bound the names SaveCache writes before renaming.
const (
	tempPrefix = ".folder-index-"
	tempSuffix = ".parquet"
)

// ErrCacheCorrupt is returned when a cache file exists but cannot be decoded.
var ErrCacheCorrupt = errors.New("cache file is corrupt")

// cacheRow is the on-disk row layout. Pointer fields are nullable columns.
type cacheRow struct {
	Path      string  `parquet:"path"`
	Parent    string  `parquet:"parent"`
	Name      string  `parquet:"name"`
	Stem      *string `parquet:"stem,optional"`
	Size      *int64  `parquet:"size,optional"`
	Extension *string `parquet:"extension,optional"`
	Created   *int64  `parquet:"created,optional"`
	Modified  *int64  `parquet:"modified,optional"`
	IsFolder  bool    `parquet:"is_folder"`
	Hash      *string `parquet:"hash,optional"`
}

// CachePath returns the cache file location inside dir.
func CachePath(dir string) string {
	return filepath.Join(dir, CacheFileName)
}

// IsCacheFile reports whether name is the base name of a cache file or of a
// cache file still being written.
func IsCacheFile(name string) bool {
	return name == CacheFileName ||
		strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix)
}

// CacheExists reports whether path names an existing regular file.
func CacheExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SaveCache writes t to CachePath(dir) and returns that path. The file is
// written next to its destination and renamed into place, so a failed save
// never leaves a truncated cache behind.
func SaveCache(t *Table, dir string) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("invalid table: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	rows := make([]cacheRow, t.Len())
	for i := range rows {
		rows[i] = cacheRow{
			Path:      t.Path[i],
			Parent:    t.Parent[i],
			Name:      t.Name[i],
			Stem:      t.Stem.Ptr(i),
			Size:      t.Size.Ptr(i),
			Extension: t.Extension.Ptr(i),
			Created:   t.Created.Ptr(i),
			Modified:  t.Modified.Ptr(i),
			IsFolder:  t.IsFolder[i],
			Hash:      t.Hash.Ptr(i),
		}
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*"+tempSuffix)
	if err != nil {
		return "", fmt.Errorf("create cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := parquet.Write(tmp, rows, parquet.Compression(&parquet.Zstd)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close cache file: %w", err)
	}

	dest := CachePath(dir)
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("move cache file into place: %w", err)
	}
	return dest, nil
}

// LoadCache reads a cache file written by SaveCache.
func LoadCache(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat cache file: %w", err)
	}

	rows, err := parquet.Read[cacheRow](f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheCorrupt, path, err)
	}

	t := newTable(len(rows))
	for i := range rows {
		row := &rows[i]
		t.Path = append(t.Path, row.Path)
		t.Parent = append(t.Parent, row.Parent)
		t.Name = append(t.Name, row.Name)
		t.Stem.AppendPtr(row.Stem)
		t.Size.AppendPtr(row.Size)
		t.Extension.AppendPtr(row.Extension)
		t.Created.AppendPtr(row.Created)
		t.Modified.AppendPtr(row.Modified)
		t.IsFolder = append(t.IsFolder, row.IsFolder)
		t.Hash.AppendPtr(row.Hash)
	}
	return t, nil
}
