package walk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TFMV/folderindex/internal/hashing"
	"go.uber.org/zap"
)

// ErrInvalidName is returned when an entry's base name is empty or cannot be
// represented as UTF-8 text.
var ErrInvalidName = errors.New("invalid entry name")

// PathRecord is the indexed view of one file or folder.
//
// Optional attributes are pointers; nil means the value is absent. Folders
// never carry Stem, Extension, Size or Hash. Records must not be modified
// once the walker has emitted them.
type PathRecord struct {
	Path      string     // Absolute path, unique within one walk
	Parent    string     // Path of the containing folder
	Name      string     // Final path component
	Stem      *string    // Name without extension (files only)
	Size      *int64     // Byte length (files, metadata enabled)
	Extension *string    // Suffix after the last dot, as found (files only)
	Created   *time.Time // Birth time when the platform exposes it
	Modified  *time.Time // Last modification time
	IsFolder  bool
	Hash      *string // Hex content digest (files, hashing enabled)
}

// Entry is a raw child of a listed folder, before any metadata is read.
type Entry struct {
	Dir       string // Folder the entry was listed from
	Name      string // Base name as returned by the directory read
	IsDir     bool   // Directory according to the listing, links not resolved
	IsSymlink bool
}

// Path returns the joined path of the entry.
func (e Entry) Path() string {
	return filepath.Join(e.Dir, e.Name)
}

// RecordOptions controls which secondary attributes BuildRecord collects.
type RecordOptions struct {
	CollectMetadata bool
	CollectHash     bool
	HashAlgorithm   hashing.Algorithm
	FollowSymlinks  bool
	Logger          *zap.Logger
}

// BuildRecord turns a raw listing entry into a PathRecord.
//
// It fails only when the entry name is unusable. Metadata, timestamps and
// the content hash each degrade to absent on their own failure: a metadata
// or hash failure is logged at warn level, missing timestamps are not.
func BuildRecord(e Entry, opts RecordOptions) (PathRecord, error) {
	if e.Name == "" || e.Name == "." || e.Name == ".." || !utf8.ValidString(e.Name) {
		return PathRecord{}, fmt.Errorf("%w: %q in %s", ErrInvalidName, e.Name, e.Dir)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	path := e.Path()
	follow := opts.FollowSymlinks && e.IsSymlink

	isFolder := e.IsDir
	if follow {
		// Dangling links are kept as plain entries.
		if info, err := os.Stat(path); err == nil {
			isFolder = info.IsDir()
		}
	}

	rec := PathRecord{
		Path:     path,
		Parent:   e.Dir,
		Name:     e.Name,
		IsFolder: isFolder,
	}

	if !isFolder {
		stem, ext, hasExt := splitName(e.Name)
		rec.Stem = &stem
		if hasExt {
			rec.Extension = &ext
		}
	}

	if opts.CollectMetadata {
		stat := os.Lstat
		if follow {
			stat = os.Stat
		}
		info, err := stat(path)
		if err != nil {
			logger.Warn("failed to read metadata", zap.String("path", path), zap.Error(err))
		} else {
			if !isFolder {
				size := info.Size()
				rec.Size = &size
			}
			if mod := info.ModTime(); !mod.IsZero() {
				rec.Modified = &mod
			}
			if created, ok := birthTime(path, info, follow); ok {
				rec.Created = &created
			}
		}
	}

	// Links that are not followed are never read through.
	if opts.CollectHash && !isFolder && (!e.IsSymlink || follow) {
		digest, err := hashing.HashFileWith(opts.HashAlgorithm, path)
		if err != nil {
			logger.Warn("failed to hash file", zap.String("path", path), zap.Error(err))
		} else {
			rec.Hash = &digest
		}
	}

	return rec, nil
}

// splitName splits a file name into stem and extension at the last dot.
// Leading-dot names such as ".bashrc" have no extension, and a trailing dot
// yields an empty extension, which is reported as absent.
func splitName(name string) (stem, ext string, hasExt bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, "", false
	}
	return name[:i], name[i+1:], i+1 < len(name)
}
