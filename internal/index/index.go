// Package index decides between building a fresh index of a folder and
// reusing the cached one, and persists freshly built indexes.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TFMV/folderindex/internal/hashing"
	"github.com/TFMV/folderindex/internal/table"
	"github.com/TFMV/folderindex/internal/walk"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

var (
	// ErrNotExist is returned when a required folder does not exist.
	ErrNotExist = errors.New("path does not exist")
	// ErrNotFolder is returned when a path exists but is not a folder.
	ErrNotFolder = errors.New("path is not a folder")
)

// Options configures Create and CreateOrLoad.
type Options struct {
	Root            string // Folder to index
	CacheDir        string // Folder receiving the cache file; empty means the working directory
	CollectMetadata bool
	CollectHash     bool
	HashAlgorithm   hashing.Algorithm
	Workers         int
	FollowSymlinks  bool
	Reindex         bool // Ignore an existing cache and rebuild it
	Logger          *zap.Logger
	Progress        walk.ProgressFn
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// ValidateDir checks that path exists and is a folder, and returns it as an
// absolute path.
func ValidateDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotExist, abs)
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFolder, abs)
	}
	return abs, nil
}

func (o Options) cacheDir() (string, error) {
	if o.CacheDir == "" {
		return os.Getwd()
	}
	return ValidateDir(o.CacheDir)
}

// Create indexes opts.Root, saves the cache into opts.CacheDir and returns
// the new table. Nothing is written if the walk fails.
func Create(ctx context.Context, opts Options) (*table.Table, error) {
	logger := opts.logger()

	root, err := ValidateDir(opts.Root)
	if err != nil {
		return nil, err
	}
	cacheDir, err := opts.cacheDir()
	if err != nil {
		return nil, err
	}

	records, stats, err := walk.WalkWithStats(ctx, root, walk.Options{
		CollectMetadata: opts.CollectMetadata,
		CollectHash:     opts.CollectHash,
		HashAlgorithm:   opts.HashAlgorithm,
		FollowSymlinks:  opts.FollowSymlinks,
		Workers:         opts.Workers,
		Logger:          logger,
		Progress:        opts.Progress,
	})
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", root, err)
	}

	t := table.Build(records)

	start := time.Now()
	path, err := table.SaveCache(t, cacheDir)
	if err != nil {
		return nil, fmt.Errorf("save cache: %w", err)
	}

	fields := []zap.Field{
		zap.String("cache", path),
		zap.Int("rows", t.Len()),
		zap.Duration("save_elapsed", time.Since(start)),
	}
	if opts.CollectMetadata {
		fields = append(fields, zap.String("indexed_size", humanize.IBytes(uint64(max(stats.Bytes, 0)))))
	}
	logger.Info("index saved", fields...)
	return t, nil
}

// CreateOrLoad returns the cached table for opts.CacheDir when one exists,
// and otherwise behaves like Create. An existing cache is trusted as is; set
// opts.Reindex to rebuild it. The boolean reports whether the cache was used.
// opts.Root must be an existing folder even when the cache is used.
func CreateOrLoad(ctx context.Context, opts Options) (*table.Table, bool, error) {
	logger := opts.logger()

	if _, err := ValidateDir(opts.Root); err != nil {
		return nil, false, err
	}
	cacheDir, err := opts.cacheDir()
	if err != nil {
		return nil, false, err
	}
	path := table.CachePath(cacheDir)

	if !opts.Reindex && table.CacheExists(path) {
		start := time.Now()
		t, err := table.LoadCache(path)
		if err != nil {
			return nil, false, fmt.Errorf("load cache: %w", err)
		}
		logger.Info("loaded cached index",
			zap.String("cache", path),
			zap.Int("rows", t.Len()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return t, true, nil
	}

	if opts.Reindex {
		logger.Info("rebuilding index", zap.String("cache", path))
	} else {
		logger.Info("no cached index found, indexing", zap.String("cache", path))
	}
	t, err := Create(ctx, opts)
	if err != nil {
		return nil, false, err
	}
	return t, false, nil
}
