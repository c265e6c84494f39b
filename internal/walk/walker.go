// Package walk indexes a filesystem subtree concurrently, producing one
// PathRecord per file and folder beneath a root.
//
// The walk proceeds in rounds. Each round drains the whole frontier of
// unlisted folders, lists every folder of the batch on a bounded worker pool,
// and merges the per-folder results only after all of them have finished.
// Folders discovered in round k are therefore listed in round k+1, and no
// task ever observes a partially merged frontier.
package walk

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/folderindex/internal/hashing"
	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxDefaultWorkers caps the default worker count on large hosts.
const MaxDefaultWorkers = 20

// ErrRootUnreadable is returned when the root folder itself cannot be listed.
var ErrRootUnreadable = errors.New("root folder cannot be listed")

// ProgressFn is called by the coordinator after every round with a snapshot
// of the traversal statistics. It is never called concurrently.
type ProgressFn func(stats Stats)

// Stats holds traversal statistics.
type Stats struct {
	Files       int64         // File records emitted
	Folders     int64         // Folder records emitted
	Bytes       int64         // Sum of collected file sizes
	Errors      int64         // Folders or entries that were skipped
	Rounds      int64         // Frontier drains performed
	Elapsed     time.Duration // Time since the walk started
	PathsPerSec float64       // Records emitted per second
}

// Paths returns the total number of records emitted.
func (s Stats) Paths() int64 {
	return s.Files + s.Folders
}

// updateDerivedStats calculates throughput from the counters.
func (s *Stats) updateDerivedStats() {
	if sec := s.Elapsed.Seconds(); sec > 0 {
		s.PathsPerSec = float64(s.Paths()) / sec
	} else {
		s.PathsPerSec = 0
	}
}

// Options configures a walk.
type Options struct {
	CollectMetadata bool
	CollectHash     bool
	HashAlgorithm   hashing.Algorithm
	FollowSymlinks  bool        // Descend into linked folders, guarding against cycles
	Workers         int         // Concurrent folder listings; <= 0 selects DefaultWorkers
	Logger          *zap.Logger // nil disables logging
	Progress        ProgressFn
}

// DefaultWorkers returns half the available CPUs, between 1 and MaxDefaultWorkers.
func DefaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	if n > MaxDefaultWorkers {
		n = MaxDefaultWorkers
	}
	return n
}

func (o Options) recordOptions(logger *zap.Logger) RecordOptions {
	return RecordOptions{
		CollectMetadata: o.CollectMetadata,
		CollectHash:     o.CollectHash,
		HashAlgorithm:   o.HashAlgorithm,
		FollowSymlinks:  o.FollowSymlinks,
		Logger:          logger,
	}
}

// folderResult is the owned output of listing one folder. Each task writes
// only its own slot; slots are merged by the coordinator after the barrier.
type folderResult struct {
	records []PathRecord
	folders []string
	keys    []inodeKey // Parallel to folders when following symlinks
	skipped int64
	err     error
}

// walker carries the state of one walk. Only the coordinator goroutine
// touches frontier, visited and stats.
type walker struct {
	opts    Options
	recOpts RecordOptions
	logger  *zap.Logger
	workers int
	scratch sync.Pool
}

// Walk indexes the tree under root and returns one record per entry in
// round order. The root itself is not part of the result.
//
// Walk fails only when root cannot be listed or ctx is cancelled; the
// context is checked at every round boundary and before each folder task
// starts. Any other unreadable folder or entry is logged and skipped.
func Walk(ctx context.Context, root string, opts Options) ([]PathRecord, error) {
	records, _, err := WalkWithStats(ctx, root, opts)
	return records, err
}

// WalkWithStats is Walk that also returns the final traversal statistics.
func WalkWithStats(ctx context.Context, root string, opts Options) ([]PathRecord, Stats, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
	}
	root = filepath.Clean(abs)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	w := &walker{
		opts:    opts,
		recOpts: opts.recordOptions(logger),
		logger:  logger,
		workers: workers,
		scratch: sync.Pool{
			New: func() any {
				buf := make([]byte, godirwalk.MinimumScratchBufferSize)
				return &buf
			},
		},
	}
	return w.run(ctx, root)
}

func (w *walker) run(ctx context.Context, root string) ([]PathRecord, Stats, error) {
	w.logger.Info("starting indexing",
		zap.String("root", root),
		zap.Int("workers", w.workers),
		zap.Bool("metadata", w.opts.CollectMetadata),
		zap.Bool("hash", w.opts.CollectHash),
	)

	start := time.Now()
	var stats Stats
	var records []PathRecord

	frontier := []string{root}
	visited := make(map[inodeKey]struct{})
	if w.opts.FollowSymlinks {
		if key, ok := inodeOf(root); ok {
			visited[key] = struct{}{}
		}
	}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			w.logger.Warn("indexing canceled", zap.Int64("round", stats.Rounds), zap.Error(err))
			return nil, stats, err
		}

		// Drain the whole frontier; discoveries of this round go to the next one.
		batch := frontier
		frontier = nil

		w.logger.Debug("listing folders", zap.Int64("round", stats.Rounds), zap.Int("folders", len(batch)))

		slots, err := w.listBatch(ctx, batch)
		if err != nil {
			return nil, stats, err
		}

		for i, slot := range slots {
			if slot.err != nil {
				if stats.Rounds == 0 {
					return nil, stats, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, batch[i], slot.err)
				}
				w.logger.Warn("failed to read folder", zap.String("path", batch[i]), zap.Error(slot.err))
				stats.Errors++
				continue
			}

			stats.Errors += slot.skipped
			for _, rec := range slot.records {
				if rec.IsFolder {
					stats.Folders++
				} else {
					stats.Files++
					if rec.Size != nil {
						stats.Bytes += *rec.Size
					}
				}
			}
			records = append(records, slot.records...)

			for j, folder := range slot.folders {
				if w.opts.FollowSymlinks {
					key := slot.keys[j]
					if _, seen := visited[key]; seen {
						w.logger.Warn("skipping already visited folder", zap.String("path", folder))
						continue
					}
					visited[key] = struct{}{}
				}
				frontier = append(frontier, folder)
			}
		}

		stats.Rounds++
		stats.Elapsed = time.Since(start)
		stats.updateDerivedStats()
		if w.opts.Progress != nil {
			w.opts.Progress(stats)
		}
	}

	stats.Elapsed = time.Since(start)
	stats.updateDerivedStats()

	w.logger.Info("indexing finished",
		zap.Int64("paths", stats.Paths()),
		zap.Int64("files", stats.Files),
		zap.Int64("folders", stats.Folders),
		zap.Int64("skipped", stats.Errors),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Float64("paths_per_sec", stats.PathsPerSec),
	)

	return records, stats, nil
}

// listBatch lists every folder of batch on the worker pool and returns once
// all of them have finished. The only error is context cancellation.
func (w *walker) listBatch(ctx context.Context, batch []string) ([]folderResult, error) {
	slots := make([]folderResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i, dir := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = w.indexFolder(dir)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// indexFolder lists the direct children of dir and builds their records.
func (w *walker) indexFolder(dir string) folderResult {
	bufp := w.scratch.Get().(*[]byte)
	defer w.scratch.Put(bufp)

	dirents, err := godirwalk.ReadDirents(dir, *bufp)
	if err != nil {
		return folderResult{err: err}
	}
	slices.SortFunc(dirents, func(a, b *godirwalk.Dirent) int {
		return strings.Compare(a.Name(), b.Name())
	})

	res := folderResult{records: make([]PathRecord, 0, len(dirents))}
	for _, de := range dirents {
		rec, err := BuildRecord(Entry{
			Dir:       dir,
			Name:      de.Name(),
			IsDir:     de.IsDir(),
			IsSymlink: de.IsSymlink(),
		}, w.recOpts)
		if err != nil {
			w.logger.Warn("skipping entry", zap.String("folder", dir), zap.Error(err))
			res.skipped++
			continue
		}

		if rec.IsFolder {
			if w.opts.FollowSymlinks {
				key, ok := inodeOf(rec.Path)
				if !ok {
					w.logger.Warn("skipping unresolvable folder", zap.String("path", rec.Path))
					res.records = append(res.records, rec)
					continue
				}
				res.keys = append(res.keys, key)
			}
			res.folders = append(res.folders, rec.Path)
		}
		res.records = append(res.records, rec)
	}
	return res
}
