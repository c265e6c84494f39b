package walk

import (
	"context"

	internal "github.com/TFMV/folderindex/internal/walk"
	"go.uber.org/zap"
)

// Re-export the types from the internal package
type (
	// PathRecord is the indexed view of one file or folder.
	PathRecord = internal.PathRecord

	// Options configures a walk.
	Options = internal.Options

	// Stats holds traversal statistics, reported after every round.
	Stats = internal.Stats

	// ProgressFn is called after every round with a statistics snapshot.
	ProgressFn = internal.ProgressFn

	// LogLevel defines the verbosity of logging.
	LogLevel = internal.LogLevel

	// WatchOptions defines options for watching a tree for changes.
	WatchOptions = internal.WatchOptions

	// ChangeHandler receives debounced batches of changed paths.
	ChangeHandler = internal.ChangeHandler
)

// Re-export the constants
const (
	LogLevelError = internal.LogLevelError
	LogLevelWarn  = internal.LogLevelWarn
	LogLevelInfo  = internal.LogLevelInfo
	LogLevelDebug = internal.LogLevelDebug

	MaxDefaultWorkers = internal.MaxDefaultWorkers
	DefaultDebounce   = internal.DefaultDebounce
)

// Re-export the sentinel errors
var (
	ErrRootUnreadable = internal.ErrRootUnreadable
	ErrInvalidName    = internal.ErrInvalidName
)

// Walk indexes the tree under root and returns one record per entry.
func Walk(ctx context.Context, root string, opts Options) ([]PathRecord, error) {
	return internal.Walk(ctx, root, opts)
}

// WalkWithStats is Walk that also returns the final statistics.
func WalkWithStats(ctx context.Context, root string, opts Options) ([]PathRecord, Stats, error) {
	return internal.WalkWithStats(ctx, root, opts)
}

// Watch calls handler with debounced batches of changed paths under root
// until ctx is done.
func Watch(ctx context.Context, root string, opts WatchOptions, handler ChangeHandler) error {
	return internal.Watch(ctx, root, opts, handler)
}

// NewLogger creates a zap logger with the specified log level.
func NewLogger(level LogLevel) *zap.Logger {
	return internal.NewLogger(level)
}

// NewOptions creates Options that collect metadata with the default
// worker count.
func NewOptions() Options {
	return Options{
		CollectMetadata: true,
		Workers:         internal.DefaultWorkers(),
	}
}

// LoggingProgress returns a ProgressFn that logs every round at info level.
func LoggingProgress(logger *zap.Logger) ProgressFn {
	return func(stats Stats) {
		logger.Info("round finished",
			zap.Int64("round", stats.Rounds),
			zap.Int64("files", stats.Files),
			zap.Int64("folders", stats.Folders),
			zap.Int64("bytes", stats.Bytes),
			zap.Float64("paths_per_sec", stats.PathsPerSec),
		)
	}
}
