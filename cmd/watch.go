package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/TFMV/folderindex/internal/analysis"
	"github.com/TFMV/folderindex/internal/index"
	"github.com/TFMV/folderindex/internal/table"
	"github.com/TFMV/folderindex/internal/walk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Keep the index of a folder up to date",
	Long: `Index a folder, then watch it for changes and rebuild the whole index once
the changes have settled. With --analyze the results are rewritten after every
rebuild.

Examples:
  folderindex watch -m /data
  folderindex watch -m -a --debounce 10s -c /tmp/index /data`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("debounce", walk.DefaultDebounce, "Quiet period before rebuilding after a change")
	viper.BindPFlag("debounce", watchCmd.Flags().Lookup("debounce"))
}

func runWatch(ctx context.Context, path string) error {
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	logger := walk.NewLogger(s.LogLevel)
	defer logger.Sync()

	root, err := index.ValidateDir(path)
	if err != nil {
		return err
	}
	cacheDir, err := resolveCacheDir(s.CacheDir)
	if err != nil {
		return err
	}
	if s.Analyze && !s.CollectMetadata {
		logger.Warn("analysis needs metadata, skipping it; pass --metadata to enable")
		s.Analyze = false
	}

	// Start from a fresh index; the cache may predate the watch.
	opts := s.indexOptions(root, logger)
	opts.CacheDir = cacheDir
	t, err := index.Create(ctx, opts)
	if err != nil {
		return err
	}
	if err := finish(ctx, t, cacheDir, s, logger); err != nil {
		return err
	}

	if s.LogLevel != walk.LogLevelError {
		fmt.Printf("Watching %s for changes...\n", root)
		fmt.Println("Press Ctrl+C to exit.")
	}

	return walk.Watch(ctx, root, walk.WatchOptions{
		Debounce: s.Debounce,
		Workers:  s.Workers,
		Logger:   logger,
		Ignore:   outputFilter(cacheDir, s.SQLiteExport),
	}, func(ctx context.Context, changed []string) error {
		logger.Info("rebuilding index", zap.Int("changed", len(changed)))
		t, err := index.Create(ctx, opts)
		if err != nil {
			return err
		}
		return finish(ctx, t, cacheDir, s, logger)
	})
}

// outputFilter matches the files a rebuild writes: the cache and its temporary
// siblings in cacheDir, the results folder, and the SQLite database with its
// journal files. A rebuild must not trigger the next one when these live
// inside the watched tree.
func outputFilter(cacheDir, sqlitePath string) func(path string) bool {
	results := analysis.ResultsDir(cacheDir)
	if sqlitePath != "" {
		if abs, err := filepath.Abs(sqlitePath); err == nil {
			sqlitePath = abs
		}
	}
	return func(path string) bool {
		if path == results || strings.HasPrefix(path, results+string(filepath.Separator)) {
			return true
		}
		if filepath.Dir(path) == cacheDir && table.IsCacheFile(filepath.Base(path)) {
			return true
		}
		return sqlitePath != "" && strings.HasPrefix(path, sqlitePath)
	}
}
