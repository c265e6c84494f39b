package cmd

import (
	"path/filepath"

	"github.com/TFMV/folderindex/internal/table"
	"github.com/TFMV/folderindex/internal/walk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [cache-file]",
	Short: "Analyze an existing index cache",
	Long: `Load a cache written by a previous run and run the analysis queries over it,
without touching the indexed folder. Results are written to the results folder
next to the cache file.

Examples:
  folderindex analyze
  folderindex analyze /tmp/index/folder-index.parquet
  folderindex analyze --top-n 10 --extension csv --extension parquet`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(viper.GetViper())
		if err != nil {
			return err
		}
		logger := walk.NewLogger(s.LogLevel)
		defer logger.Sync()

		var path string
		if len(args) > 0 {
			path = args[0]
		} else {
			dir, err := resolveCacheDir(s.CacheDir)
			if err != nil {
				return err
			}
			path = table.CachePath(dir)
		}

		t, err := table.LoadCache(path)
		if err != nil {
			return err
		}
		logger.Info("loaded cached index", zap.String("cache", path), zap.Int("rows", t.Len()))

		// Analysis is the point of this command.
		s.Analyze = true
		return finish(cmd.Context(), t, filepath.Dir(path), s, logger)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
