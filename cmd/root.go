package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/TFMV/folderindex/internal/analysis"
	"github.com/TFMV/folderindex/internal/index"
	"github.com/TFMV/folderindex/internal/table"
	"github.com/TFMV/folderindex/internal/walk"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "folderindex [options] <path>",
	Short: "Index a folder tree into a columnar cache and analyze it",
	Long: `folderindex walks a folder tree concurrently, records every file and folder
with optional metadata and content hashes, and stores the result as a Parquet
cache next to the analysis output.

If a cache already exists in the cache location it is reused as is; pass
--reindex to rebuild it.

Examples:
  folderindex --metadata /data
  folderindex -m --hash --analyze -c /tmp/index /data
  folderindex -m -a --top-n 20 --extension csv /data
  folderindex -m --sqlite-export index.db /data`,
	Version:      version,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd.Context(), viper.GetViper(), args[0])
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext is Execute with a context that cancels indexing when done.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.folderindex.yaml)")
	pf.StringP("cache-location", "c", "", "Folder for the cache file and results (default is the working directory)")
	pf.BoolP("metadata", "m", false, "Collect size and timestamps")
	pf.Bool("hash", false, "Collect content hashes")
	pf.String("hash-algorithm", "sha256", "Content hash algorithm (sha256|blake3)")
	pf.BoolP("analyze", "a", false, "Run the analysis queries and write their results")
	pf.Int("top-n", analysis.DefaultTopN, "Number of rows in the largest-files result")
	pf.Bool("stable-tree-hash", false, "Order hashes by path before folding the tree hash")
	pf.Bool("fold-extensions", false, "Group extensions case-insensitively")
	pf.StringSlice("extension", nil, "Restrict the largest-files result to these extensions")
	pf.IntP("workers", "w", 0, "Number of concurrent folder listings (default is half the CPUs, at most 20)")
	pf.Bool("follow-symlinks", false, "Descend into symbolically linked folders")
	pf.String("sqlite-export", "", "Also write the index to this SQLite database")
	pf.BoolP("verbose", "v", false, "Enable verbose logging")
	pf.Bool("silent", false, "Disable all output except errors")
	pf.String("log-level", "", "Log level (error|warn|info|debug)")

	rootCmd.Flags().Bool("reindex", false, "Rebuild the index even if a cache exists")

	// Bind flags to viper
	for _, name := range []string{
		"cache-location", "metadata", "hash", "hash-algorithm", "analyze", "top-n",
		"stable-tree-hash", "fold-extensions", "extension", "workers", "follow-symlinks",
		"sqlite-export", "verbose", "silent", "log-level",
	} {
		viper.BindPFlag(name, pf.Lookup(name))
	}
	viper.BindPFlag("reindex", rootCmd.Flags().Lookup("reindex"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search config in home directory with name ".folderindex" (without extension).
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".folderindex")
	}

	viper.SetEnvPrefix("folderindex")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("silent") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runIndex(ctx context.Context, v *viper.Viper, path string) error {
	s, err := loadSettings(v)
	if err != nil {
		return err
	}
	logger := walk.NewLogger(s.LogLevel)
	defer logger.Sync()

	if s.Analyze && !s.CollectMetadata {
		logger.Warn("analysis needs metadata, skipping it; pass --metadata to enable")
		s.Analyze = false
	}

	t, loaded, err := index.CreateOrLoad(ctx, s.indexOptions(path, logger))
	if err != nil {
		return err
	}
	if loaded && s.CollectMetadata && t.Len() > 0 && !t.HasMetadata() {
		logger.Warn("cached index has no metadata; pass --reindex to rebuild it")
	}

	cacheDir, err := resolveCacheDir(s.CacheDir)
	if err != nil {
		return err
	}
	return finish(ctx, t, cacheDir, s, logger)
}

// finish runs the optional outputs shared by every command that ends up
// with a table: the SQLite export and the analysis.
func finish(ctx context.Context, t *table.Table, cacheDir string, s settings, logger *zap.Logger) error {
	if s.SQLiteExport != "" {
		if err := table.ExportSQLite(ctx, t, s.SQLiteExport); err != nil {
			return fmt.Errorf("sqlite export: %w", err)
		}
		logger.Info("exported index", zap.String("database", s.SQLiteExport), zap.Int("rows", t.Len()))
	}
	if s.Analyze {
		return runAnalysis(ctx, t, cacheDir, s, logger)
	}
	return nil
}

func runAnalysis(ctx context.Context, t *table.Table, cacheDir string, s settings, logger *zap.Logger) error {
	report, err := s.analyzer(logger).Analyze(ctx, t)
	if errors.Is(err, analysis.ErrNoMetadata) {
		logger.Warn("index was built without metadata, skipping analysis")
		return nil
	}
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	dir := analysis.ResultsDir(cacheDir)
	paths, err := report.WriteAll(dir)
	if err != nil {
		return err
	}

	if s.LogLevel != walk.LogLevelError {
		fmt.Printf("Total size: %s (%s bytes)\n",
			humanize.IBytes(uint64(max(report.TotalSize, 0))), humanize.Comma(report.TotalSize))
		if report.TreeHash != "" {
			fmt.Printf("Tree hash:  %s\n", report.TreeHash)
		}
	}
	logger.Info("analysis written", zap.String("dir", dir), zap.Strings("files", paths))
	return nil
}

func resolveCacheDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	return index.ValidateDir(dir)
}
