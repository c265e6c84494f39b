package cmd

import (
	"fmt"
	"time"

	"github.com/TFMV/folderindex/internal/analysis"
	"github.com/TFMV/folderindex/internal/hashing"
	"github.com/TFMV/folderindex/internal/index"
	"github.com/TFMV/folderindex/internal/walk"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// settings is the resolved configuration shared by every command, after
// flags, environment and config file have been merged by viper.
type settings struct {
	CacheDir        string
	CollectMetadata bool
	CollectHash     bool
	HashAlgorithm   hashing.Algorithm
	Analyze         bool
	TopN            int
	StableTreeHash  bool
	FoldExtensions  bool
	Extensions      []string
	Workers         int
	FollowSymlinks  bool
	Reindex         bool
	SQLiteExport    string
	Debounce        time.Duration
	LogLevel        walk.LogLevel
}

func loadSettings(v *viper.Viper) (settings, error) {
	alg, err := hashing.ParseAlgorithm(v.GetString("hash-algorithm"))
	if err != nil {
		return settings{}, err
	}

	workers := v.GetInt("workers")
	if workers < 0 {
		return settings{}, fmt.Errorf("invalid workers value: %d", workers)
	}
	topN := v.GetInt("top-n")
	if topN < 0 {
		return settings{}, fmt.Errorf("invalid top-n value: %d", topN)
	}

	level := walk.LogLevelInfo
	if name := v.GetString("log-level"); name != "" {
		if level, err = walk.ParseLogLevel(name); err != nil {
			return settings{}, err
		}
	}
	if v.GetBool("verbose") {
		level = walk.LogLevelDebug
	} else if v.GetBool("silent") {
		level = walk.LogLevelError
	}

	return settings{
		CacheDir:        v.GetString("cache-location"),
		CollectMetadata: v.GetBool("metadata"),
		CollectHash:     v.GetBool("hash"),
		HashAlgorithm:   alg,
		Analyze:         v.GetBool("analyze"),
		TopN:            topN,
		StableTreeHash:  v.GetBool("stable-tree-hash"),
		FoldExtensions:  v.GetBool("fold-extensions"),
		Extensions:      v.GetStringSlice("extension"),
		Workers:         workers,
		FollowSymlinks:  v.GetBool("follow-symlinks"),
		Reindex:         v.GetBool("reindex"),
		SQLiteExport:    v.GetString("sqlite-export"),
		Debounce:        v.GetDuration("debounce"),
		LogLevel:        level,
	}, nil
}

// indexOptions maps the settings onto an index request for root.
func (s settings) indexOptions(root string, logger *zap.Logger) index.Options {
	return index.Options{
		Root:            root,
		CacheDir:        s.CacheDir,
		CollectMetadata: s.CollectMetadata,
		CollectHash:     s.CollectHash,
		HashAlgorithm:   s.HashAlgorithm,
		Workers:         s.Workers,
		FollowSymlinks:  s.FollowSymlinks,
		Reindex:         s.Reindex,
		Logger:          logger,
	}
}

// analyzer builds an Analyzer configured from the settings.
func (s settings) analyzer(logger *zap.Logger) *analysis.Analyzer {
	a := analysis.NewAnalyzer()
	a.SetTopN(s.TopN)
	a.SetHashAlgorithm(s.HashAlgorithm)
	a.SetExtensionFilter(s.Extensions...)
	a.SetLogger(logger)
	if s.StableTreeHash {
		a.EnableStableTreeHash()
	}
	if s.FoldExtensions {
		a.EnableExtensionFolding()
	}
	return a
}
