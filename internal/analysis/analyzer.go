package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/TFMV/folderindex/internal/hashing"
	"github.com/TFMV/folderindex/internal/table"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTopN is the number of rows kept by the top-N query.
const DefaultTopN = 100

// ErrNoMetadata is returned by Analyze for a non-empty table that was indexed
// without metadata, since every size-based query would be empty.
var ErrNoMetadata = errors.New("index has no metadata")

// Report holds the outcome of a full analysis run.
type Report struct {
	TotalSize int64    // Sum of all present sizes, in bytes
	TreeHash  string   // Empty when no row carries a hash
	Results   []Result // In the order the queries are listed by Analyzer
}

// Result returns the result with the given name.
func (r *Report) Result(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return Result{}, false
}

// Analyzer runs the standard query set over an index table.
type Analyzer struct {
	topN           int
	hashAlgorithm  hashing.Algorithm
	stableTreeHash bool
	foldExtensions bool
	extensions     []string
	logger         *zap.Logger
}

// NewAnalyzer creates a new Analyzer instance
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		topN:   DefaultTopN,
		logger: zap.NewNop(),
	}
}

// SetTopN sets how many rows the top-N query keeps
func (a *Analyzer) SetTopN(n int) {
	a.topN = n
}

// SetHashAlgorithm sets the algorithm used to fold the tree hash. It must
// match the algorithm the index was hashed with to be comparable.
func (a *Analyzer) SetHashAlgorithm(alg hashing.Algorithm) {
	a.hashAlgorithm = alg
}

// EnableStableTreeHash orders hashes by path before folding the tree hash
func (a *Analyzer) EnableStableTreeHash() {
	a.stableTreeHash = true
}

// EnableExtensionFolding groups extensions case-insensitively
func (a *Analyzer) EnableExtensionFolding() {
	a.foldExtensions = true
}

// SetExtensionFilter restricts the top-N query to files with one of exts.
// A leading dot is ignored. An empty list removes the restriction.
func (a *Analyzer) SetExtensionFilter(exts ...string) {
	a.extensions = a.extensions[:0]
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" {
			a.extensions = append(a.extensions, ext)
		}
	}
}

// SetLogger sets the logger for query summaries
func (a *Analyzer) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a.logger = logger
}

// Analyze runs every query over t concurrently and collects their results.
// Duplicates is only included when the index carries content hashes.
func (a *Analyzer) Analyze(ctx context.Context, t *table.Table) (*Report, error) {
	if t.Len() > 0 && !t.HasMetadata() {
		return nil, ErrNoMetadata
	}

	queries := []func() Result{
		func() Result { return topNResult(t, LargestRows(t, a.topN, a.extensionFilter(t))) },
		func() Result { return sizeByExtension(t, a.foldExtensions) },
		func() Result { return countByExtension(t, a.foldExtensions) },
		func() Result { return SizeByParent(t) },
	}
	hasHashes := HasHashes(t)
	if hasHashes {
		queries = append(queries, func() Result { return Duplicates(t) })
	}

	report := &Report{Results: make([]Result, len(queries))}

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Results[i] = query()
			return nil
		})
	}
	g.Go(func() error {
		report.TotalSize = TotalSize(t)
		if hasHashes {
			report.TreeHash = TreeHash(t, a.hashAlgorithm, a.stableTreeHash)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Info("analysis finished",
		zap.Int("rows", t.Len()),
		zap.String("total_size", humanize.IBytes(uint64(max(report.TotalSize, 0)))),
		zap.String("tree_hash", report.TreeHash),
	)
	for _, res := range report.Results {
		a.logger.Debug("query finished", zap.String("query", res.Name), zap.Int("rows", len(res.Rows)))
	}
	return report, nil
}

// extensionFilter returns the row predicate for the top-N query, or nil
// when no filter is set.
func (a *Analyzer) extensionFilter(t *table.Table) func(row int) bool {
	if len(a.extensions) == 0 {
		return nil
	}
	key := exactKey
	if a.foldExtensions {
		key = newFoldKey()
	}
	wanted := make(map[string]struct{}, len(a.extensions))
	for _, ext := range a.extensions {
		wanted[key(ext)] = struct{}{}
	}
	return func(row int) bool {
		ext, ok := t.Extension.At(row)
		if !ok {
			return false
		}
		_, hit := wanted[key(ext)]
		return hit
	}
}
