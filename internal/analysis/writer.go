package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ResultsDirName is the folder, inside the cache folder, that receives
// analysis output.
const ResultsDirName = "results"

// ResultsDir returns the results folder for a cache folder.
func ResultsDir(cacheDir string) string {
	return filepath.Join(cacheDir, ResultsDirName)
}

// WriteCSV writes res to dir/<name>.csv with a header row, creating dir if
// needed, and returns the file path.
func WriteCSV(dir string, res Result) (string, error) {
	if res.Name == "" {
		return "", errors.New("result has no name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}

	path := filepath.Join(dir, res.Name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(res.Header); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(res.Rows); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// WriteAll writes every result of the report into dir and returns the
// written paths in result order.
func (r *Report) WriteAll(dir string) ([]string, error) {
	paths := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		path, err := WriteCSV(dir, res)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
