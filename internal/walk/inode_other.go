//go:build !unix

package walk

import "path/filepath"

// inodeKey falls back to the resolved path where inodes are not exposed.
type inodeKey struct {
	path string
}

func inodeOf(path string) (inodeKey, bool) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return inodeKey{}, false
	}
	return inodeKey{path: filepath.Clean(real)}, true
}
