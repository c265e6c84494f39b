//go:build unix

package walk

import (
	"os"
	"syscall"
)

// inodeKey uniquely identifies a folder for symlink cycle detection.
type inodeKey struct {
	dev uint64
	ino uint64
}

func inodeOf(path string) (inodeKey, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return inodeKey{}, false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return inodeKey{}, false
	}
	return inodeKey{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
}
