//go:build !linux && !darwin && !freebsd && !netbsd && !windows

package walk

import (
	"os"
	"time"
)

// birthTime is unsupported on this platform; creation time stays absent.
func birthTime(string, os.FileInfo, bool) (time.Time, bool) {
	return time.Time{}, false
}
