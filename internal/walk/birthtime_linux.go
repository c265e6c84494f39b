//go:build linux

package walk

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime reads the creation time through statx(2). Filesystems that do
// not record it leave STATX_BTIME out of the returned mask.
func birthTime(path string, _ os.FileInfo, follow bool) (time.Time, bool) {
	flags := unix.AT_STATX_SYNC_AS_STAT
	if !follow {
		flags |= unix.AT_SYMLINK_NOFOLLOW
	}

	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, flags, unix.STATX_BTIME, &stx); err != nil {
		return time.Time{}, false
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false
	}

	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true
}
