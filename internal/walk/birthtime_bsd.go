//go:build darwin || freebsd || netbsd

package walk

import (
	"os"
	"syscall"
	"time"
)

func birthTime(_ string, info os.FileInfo, _ bool) (time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(st.Birthtimespec.Unix()), true
}
