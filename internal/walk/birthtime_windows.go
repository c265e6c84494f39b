//go:build windows

package walk

import (
	"os"
	"syscall"
	"time"
)

func birthTime(_ string, info os.FileInfo, _ bool) (time.Time, bool) {
	attrs, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, attrs.CreationTime.Nanoseconds()), true
}
