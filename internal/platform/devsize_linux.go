//go:build linux

package platform

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// deviceSize returns the size of a regular file or block device in bytes
func deviceSize(f *os.File) (int64, error) {
	if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
		return info.Size(), nil
	}
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err == nil {
		return int64(size), nil
	}
	end, serr := f.Seek(0, io.SeekEnd)
	if serr != nil {
		return 0, err
	}
	_, _ = f.Seek(0, io.SeekStart)
	return end, nil
}
