//go:build darwin

package platform

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, uint32)
	dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, uint64)
)

// deviceSize returns the size of a regular file or block device in bytes
func deviceSize(f *os.File) (int64, error) {
	if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
		return info.Size(), nil
	}
	blockSize, err := unix.IoctlGetInt(int(f.Fd()), dkiocGetBlockSize)
	if err != nil {
		return 0, fmt.Errorf("cannot get block size: %w", err)
	}
	blockCount, err := unix.IoctlGetInt(int(f.Fd()), dkiocGetBlockCount)
	if err != nil {
		return 0, fmt.Errorf("cannot get block count: %w", err)
	}
	return int64(uint32(blockSize)) * int64(blockCount), nil
}
