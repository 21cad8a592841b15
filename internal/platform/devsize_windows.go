//go:build windows

package platform

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/windows"
)

const ioctlDiskGetLengthInfo = 0x7405C

// deviceSize returns the size of a regular file or physical drive in bytes
func deviceSize(f *os.File) (int64, error) {
	if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
		return info.Size(), nil
	}
	var out [8]byte
	var returned uint32
	err := windows.DeviceIoControl(windows.Handle(f.Fd()), ioctlDiskGetLengthInfo, nil, 0, &out[0], uint32(len(out)), &returned, nil)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(out[:])), nil
}
