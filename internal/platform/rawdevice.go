package platform

import (
	"fmt"
	"io"
	"os"
)

// RawDevice is a block device (or image file) opened for raw access
type RawDevice interface {
	io.Writer
	io.ReaderAt
	Sync() error
	Close() error
	// Size returns the capacity in bytes, 0 when unknown
	Size() int64
}

type rawFile struct {
	*os.File
	size int64
}

func (f *rawFile) Size() int64 { return f.size }

// OpenRawFile opens a device node or image file read-write without truncation
func OpenRawFile(path string) (RawDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	size, err := deviceSize(f)
	if err != nil {
		size = 0
	}
	return &rawFile{File: f, size: size}, nil
}
