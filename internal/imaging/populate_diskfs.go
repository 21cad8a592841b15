package imaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

// diskfsPopulator builds a FAT32 filesystem inside a disk image file without mounting it
type diskfsPopulator struct {
	image string
	disk  *disk.Disk
	fs    filesystem.FileSystem
}

func (p *diskfsPopulator) Prepare(ctx context.Context, fs platform.Filesystem, label string) error {
	if fs != platform.FSFAT32 {
		return fmt.Errorf("%w: %s inside an image file", platform.ErrUnsupportedFilesystem, fs)
	}
	d, err := diskfs.Open(p.image, diskfs.WithOpenMode(diskfs.ReadWriteExclusive))
	if err != nil {
		return fmt.Errorf("failed to open disk image: %w", err)
	}
	created, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: label,
	})
	if err != nil {
		d.Close()
		return fmt.Errorf("failed to create filesystem: %w", err)
	}
	p.disk, p.fs = d, created
	return nil
}

func (p *diskfsPopulator) Mkdir(rel string) error {
	if err := p.fs.Mkdir(path.Join("/", rel)); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

func (p *diskfsPopulator) Create(rel string) (io.WriteCloser, error) {
	return p.fs.OpenFile(path.Join("/", rel), os.O_CREATE|os.O_RDWR|os.O_TRUNC)
}

// Finish closes the image; it is safe to call more than once
func (p *diskfsPopulator) Finish(ctx context.Context, bootloader bool) error {
	if p.disk == nil {
		return nil
	}
	d := p.disk
	p.disk, p.fs = nil, nil
	if err := d.Close(); err != nil {
		return fmt.Errorf("failed to close disk image: %w", err)
	}
	return nil
}

// isImageFile reports whether target is a regular file rather than a device node
func isImageFile(target string) bool {
	info, err := os.Stat(target)
	return err == nil && info.Mode().IsRegular()
}
