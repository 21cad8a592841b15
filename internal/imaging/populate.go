package imaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

// fat32MaxFile is the first file size FAT32 cannot store
const fat32MaxFile = 4 << 30

// chooseFilesystem picks FAT32 unless a file reaches the FAT32 size limit
func chooseFilesystem(largest int64) platform.Filesystem {
	if largest >= fat32MaxFile {
		return platform.FSNTFS
	}
	return platform.FSFAT32
}

// populator is the write side of an extract
type populator interface {
	// Prepare formats the target and makes it writable
	Prepare(ctx context.Context, fs platform.Filesystem, label string) error
	Mkdir(rel string) error
	Create(rel string) (io.WriteCloser, error)
	// Finish releases the target; bootloader requests a best-effort bootloader install
	Finish(ctx context.Context, bootloader bool) error
}

// mountPopulator formats a device and fills it through an OS mount
type mountPopulator struct {
	util       platform.DiskUtility
	device     string
	dir        string
	mountpoint string
}

func (p *mountPopulator) Prepare(ctx context.Context, fs platform.Filesystem, label string) error {
	if err := p.util.Format(ctx, p.device, fs, label); err != nil {
		return fmt.Errorf("failed to format %s as %s: %w", p.device, fs, err)
	}
	mp, err := p.util.MountVolume(ctx, p.device, p.dir)
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", p.device, err)
	}
	p.mountpoint = mp
	return nil
}

func (p *mountPopulator) Mkdir(rel string) error {
	return os.MkdirAll(filepath.Join(p.mountpoint, filepath.FromSlash(rel)), 0755)
}

func (p *mountPopulator) Create(rel string) (io.WriteCloser, error) {
	return os.OpenFile(filepath.Join(p.mountpoint, filepath.FromSlash(rel)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
}

func (p *mountPopulator) Finish(ctx context.Context, bootloader bool) error {
	if p.mountpoint == "" {
		return nil
	}
	if err := p.util.UnmountPath(ctx, p.mountpoint); err != nil {
		return fmt.Errorf("failed to unmount %s: %w", p.mountpoint, err)
	}
	p.mountpoint = ""
	if bootloader {
		if err := p.util.InstallBootloader(ctx, p.device); err != nil {
			log.WithError(err).WithField("device", p.device).Warn("Bootloader install failed, the device may not boot")
		}
	}
	return nil
}

// copyTree recreates entries on the populator, adding copied bytes to counter
func copyTree(ctx context.Context, entries []entry, dst populator, counter *atomicCounter, buf []byte) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !filepath.IsLocal(filepath.FromSlash(e.Path)) {
			return fmt.Errorf("%w: %s", errUnsafePath, e.Path)
		}
		if e.Dir {
			if err := dst.Mkdir(e.Path); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", e.Path, err)
			}
			continue
		}
		if err := copyEntry(ctx, e, dst, counter, buf); err != nil {
			return err
		}
	}
	return nil
}

func copyEntry(ctx context.Context, e entry, dst populator, counter *atomicCounter, buf []byte) error {
	r, err := e.open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.Path, err)
	}
	defer r.Close()
	w, err := dst.Create(e.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", e.Path, err)
	}
	_, err = io.CopyBuffer(countingWriter{w: w, n: counter}, ctxReader{ctx: ctx, r: r}, buf)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", e.Path, err)
	}
	return nil
}
