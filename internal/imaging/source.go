package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/kdomanski/iso9660"
	log "github.com/sirupsen/logrus"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

// entry is one file or directory of an image, with a slash separated relative path
type entry struct {
	Path string
	Dir  bool
	Size int64
	open func() (io.ReadCloser, error)
}

// source is the read side of an extract
type source interface {
	Entries() ([]entry, error)
	Close() error
}

// openSource attaches the image through the OS and falls back to the in-process ISO-9660 reader
func openSource(ctx context.Context, util platform.DiskUtility, image string) (source, error) {
	mp, err := util.AttachImage(ctx, image)
	if err == nil {
		return &dirSource{root: mp, detach: func() error { return util.DetachImage(context.Background(), mp) }}, nil
	}
	log.WithError(err).WithField("image", image).Info("Attaching image failed, reading it in-process")
	return openISO(image)
}

// dirSource reads an image the OS attached at root
type dirSource struct {
	root   string
	detach func() error
}

func (s *dirSource) Entries() ([]entry, error) {
	entries := []entry{}
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil || rel == "." {
			return err
		}
		e := entry{Path: filepath.ToSlash(rel), Dir: d.IsDir()}
		if !d.IsDir() {
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			e.Size = info.Size()
			full := p
			e.open = func() (io.ReadCloser, error) { return os.Open(full) }
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}
	return entries, nil
}

func (s *dirSource) Close() error {
	if s.detach == nil {
		return nil
	}
	return s.detach()
}

// isoSource reads an ISO-9660 image without mounting it
type isoSource struct {
	f   *os.File
	img *iso9660.Image
}

func openISO(image string) (*isoSource, error) {
	f, err := os.Open(image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	img, err := iso9660.OpenImage(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read iso9660 volume: %w", err)
	}
	return &isoSource{f: f, img: img}, nil
}

func (s *isoSource) Entries() ([]entry, error) {
	root, err := s.img.RootDir()
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}
	entries := []entry{}
	if err := walkISO(root, "", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func walkISO(dir *iso9660.File, prefix string, entries *[]entry) error {
	children, err := dir.GetChildren()
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	for _, c := range children {
		name := c.Name()
		if name == "" || name == "." || name == ".." {
			continue
		}
		p := path.Join(prefix, name)
		if c.IsDir() {
			*entries = append(*entries, entry{Path: p, Dir: true})
			if err := walkISO(c, p, entries); err != nil {
				return err
			}
			continue
		}
		file := c
		*entries = append(*entries, entry{
			Path: p,
			Size: c.Size(),
			open: func() (io.ReadCloser, error) { return io.NopCloser(file.Reader()), nil },
		})
	}
	return nil
}

func (s *isoSource) Close() error {
	return s.f.Close()
}

// largestFile returns the total and the largest file size of entries
func largestFile(entries []entry) (total, largest int64) {
	for _, e := range entries {
		if e.Dir {
			continue
		}
		total += e.Size
		if e.Size > largest {
			largest = e.Size
		}
	}
	return total, largest
}

var errUnsafePath = errors.New("image entry escapes the target root")
