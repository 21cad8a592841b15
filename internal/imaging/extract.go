package imaging

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

func (e *Engine) populatorFor(job *WriteJob) populator {
	if isImageFile(job.Target) {
		return &diskfsPopulator{image: job.Target}
	}
	return &mountPopulator{
		util:   e.util,
		device: job.Target,
		dir:    filepath.Join(e.opts.MountDir, "diskforge-"+job.ID[:8]),
	}
}

// extract formats the target and copies the image's file tree onto it
func (e *Engine) extract(ctx context.Context, job *WriteJob) (int64, error) {
	job.report(5, "Opening image")
	src, err := openSource(ctx, e.util, job.Image)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.WithError(err).WithField("image", job.Image).Warn("Failed to release image")
		}
	}()

	entries, err := src.Entries()
	if err != nil {
		return 0, err
	}
	total, largest := largestFile(entries)
	fs := chooseFilesystem(largest)
	log.WithFields(log.Fields{
		"image":      job.Image,
		"files":      len(entries),
		"bytes":      total,
		"largest":    largest,
		"filesystem": fs,
	}).Info("Extracting image")

	dst := e.populatorFor(job)
	job.report(10, fmt.Sprintf("Formatting %s as %s", job.Target, fs))
	if err := dst.Prepare(ctx, fs, e.opts.Label); err != nil {
		return 0, err
	}

	var copied atomicCounter
	job.report(20, "Copying files")
	stop := pump(job, e.opts.PollInterval, &copied, total, 20, 95, "Copying files")
	err = copyTree(ctx, entries, dst, &copied, make([]byte, e.opts.BlockSize))
	stop()

	job.report(0, "Finalizing")
	bootloader := job.Strategy == FilesystemExtract && err == nil
	// ctx may already be cancelled here
	if ferr := dst.Finish(context.Background(), bootloader); ferr != nil {
		if err == nil {
			return copied.Load(), ferr
		}
		log.WithError(ferr).WithField("device", job.Target).Warn("Failed to release target")
	}
	return copied.Load(), err
}

var _ populator = (*mountPopulator)(nil)
var _ populator = (*diskfsPopulator)(nil)
