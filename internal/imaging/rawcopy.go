package imaging

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// rawCopy streams the image onto the device in BlockSize chunks, syncs it and optionally reads it back
func (e *Engine) rawCopy(ctx context.Context, job *WriteJob) (int64, error) {
	src, err := os.Open(job.Image)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	size := info.Size()

	dev, err := e.util.OpenRaw(job.Target)
	if err != nil {
		return 0, err
	}
	defer dev.Close()
	if capacity := dev.Size(); capacity > 0 && capacity < size {
		return 0, fmt.Errorf("image is %d bytes but %s holds only %d", size, job.Target, capacity)
	}

	log.WithFields(log.Fields{"image": job.Image, "device": job.Target, "bytes": size, "block_size": e.opts.BlockSize}).Info("Writing image")
	buf := make([]byte, e.opts.BlockSize)
	var written atomicCounter
	stop := pump(job, e.opts.PollInterval, &written, size, 0, 100, "Writing image")
	err = copyChunks(ctx, dev, src, buf, &written)
	stop()
	if err != nil {
		return written.Load(), err
	}

	job.report(0, "Syncing device")
	if err := dev.Sync(); err != nil {
		return written.Load(), fmt.Errorf("failed to sync %s: %w", job.Target, err)
	}

	if e.opts.Verify {
		job.report(0, "Verifying written data")
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return written.Load(), err
		}
		if err := verifyCopy(ctx, src, dev, size, buf); err != nil {
			return written.Load(), err
		}
	}
	return written.Load(), nil
}

// copyChunks copies src to dst one full buffer at a time, checking ctx between chunks
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, buf []byte, written *atomicCounter) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write at offset %d: %w", written.Load(), err)
			}
			written.Add(int64(n))
		}
		switch rerr {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			return nil
		default:
			return fmt.Errorf("read image: %w", rerr)
		}
	}
}
