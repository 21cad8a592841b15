package imaging

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// ctxReader stops a stream once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// digest returns the BLAKE2b-256 sum of r
func digest(ctx context.Context, r io.Reader, buf []byte) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyBuffer(h, ctxReader{ctx: ctx, r: r}, buf); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// verifyCopy compares the first size bytes of dev with the image
func verifyCopy(ctx context.Context, image io.Reader, dev io.ReaderAt, size int64, buf []byte) error {
	want, err := digest(ctx, image, buf)
	if err != nil {
		return fmt.Errorf("failed to hash image: %w", err)
	}
	got, err := digest(ctx, io.NewSectionReader(dev, 0, size), buf)
	if err != nil {
		return fmt.Errorf("failed to read back device: %w", err)
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("verification failed: device content differs from image (%x != %x)", got, want)
	}
	return nil
}
