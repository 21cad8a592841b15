package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported is returned for operations the running platform cannot perform
	ErrNotSupported = errors.New("operation not supported on this platform")

	// ErrUnsupportedFilesystem is returned for filesystem names outside the platform's set
	ErrUnsupportedFilesystem = errors.New("unsupported filesystem")
)

// ProbeError reports a failed OS inventory query
type ProbeError struct {
	Op  string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func probeErr(op string, err error) error {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return err
	}
	return &ProbeError{Op: op, Err: err}
}

// IsProbeError reports whether err comes from a failed inventory query
func IsProbeError(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe)
}

// UnmountError reports a partition that could not be unmounted
type UnmountError struct {
	Mountpoint string
	Err        error
}

func (e *UnmountError) Error() string {
	return fmt.Sprintf("unmount %s: %v", e.Mountpoint, e.Err)
}

func (e *UnmountError) Unwrap() error { return e.Err }
