package imaging

import "errors"

var (
	// ErrUnsafeTarget is returned when the classifier refuses the target device
	ErrUnsafeTarget = errors.New("target device is not safe to modify")

	// ErrEngineBusy is returned while another write or format is in flight
	ErrEngineBusy = errors.New("another operation is already running")

	// ErrUnsupportedStrategy is returned for unknown write strategies
	ErrUnsupportedStrategy = errors.New("unsupported write strategy")

	// ErrWriteFailure wraps anything that failed after a job started
	ErrWriteFailure = errors.New("write failed")

	// ErrCancelled is the error of a job stopped by Cancel
	ErrCancelled = errors.New("operation cancelled")

	// ErrImageUnreadable is returned when the image cannot be opened for reading
	ErrImageUnreadable = errors.New("image is not readable")
)
