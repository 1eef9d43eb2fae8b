package device

import "errors"

var (
	// ErrDeviceUnavailable is returned when the device cannot be queried or
	// does not accept compute work.
	ErrDeviceUnavailable = errors.New("device: unavailable")

	// ErrAllocation is returned when device memory cannot be reserved.
	ErrAllocation = errors.New("device: allocation failed")

	// ErrLaunch is returned when a kernel fails to start or faults while running.
	ErrLaunch = errors.New("device: launch failed")

	// ErrLengthMismatch is returned when a host copy does not match the buffer length.
	ErrLengthMismatch = errors.New("device: length mismatch")

	// ErrBufferFreed is returned when a buffer is used after Free.
	ErrBufferFreed = errors.New("device: buffer already freed")

	// ErrUnsupportedKernel is returned by backends that only run a fixed set of kernels.
	ErrUnsupportedKernel = errors.New("device: unsupported kernel")
)
