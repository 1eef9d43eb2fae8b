package sieve

import (
	"errors"
	"fmt"

	"github.com/dhruv3/CudaCode/internal/device"
)

// ErrInvalidArgument is returned for bounds that cannot be sieved. It is
// reported before the device is touched.
var ErrInvalidArgument = errors.New("sieve: invalid argument")

// Step names a stage of a sieve call.
type Step string

const (
	StepProbe  Step = "probe"
	StepAlloc  Step = "alloc"
	StepLaunch Step = "launch"
	StepSync   Step = "sync"
	StepCopy   Step = "copy"
	StepFree   Step = "free"
)

// StepError wraps a device failure with the step and bound it happened at.
type StepError struct {
	Step  Step
	Bound int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("sieve: %s failed for bound %d: %v", e.Step, e.Bound, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a device failure or a failed sieve step. Fatal failures are not
// retried and leave no usable result.
func IsFatal(err error) bool {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return true
	}
	return errors.Is(err, device.ErrDeviceUnavailable) ||
		errors.Is(err, device.ErrAllocation) ||
		errors.Is(err, device.ErrLaunch)
}
