//go:build !cuda

package device

import "fmt"

type CUDADevice struct {
	ordinal int
}

func NewCUDADevice(ordinal int) *CUDADevice {
	return &CUDADevice{ordinal: ordinal}
}

func (d *CUDADevice) Name() string    { return "cuda (not available)" }
func (d *CUDADevice) Available() bool { return false }
func (d *CUDADevice) Close() error    { return nil }

func (d *CUDADevice) Capability() (Capability, error) {
	return Capability{}, fmt.Errorf("%w: built without cuda support", ErrDeviceUnavailable)
}

func (d *CUDADevice) Alloc(n int) (Buffer, error) {
	return nil, ErrDeviceUnavailable
}

func (d *CUDADevice) Launch(cfg LaunchConfig, k Kernel, buf Buffer) (Stream, error) {
	return nil, ErrDeviceUnavailable
}
