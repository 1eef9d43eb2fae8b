package device

import "fmt"

// Backend names accepted by Open.
const (
	BackendAuto = "auto"
	BackendHost = "host"
	BackendCUDA = "cuda"
)

// Open returns the device for backend. Host options are ignored for CUDA.
func Open(backend string, opts ...HostOption) (Device, error) {
	switch backend {
	case BackendAuto, "":
		return AutoSelect(opts...), nil
	case BackendHost:
		return NewHostDevice(opts...), nil
	case BackendCUDA:
		cuda := NewCUDADevice(0)
		if !cuda.Available() {
			return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, cuda.Name())
		}
		return cuda, nil
	default:
		return nil, fmt.Errorf("unknown device backend %q (available: %s, %s, %s)",
			backend, BackendAuto, BackendHost, BackendCUDA)
	}
}

// AutoSelect picks CUDA when a device is present, else the host.
func AutoSelect(opts ...HostOption) Device {
	cuda := NewCUDADevice(0)
	if cuda.Available() {
		return cuda
	}
	return NewHostDevice(opts...)
}
