//go:build !race

package sieve_test

import "github.com/dhruv3/CudaCode/internal/device"

// newTestDevice returns a host device that runs lanes concurrently, the way
// the kernel runs on real hardware.
func newTestDevice(opts ...device.HostOption) *device.HostDevice {
	base := []device.HostOption{device.WithComputeVersion(7, 0), device.WithWorkers(8)}
	return device.NewHostDevice(append(base, opts...)...)
}
