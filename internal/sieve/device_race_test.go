//go:build race

package sieve_test

import "github.com/dhruv3/CudaCode/internal/device"

// Concurrent lanes store to shared flags without synchronization, which the
// race detector reports. Under -race lanes run one at a time instead.
func newTestDevice(opts ...device.HostOption) *device.HostDevice {
	base := []device.HostOption{device.WithComputeVersion(7, 0), device.WithLaneOrder(identity)}
	return device.NewHostDevice(append(base, opts...)...)
}

func identity(lanes int) []int {
	order := make([]int, lanes)
	for i := range order {
		order[i] = i
	}
	return order
}
