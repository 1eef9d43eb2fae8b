package probe

import (
	"errors"
	"testing"

	"github.com/dhruv3/CudaCode/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeWidthByVersion(t *testing.T) {
	tests := []struct {
		major, minor int
		want         int
	}{
		{1, 0, 512},
		{1, 3, 512},
		{2, 0, 1024},
		{3, 5, 1024},
		{8, 6, 1024},
	}

	for _, tt := range tests {
		dev := device.NewHostDevice(device.WithComputeVersion(tt.major, tt.minor))
		width, err := Probe(dev)
		require.NoError(t, err)
		assert.Equal(t, tt.want, width, "compute %d.%d", tt.major, tt.minor)
	}
}

func TestProbeClampsToDeviceLimit(t *testing.T) {
	dev := device.NewHostDevice(
		device.WithComputeVersion(7, 0),
		device.WithMaxLanesPerGroup(256),
	)

	res, err := Run(dev, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 256, res.Width)
	assert.Equal(t, 7, res.Capability.Major)
}

func TestPolicyWidth(t *testing.T) {
	p := Policy{VersionThreshold: 5, WideWidth: 64, NarrowWidth: 0}

	assert.Equal(t, 64, p.Width(device.Capability{Major: 5}))
	assert.Equal(t, 1, p.Width(device.Capability{Major: 4}))
	assert.Equal(t, 32, p.Width(device.Capability{Major: 9, MaxLanesPerGroup: 32}))
}

func TestProbeProhibited(t *testing.T) {
	dev := device.NewHostDevice(device.WithComputeMode(device.ComputeProhibited))

	_, err := Probe(dev)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
}

func TestProbeOtherModesAllowed(t *testing.T) {
	for _, mode := range []device.ComputeMode{device.ComputeDefault, device.ComputeExclusive, device.ComputeExclusiveProcess} {
		dev := device.NewHostDevice(device.WithComputeMode(mode), device.WithComputeVersion(2, 0))
		width, err := Probe(dev)
		require.NoError(t, err, mode.String())
		assert.Equal(t, 1024, width)
	}
}

func TestProbeQueryFailure(t *testing.T) {
	dev := device.NewFaultDevice(device.NewHostDevice())
	dev.CapabilityErr = errors.New("driver gone")

	_, err := Probe(dev)
	require.ErrorIs(t, err, device.ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "driver gone")
	assert.Zero(t, dev.Calls("alloc"))
}

func TestProbeUnavailableNotRewrapped(t *testing.T) {
	_, err := Probe(device.NewCUDADevice(0))
	if err == nil {
		t.Skip("cuda device present")
	}
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
}
