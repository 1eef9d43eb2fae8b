// Package probe derives a kernel launch width from a device's capability
// descriptor.
package probe

import (
	"errors"
	"fmt"

	"github.com/dhruv3/CudaCode/internal/device"
)

const (
	DefaultVersionThreshold = 2
	DefaultWideWidth        = 1024
	DefaultNarrowWidth      = 512
)

// Policy maps a compute capability onto a lane width. Devices whose major
// version is at least VersionThreshold get WideWidth, older ones NarrowWidth.
type Policy struct {
	VersionThreshold int `yaml:"version_threshold"`
	WideWidth        int `yaml:"wide_width"`
	NarrowWidth      int `yaml:"narrow_width"`
}

func DefaultPolicy() Policy {
	return Policy{
		VersionThreshold: DefaultVersionThreshold,
		WideWidth:        DefaultWideWidth,
		NarrowWidth:      DefaultNarrowWidth,
	}
}

// Result is the outcome of one probe.
type Result struct {
	Width      int
	Capability device.Capability
}

// Probe returns the lane width for dev under the default policy.
func Probe(dev device.Device) (int, error) {
	res, err := Run(dev, DefaultPolicy())
	if err != nil {
		return 0, err
	}
	return res.Width, nil
}

// Run queries dev and applies policy. It fails with device.ErrDeviceUnavailable
// if the query fails or the device prohibits compute work.
func Run(dev device.Device, policy Policy) (Result, error) {
	capability, err := dev.Capability()
	if err != nil {
		if errors.Is(err, device.ErrDeviceUnavailable) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: capability query: %v", device.ErrDeviceUnavailable, err)
	}
	if capability.Mode == device.ComputeProhibited {
		return Result{}, fmt.Errorf("%w: %s is in %s compute mode",
			device.ErrDeviceUnavailable, capability.Name, capability.Mode)
	}

	return Result{
		Width:      policy.Width(capability),
		Capability: capability,
	}, nil
}

// Width applies the policy to capability. The result is at least 1 and never
// exceeds the device's lanes-per-group limit.
func (p Policy) Width(capability device.Capability) int {
	width := p.NarrowWidth
	if capability.Major >= p.VersionThreshold {
		width = p.WideWidth
	}
	if capability.MaxLanesPerGroup > 0 && width > capability.MaxLanesPerGroup {
		width = capability.MaxLanesPerGroup
	}
	if width < 1 {
		width = 1
	}
	return width
}
