package device

import "fmt"

// Device is an accelerator the host can allocate on and launch kernels onto.
type Device interface {
	Name() string
	Available() bool
	// Capability reads the device's capability descriptor.
	Capability() (Capability, error)
	// Alloc reserves a zero-initialized region of n bytes.
	Alloc(n int) (Buffer, error)
	// Launch starts k over every lane of cfg. It returns once the launch has
	// been issued; use the returned Stream to wait for completion.
	Launch(cfg LaunchConfig, k Kernel, buf Buffer) (Stream, error)
	Close() error
}

// Buffer is a region of device memory.
type Buffer interface {
	Len() int
	Zero() error
	// CopyToHost copies the whole buffer into dst, which must have the same length.
	CopyToHost(dst []byte) error
	// CopyFromHost copies src, which must have the same length, into the buffer.
	CopyFromHost(src []byte) error
	Free() error
}

// Stream is an issued launch.
type Stream interface {
	// Synchronize blocks until every lane of the launch has finished and
	// reports any fault raised while running.
	Synchronize() error
}

// Kernel is a program executed once per lane.
//
// Backends that cannot run Go code on the device dispatch on Name instead of
// calling Lane.
type Kernel interface {
	Name() string
	Lane(id LaneID, mem []byte)
}

// LaneID locates one lane inside a launch grid.
type LaneID struct {
	Group    int
	Thread   int
	GroupDim int
}

// Global returns the dense lane index across all groups.
func (l LaneID) Global() int {
	return l.Group*l.GroupDim + l.Thread
}

// LaunchConfig is the shape of a launch.
type LaunchConfig struct {
	Groups        int
	LanesPerGroup int
}

// Lanes returns the total number of lanes the launch creates.
func (c LaunchConfig) Lanes() int {
	return c.Groups * c.LanesPerGroup
}

// LaneAt returns the identity of the lane with the given global index.
func (c LaunchConfig) LaneAt(global int) LaneID {
	return LaneID{
		Group:    global / c.LanesPerGroup,
		Thread:   global % c.LanesPerGroup,
		GroupDim: c.LanesPerGroup,
	}
}

func (c LaunchConfig) String() string {
	return fmt.Sprintf("%dx%d", c.Groups, c.LanesPerGroup)
}

// Validate checks the shape against the limits in capability.
func (c LaunchConfig) Validate(capability Capability) error {
	if c.Groups < 1 || c.LanesPerGroup < 1 {
		return fmt.Errorf("%w: empty launch %s", ErrLaunch, c)
	}
	if capability.MaxLanesPerGroup > 0 && c.LanesPerGroup > capability.MaxLanesPerGroup {
		return fmt.Errorf("%w: %d lanes per group exceeds device limit %d",
			ErrLaunch, c.LanesPerGroup, capability.MaxLanesPerGroup)
	}
	if capability.MaxGroups > 0 && c.Groups > capability.MaxGroups {
		return fmt.Errorf("%w: %d groups exceeds device limit %d",
			ErrLaunch, c.Groups, capability.MaxGroups)
	}
	return nil
}

// ComputeMode mirrors the driver's compute mode for a device.
type ComputeMode int

const (
	ComputeDefault ComputeMode = iota
	ComputeExclusive
	ComputeProhibited
	ComputeExclusiveProcess
)

func (m ComputeMode) String() string {
	switch m {
	case ComputeDefault:
		return "default"
	case ComputeExclusive:
		return "exclusive"
	case ComputeProhibited:
		return "prohibited"
	case ComputeExclusiveProcess:
		return "exclusive-process"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Capability describes a device.
type Capability struct {
	Name  string
	Major int // Major compute capability version
	Minor int // Minor compute capability version
	Mode  ComputeMode

	MaxLanesPerGroup int
	MaxGroups        int
	TotalMemory      uint64
	Units            int // multiprocessors, or worker goroutines on the host

	Features []string
}

// Version formats the compute capability as "major.minor".
func (c Capability) Version() string {
	return fmt.Sprintf("%d.%d", c.Major, c.Minor)
}
