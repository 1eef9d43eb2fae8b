package device

import (
	"fmt"
	"sync"
)

// FaultDevice wraps a Device and fails selected operations with the
// configured errors. It counts calls per operation and tracks buffers that
// have been allocated but not freed.
type FaultDevice struct {
	Device

	CapabilityErr error
	AllocErr      error
	LaunchErr     error
	SyncErr       error
	CopyErr       error

	mu          sync.Mutex
	calls       map[string]int
	outstanding int
}

func NewFaultDevice(inner Device) *FaultDevice {
	return &FaultDevice{Device: inner, calls: make(map[string]int)}
}

// Calls reports how many times op was invoked. Ops are "capability",
// "alloc", "launch", "sync", "copy" and "free".
func (f *FaultDevice) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Outstanding reports buffers allocated through f and not yet freed.
func (f *FaultDevice) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outstanding
}

func (f *FaultDevice) record(op string, delta int) {
	f.mu.Lock()
	f.calls[op]++
	f.outstanding += delta
	f.mu.Unlock()
}

func (f *FaultDevice) Name() string {
	return "fault(" + f.Device.Name() + ")"
}

func (f *FaultDevice) Capability() (Capability, error) {
	f.record("capability", 0)
	if f.CapabilityErr != nil {
		return Capability{}, f.CapabilityErr
	}
	return f.Device.Capability()
}

func (f *FaultDevice) Alloc(n int) (Buffer, error) {
	if f.AllocErr != nil {
		f.record("alloc", 0)
		return nil, f.AllocErr
	}
	b, err := f.Device.Alloc(n)
	if err != nil {
		f.record("alloc", 0)
		return nil, err
	}
	f.record("alloc", 1)
	return &faultBuffer{Buffer: b, dev: f}, nil
}

func (f *FaultDevice) Launch(cfg LaunchConfig, k Kernel, buf Buffer) (Stream, error) {
	f.record("launch", 0)
	if f.LaunchErr != nil {
		return nil, f.LaunchErr
	}
	fb, ok := buf.(*faultBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: buffer was not allocated on this device", ErrLaunch)
	}
	s, err := f.Device.Launch(cfg, k, fb.Buffer)
	if err != nil {
		return nil, err
	}
	return &faultStream{Stream: s, dev: f}, nil
}

type faultStream struct {
	Stream
	dev *FaultDevice
}

func (s *faultStream) Synchronize() error {
	s.dev.record("sync", 0)
	// The real launch is drained before an injected failure is reported.
	if err := s.Stream.Synchronize(); err != nil {
		return err
	}
	return s.dev.SyncErr
}

type faultBuffer struct {
	Buffer
	dev *FaultDevice
}

func (b *faultBuffer) CopyToHost(dst []byte) error {
	b.dev.record("copy", 0)
	if b.dev.CopyErr != nil {
		return b.dev.CopyErr
	}
	return b.Buffer.CopyToHost(dst)
}

func (b *faultBuffer) Free() error {
	if err := b.Buffer.Free(); err != nil {
		b.dev.record("free", 0)
		return err
	}
	b.dev.record("free", -1)
	return nil
}
