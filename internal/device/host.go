package device

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/dhruv3/CudaCode/internal/logutil"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHostMemory    = 1 << 30
	DefaultHostMaxLanes  = 1024
	DefaultHostMaxGroups = 65535
)

// HostDevice runs kernels on the CPU. Lanes are spread over a fixed number
// of worker goroutines; the launch completes when every worker has drained
// its lanes.
type HostDevice struct {
	workers  int
	memory   uint64
	maxLanes int
	mode     ComputeMode

	versionSet   bool
	major, minor int

	order func(lanes int) []int
	log   *slog.Logger

	mu        sync.Mutex
	allocated uint64
}

type HostOption func(*HostDevice)

// WithWorkers sets the number of goroutines lanes are spread over.
func WithWorkers(n int) HostOption {
	return func(d *HostDevice) { d.workers = n }
}

// WithMemoryLimit caps the bytes that may be allocated at once.
func WithMemoryLimit(bytes uint64) HostOption {
	return func(d *HostDevice) { d.memory = bytes }
}

func WithMaxLanesPerGroup(n int) HostOption {
	return func(d *HostDevice) { d.maxLanes = n }
}

func WithComputeMode(m ComputeMode) HostOption {
	return func(d *HostDevice) { d.mode = m }
}

// WithComputeVersion overrides the capability version detected from CPU features.
func WithComputeVersion(major, minor int) HostOption {
	return func(d *HostDevice) {
		d.versionSet = true
		d.major, d.minor = major, minor
	}
}

// WithLaneOrder makes launches run one lane at a time, in the order returned
// by order. order must return a permutation of [0, lanes).
func WithLaneOrder(order func(lanes int) []int) HostOption {
	return func(d *HostDevice) { d.order = order }
}

// WithHostLogger sets where launch traces go. The default logger is used otherwise.
func WithHostLogger(l *slog.Logger) HostOption {
	return func(d *HostDevice) { d.log = l }
}

func NewHostDevice(opts ...HostOption) *HostDevice {
	d := &HostDevice{
		workers:  runtime.NumCPU(),
		memory:   DefaultHostMemory,
		maxLanes: DefaultHostMaxLanes,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = 1
	}
	return d
}

func (d *HostDevice) Name() string    { return "host" }
func (d *HostDevice) Available() bool { return true }
func (d *HostDevice) Close() error    { return nil }

func (d *HostDevice) Capability() (Capability, error) {
	major, minor, features := hostComputeVersion()
	if d.versionSet {
		major, minor = d.major, d.minor
	}
	return Capability{
		Name:             fmt.Sprintf("host (%s/%s)", runtime.GOOS, runtime.GOARCH),
		Major:            major,
		Minor:            minor,
		Mode:             d.mode,
		MaxLanesPerGroup: d.maxLanes,
		MaxGroups:        DefaultHostMaxGroups,
		TotalMemory:      d.memory,
		Units:            d.workers,
		Features:         features,
	}, nil
}

func (d *HostDevice) Alloc(n int) (Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocation, n)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	free := d.memory - d.allocated
	if uint64(n) > free {
		return nil, fmt.Errorf("%w: requested %d bytes, %d of %d free", ErrAllocation, n, free, d.memory)
	}
	d.allocated += uint64(n)

	return &hostBuffer{dev: d, data: make([]byte, n)}, nil
}

// Allocated reports the number of bytes currently reserved.
func (d *HostDevice) Allocated() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

func (d *HostDevice) release(n int) {
	d.mu.Lock()
	d.allocated -= uint64(n)
	d.mu.Unlock()
}

func (d *HostDevice) Launch(cfg LaunchConfig, k Kernel, buf Buffer) (Stream, error) {
	if k == nil {
		return nil, fmt.Errorf("%w: nil kernel", ErrLaunch)
	}
	hb, ok := buf.(*hostBuffer)
	if !ok || hb.dev != d {
		return nil, fmt.Errorf("%w: buffer was not allocated on this device", ErrLaunch)
	}
	if hb.freed {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, ErrBufferFreed)
	}
	capability, _ := d.Capability()
	if err := cfg.Validate(capability); err != nil {
		return nil, err
	}

	var order []int
	if d.order != nil {
		order = d.order(cfg.Lanes())
		if err := checkPermutation(order, cfg.Lanes()); err != nil {
			return nil, err
		}
	}

	logutil.Trace(d.log, "host launch", "shape", cfg, "lanes", cfg.Lanes(), "workers", d.workers, "ordered", order != nil)

	s := &hostStream{done: make(chan struct{})}
	mem := hb.data
	go func() {
		defer close(s.done)
		if order != nil {
			s.err = runOrdered(cfg, k, mem, order)
			return
		}
		s.err = d.runParallel(cfg, k, mem)
	}()

	return s, nil
}

func (d *HostDevice) runParallel(cfg LaunchConfig, k Kernel, mem []byte) error {
	lanes := cfg.Lanes()
	workers := d.workers
	if workers > lanes {
		workers = lanes
	}

	// Lanes are dealt out with a stride so the expensive low-index lanes
	// land on different workers.
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for global := w; global < lanes; global += workers {
				if err := runLane(cfg, k, mem, global); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func runOrdered(cfg LaunchConfig, k Kernel, mem []byte, order []int) error {
	for _, global := range order {
		if err := runLane(cfg, k, mem, global); err != nil {
			return err
		}
	}
	return nil
}

func runLane(cfg LaunchConfig, k Kernel, mem []byte, global int) (err error) {
	id := cfg.LaneAt(global)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: kernel %s faulted in lane (%d,%d): %v", ErrLaunch, k.Name(), id.Group, id.Thread, r)
		}
	}()
	k.Lane(id, mem)
	return nil
}

func checkPermutation(order []int, lanes int) error {
	if len(order) != lanes {
		return fmt.Errorf("%w: lane order has %d entries for %d lanes", ErrLaunch, len(order), lanes)
	}
	seen := make([]bool, lanes)
	for _, global := range order {
		if global < 0 || global >= lanes || seen[global] {
			return fmt.Errorf("%w: lane order is not a permutation (lane %d)", ErrLaunch, global)
		}
		seen[global] = true
	}
	return nil
}

type hostStream struct {
	done chan struct{}
	err  error
}

func (s *hostStream) Synchronize() error {
	<-s.done
	return s.err
}

type hostBuffer struct {
	dev   *HostDevice
	data  []byte
	freed bool
}

func (b *hostBuffer) Len() int {
	return len(b.data)
}

func (b *hostBuffer) Zero() error {
	if b.freed {
		return ErrBufferFreed
	}
	clear(b.data)
	return nil
}

func (b *hostBuffer) CopyToHost(dst []byte) error {
	if b.freed {
		return ErrBufferFreed
	}
	if len(dst) != len(b.data) {
		return fmt.Errorf("%w: host %d, device %d", ErrLengthMismatch, len(dst), len(b.data))
	}
	copy(dst, b.data)
	return nil
}

func (b *hostBuffer) CopyFromHost(src []byte) error {
	if b.freed {
		return ErrBufferFreed
	}
	if len(src) != len(b.data) {
		return fmt.Errorf("%w: host %d, device %d", ErrLengthMismatch, len(src), len(b.data))
	}
	copy(b.data, src)
	return nil
}

func (b *hostBuffer) Free() error {
	if b.freed {
		return ErrBufferFreed
	}
	b.freed = true
	b.dev.release(len(b.data))
	b.data = nil
	return nil
}
