package sieve

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dhruv3/CudaCode/internal/device"
	"github.com/dhruv3/CudaCode/internal/probe"
)

// DefaultMaxBound is the largest bound accepted unless WithMaxBound says
// otherwise. Device kernels index the flag array with 32-bit lanes.
const DefaultMaxBound = math.MaxInt32

// Engine sieves on one device. It keeps no per-call state, so concurrent
// calls are safe as long as the device has memory for each of them.
type Engine struct {
	dev      device.Device
	policy   probe.Policy
	width    int
	maxBound int
	log      *slog.Logger
}

type Option func(*Engine)

// WithPolicy sets the policy used to turn the device capability into a width.
func WithPolicy(p probe.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLaneWidth fixes the lanes per group instead of using the probed width.
// Zero keeps the probed width. Widths above the device limit are clamped to it.
func WithLaneWidth(width int) Option {
	return func(e *Engine) { e.width = width }
}

func WithMaxBound(n int) Option {
	return func(e *Engine) { e.maxBound = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func New(dev device.Device, opts ...Option) *Engine {
	e := &Engine{
		dev:      dev,
		policy:   probe.DefaultPolicy(),
		maxBound: DefaultMaxBound,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Device() device.Device {
	return e.dev
}

// Result is one completed sieve.
type Result struct {
	Bound      int
	Flags      []byte
	Launch     device.LaunchConfig
	Width      int
	Capability device.Capability
	Elapsed    time.Duration
}

func (r *Result) Primes() []int {
	return Primes(r.Flags)
}

// Sieve returns n flags where flag i is 0 exactly when i is prime.
func (e *Engine) Sieve(ctx context.Context, n int) ([]byte, error) {
	res, err := e.Run(ctx, n)
	if err != nil {
		return nil, err
	}
	return res.Flags, nil
}

// Run sieves [0, n) on the engine's device. The call blocks until the launch
// has completed and the flags are back on the host. Device memory is released
// before Run returns, whether or not it succeeds.
func (e *Engine) Run(ctx context.Context, n int) (res *Result, err error) {
	if err := e.validate(n); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	probed, err := probe.Run(e.dev, e.policy)
	if err != nil {
		return nil, &StepError{Step: StepProbe, Bound: n, Err: err}
	}
	capability := probed.Capability
	if capability.TotalMemory > 0 && uint64(n) > capability.TotalMemory {
		return nil, fmt.Errorf("%w: bound %d does not fit in %d bytes of device memory",
			ErrInvalidArgument, n, capability.TotalMemory)
	}

	width := probed.Width
	if e.width > 0 {
		width = e.width
		if capability.MaxLanesPerGroup > 0 {
			width = min(width, capability.MaxLanesPerGroup)
		}
	}
	cfg := launchFor(n, width)
	e.log.Debug("probed device", "device", capability.Name, "compute", capability.Version(),
		"mode", capability.Mode, "width", width)

	buf, err := e.dev.Alloc(n)
	if err != nil {
		return nil, &StepError{Step: StepAlloc, Bound: n, Err: err}
	}
	defer func() {
		if ferr := buf.Free(); ferr != nil && err == nil {
			res, err = nil, &StepError{Step: StepFree, Bound: n, Err: ferr}
		}
	}()
	if err := buf.Zero(); err != nil {
		return nil, &StepError{Step: StepAlloc, Bound: n, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.log.Info("launching sieve kernel", "bound", n, "groups", cfg.Groups, "lanes_per_group", cfg.LanesPerGroup)
	stream, err := e.dev.Launch(cfg, newMarkKernel(n), buf)
	if err != nil {
		return nil, &StepError{Step: StepLaunch, Bound: n, Err: err}
	}
	if err := stream.Synchronize(); err != nil {
		return nil, &StepError{Step: StepSync, Bound: n, Err: err}
	}

	flags := make([]byte, n)
	if err := buf.CopyToHost(flags); err != nil {
		return nil, &StepError{Step: StepCopy, Bound: n, Err: err}
	}

	elapsed := time.Since(start)
	e.log.Debug("sieve complete", "bound", n, "elapsed", elapsed)

	return &Result{
		Bound:      n,
		Flags:      flags,
		Launch:     cfg,
		Width:      width,
		Capability: capability,
		Elapsed:    elapsed,
	}, nil
}

func (e *Engine) validate(n int) error {
	if n < 2 {
		return fmt.Errorf("%w: bound %d is below 2", ErrInvalidArgument, n)
	}
	if n > e.maxBound {
		return fmt.Errorf("%w: bound %d exceeds maximum %d", ErrInvalidArgument, n, e.maxBound)
	}
	return nil
}
