//go:build cuda

package device

//go:generate nvcc -O3 -shared -Xcompiler -fPIC -o kernels/libsievekernels.so kernels/sieve.cu

/*
#cgo CFLAGS: -I/opt/cuda/include -I${SRCDIR}/kernels
#cgo LDFLAGS: -L/opt/cuda/lib64 -L${SRCDIR}/kernels -lcudart -lsievekernels -lstdc++ -Wl,-rpath,${SRCDIR}/kernels
#include <stdlib.h>
#include "sieve.h"
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"
)

// CUDADevice runs the kernels compiled into libsievekernels on one GPU.
type CUDADevice struct {
	ordinal   int
	available bool
	name      string
}

func NewCUDADevice(ordinal int) *CUDADevice {
	count := int(C.sieve_device_count())
	d := &CUDADevice{
		ordinal:   ordinal,
		available: ordinal >= 0 && ordinal < count,
	}
	if d.available {
		if capability, err := d.Capability(); err == nil {
			d.name = capability.Name
		}
	}
	return d
}

// Copies a static CUDA error string into a Go error.
func cudaError(msg *C.char) error {
	if msg == nil {
		return nil
	}
	return errors.New(C.GoString(msg))
}

func (d *CUDADevice) Name() string {
	if d.available {
		return "cuda (" + d.name + ")"
	}
	return "cuda (not available)"
}

func (d *CUDADevice) Available() bool { return d.available }
func (d *CUDADevice) Close() error    { return nil }

func (d *CUDADevice) Capability() (Capability, error) {
	if !d.available {
		return Capability{}, fmt.Errorf("%w: no cuda device %d", ErrDeviceUnavailable, d.ordinal)
	}

	var props C.sieve_props
	if err := cudaError(C.sieve_device_props(C.int(d.ordinal), &props)); err != nil {
		return Capability{}, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	return Capability{
		Name:             C.GoString(&props.name[0]),
		Major:            int(props.major),
		Minor:            int(props.minor),
		Mode:             ComputeMode(props.compute_mode),
		MaxLanesPerGroup: int(props.max_threads_per_block),
		MaxGroups:        int(props.max_grid_x),
		TotalMemory:      uint64(props.total_memory),
		Units:            int(props.multiprocessors),
	}, nil
}

func (d *CUDADevice) Alloc(n int) (Buffer, error) {
	if !d.available {
		return nil, ErrDeviceUnavailable
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocation, n)
	}

	var ptr unsafe.Pointer
	if err := cudaError(C.sieve_alloc(C.int(d.ordinal), C.size_t(n), &ptr)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	b := &cudaBuffer{ptr: ptr, n: n}
	if err := b.Zero(); err != nil {
		_ = b.Free()
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	return b, nil
}

func (d *CUDADevice) Launch(cfg LaunchConfig, k Kernel, buf Buffer) (Stream, error) {
	if k == nil || k.Name() != "sieve" {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, ErrUnsupportedKernel)
	}
	cb, ok := buf.(*cudaBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: buffer was not allocated on this device", ErrLaunch)
	}
	if cb.freed {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, ErrBufferFreed)
	}
	capability, err := d.Capability()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(capability); err != nil {
		return nil, err
	}

	err = cudaError(C.sieve_launch(C.int(d.ordinal), (*C.uchar)(cb.ptr), C.size_t(cb.n),
		C.int(cfg.Groups), C.int(cfg.LanesPerGroup)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	return &cudaStream{ordinal: d.ordinal}, nil
}

type cudaStream struct {
	ordinal int
}

func (s *cudaStream) Synchronize() error {
	if err := cudaError(C.sieve_synchronize(C.int(s.ordinal))); err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	return nil
}

type cudaBuffer struct {
	ptr   unsafe.Pointer
	n     int
	freed bool
}

func (b *cudaBuffer) Len() int { return b.n }

func (b *cudaBuffer) Zero() error {
	if b.freed {
		return ErrBufferFreed
	}
	return cudaError(C.sieve_memset(b.ptr, C.size_t(b.n)))
}

func (b *cudaBuffer) CopyToHost(dst []byte) error {
	if b.freed {
		return ErrBufferFreed
	}
	if len(dst) != b.n {
		return fmt.Errorf("%w: host %d, device %d", ErrLengthMismatch, len(dst), b.n)
	}
	if b.n == 0 {
		return nil
	}
	return cudaError(C.sieve_copy_to_host(unsafe.Pointer(&dst[0]), b.ptr, C.size_t(b.n)))
}

func (b *cudaBuffer) CopyFromHost(src []byte) error {
	if b.freed {
		return ErrBufferFreed
	}
	if len(src) != b.n {
		return fmt.Errorf("%w: host %d, device %d", ErrLengthMismatch, len(src), b.n)
	}
	if b.n == 0 {
		return nil
	}
	return cudaError(C.sieve_copy_from_host(b.ptr, unsafe.Pointer(&src[0]), C.size_t(b.n)))
}

func (b *cudaBuffer) Free() error {
	if b.freed {
		return ErrBufferFreed
	}
	b.freed = true
	return cudaError(C.sieve_free(b.ptr))
}
