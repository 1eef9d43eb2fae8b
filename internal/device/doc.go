// Package device provides the accelerator runtime the sieve runs on.
//
// A [Device] exposes the five primitives a data-parallel launch needs:
//
//   - capability query ([Device.Capability])
//   - allocation, zeroing and release of device memory ([Device.Alloc], [Buffer])
//   - kernel launch over a grid of lanes ([Device.Launch])
//   - a blocking completion wait ([Stream.Synchronize])
//   - host/device copies ([Buffer.CopyToHost], [Buffer.CopyFromHost])
//
// Two backends are available:
//
//   - host: lanes run on a bounded pool of goroutines
//   - cuda: lanes run on an NVIDIA GPU (requires building with -tags cuda,
//     after `go generate -tags cuda ./internal/device` has built the kernels)
//
// [Open] selects a backend by name; "auto" prefers CUDA when a device is present.
//
//	dev, err := device.Open("auto")
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
// # Memory model
//
// Lanes of one launch share the buffer without synchronization. Kernels are
// expected to keep their writes idempotent; the only ordering guarantee is that
// every lane has finished once Synchronize returns.
package device
