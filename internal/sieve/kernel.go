package sieve

import "github.com/dhruv3/CudaCode/internal/device"

// KernelName is the name the marking kernel is registered under on devices
// that dispatch by name.
const KernelName = "sieve"

const (
	prime     byte = 0
	composite byte = 1
)

type laneRole int

const (
	roleEliminateEvens laneRole = iota
	roleMarkMultiples
)

func roleOf(id device.LaneID) laneRole {
	if id.Group == 0 && id.Thread == 0 {
		return roleEliminateEvens
	}
	return roleMarkMultiples
}

// markKernel marks composites in a flag array of length n.
//
// The kernel only ever stores composite, and only into indices that are
// composite. Lanes share the flag array without synchronization; see the
// package documentation before changing what is written.
type markKernel struct {
	n    int
	root int
}

func newMarkKernel(n int) markKernel {
	return markKernel{n: n, root: isqrt(n)}
}

func (k markKernel) Name() string { return KernelName }

func (k markKernel) Lane(id device.LaneID, flags []byte) {
	switch roleOf(id) {
	case roleEliminateEvens:
		k.eliminateEvens(flags)
	case roleMarkMultiples:
		k.markMultiples(id.Global(), flags)
	}
}

func (k markKernel) eliminateEvens(flags []byte) {
	flags[0] = composite
	flags[1] = composite
	for j := 4; j < k.n; j += 2 {
		flags[j] = composite
	}
}

func (k markKernel) markMultiples(index int, flags []byte) {
	if index <= 1 || index > k.root {
		return
	}
	if flags[index] != prime {
		return
	}
	for j := index * index; j < k.n; j += index {
		flags[j] = composite
	}
}
