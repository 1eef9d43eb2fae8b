package sieve

import (
	"math"

	"github.com/dhruv3/CudaCode/internal/device"
)

// isqrt returns floor(sqrt(n)) exactly for n >= 0.
func isqrt(n int) int {
	if n < 2 {
		return n
	}
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// launchFor sizes a launch for bound n with at most width lanes per group.
// Global lane ids cover 0..root so that lane 0 is the designated lane and
// every divisor candidate 2..root has exactly one lane.
func launchFor(n, width int) device.LaunchConfig {
	lanes := isqrt(n) + 1
	if width < 1 {
		width = 1
	}
	perGroup := min(width, lanes)
	return device.LaunchConfig{
		Groups:        (lanes + perGroup - 1) / perGroup,
		LanesPerGroup: perGroup,
	}
}
