package viz

import (
	"fmt"
	"math"
	"sort"

	"github.com/guptarohit/asciigraph"
)

// PrimeCountingSeries samples pi(x), the number of primes <= x, and the
// estimate x/ln(x) at points evenly spaced x values in [2, bound).
func PrimeCountingSeries(primes []int, bound, points int) (pi, estimate []float64) {
	if bound <= 2 || points < 2 {
		return nil, nil
	}

	pi = make([]float64, points)
	estimate = make([]float64, points)
	span := float64(bound - 3)
	for i := 0; i < points; i++ {
		x := 2 + int(span*float64(i)/float64(points-1))
		pi[i] = float64(sort.SearchInts(primes, x+1))
		estimate[i] = float64(x) / math.Log(float64(x))
	}
	return pi, estimate
}

// PlotPrimeCounting charts pi(x) against x/ln(x).
func PlotPrimeCounting(primes []int, bound int) string {
	pi, estimate := PrimeCountingSeries(primes, bound, 72)
	if pi == nil {
		return Subtle.Render("no primes below " + fmt.Sprint(bound))
	}
	return asciigraph.PlotMany([][]float64{pi, estimate},
		asciigraph.Height(12),
		asciigraph.Width(72),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.Yellow),
		asciigraph.Caption(fmt.Sprintf("pi(x) (green) vs x/ln x (yellow), x < %d", bound)),
	)
}

// PlotThroughput charts sieved integers per second for each benchmarked bound.
func PlotThroughput(rates []float64) string {
	if len(rates) < 2 {
		return ""
	}
	return asciigraph.Plot(rates,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("throughput (integers/sec) by bound"),
	)
}
