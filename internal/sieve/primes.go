package sieve

import (
	"context"
	"fmt"
)

// GeneratePrimesBelow returns the primes in [0, n) in increasing order.
func GeneratePrimesBelow(ctx context.Context, eng *Engine, n int) ([]int, error) {
	flags, err := eng.Sieve(ctx, n)
	if err != nil {
		return nil, err
	}
	return Primes(flags), nil
}

// Primes lists the indices of flags that are marked prime.
func Primes(flags []byte) []int {
	primes := make([]int, 0, Count(flags))
	for i := 2; i < len(flags); i++ {
		if flags[i] == prime {
			primes = append(primes, i)
		}
	}
	return primes
}

func Count(flags []byte) int {
	count := 0
	for i := 2; i < len(flags); i++ {
		if flags[i] == prime {
			count++
		}
	}
	return count
}

// Reference sieves [0, n) serially on the host, using the same flag
// convention as the device kernel.
func Reference(n int) []byte {
	if n < 0 {
		n = 0
	}
	flags := make([]byte, n)
	for i := 0; i < n && i < 2; i++ {
		flags[i] = composite
	}
	for p := 2; p*p < n; p++ {
		if flags[p] != prime {
			continue
		}
		for j := p * p; j < n; j += p {
			flags[j] = composite
		}
	}
	return flags
}

// Verify checks flags against a serial sieve of the same length.
func Verify(flags []byte) error {
	want := Reference(len(flags))
	for i := range flags {
		if flags[i] != want[i] {
			return fmt.Errorf("sieve: flag %d is %d, want %d", i, flags[i], want[i])
		}
	}
	return nil
}
