// Package sieve computes primes with a Sieve of Eratosthenes launched as a
// data-parallel kernel on a [device.Device].
//
// One launch covers every candidate divisor:
//
//   - lane (0,0) marks 0, 1 and every even number from 4 upwards, serially
//   - every other lane owns the divisor equal to its global index and, if
//     that divisor is still unmarked, marks its multiples from index*index
//
// # Concurrent marking
//
// Lanes write the shared flag array without locks, atomics or barriers. This
// is sound only because every write stores the same value (composite) into
// an index that really is composite, and flags never go back to prime. A
// lane that reads a stale "prime" flag for its divisor does a redundant pass
// and nothing worse. Any change to the kernel that writes a different value,
// or writes to an index that might be prime, breaks this.
//
// # Example
//
//	dev := device.NewHostDevice()
//	eng := sieve.New(dev)
//	primes, err := sieve.GeneratePrimesBelow(ctx, eng, 102)
package sieve
