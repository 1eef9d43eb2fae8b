package sieve_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/dhruv3/CudaCode/internal/device"
	"github.com/dhruv3/CudaCode/internal/sieve"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var primesBelow102 = []int{
	2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61, 67, 71,
	73, 79, 83, 89, 97, 101,
}

var errInjected = errors.New("injected")

var _ = Describe("Engine", func() {
	var (
		ctx context.Context
		eng *sieve.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = sieve.New(newTestDevice())
	})

	DescribeTable("primes below N",
		func(n int, want []int) {
			primes, err := sieve.GeneratePrimesBelow(ctx, eng, n)
			Expect(err).NotTo(HaveOccurred())
			Expect(primes).To(Equal(want))
		},
		Entry("N=2 has no primes", 2, []int{}),
		Entry("N=3", 3, []int{2}),
		Entry("N=10", 10, []int{2, 3, 5, 7}),
		Entry("N=50 marks 49", 50, []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47}),
		Entry("N=102", 102, primesBelow102),
	)

	It("returns n flags with 0 and 1 composite", func() {
		flags, err := eng.Sieve(ctx, 102)
		Expect(err).NotTo(HaveOccurred())
		Expect(flags).To(HaveLen(102))
		Expect(flags[0]).To(BeEquivalentTo(1))
		Expect(flags[1]).To(BeEquivalentTo(1))
		Expect(flags[2]).To(BeEquivalentTo(0))
		Expect(flags[100]).To(BeEquivalentTo(1))
		Expect(flags[101]).To(BeEquivalentTo(0))
	})

	It("reports the launch it used", func() {
		res, err := eng.Run(ctx, 102)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Bound).To(Equal(102))
		Expect(res.Width).To(Equal(1024))
		Expect(res.Launch).To(Equal(device.LaunchConfig{Groups: 1, LanesPerGroup: 11}))
		Expect(res.Capability.Version()).To(Equal("7.0"))
		Expect(res.Primes()).To(Equal(primesBelow102))
		Expect(eng.Device()).NotTo(BeNil())
	})

	It("uses the narrow width on older devices", func() {
		eng = sieve.New(newTestDevice(device.WithComputeVersion(1, 1)))
		res, err := eng.Run(ctx, 1_000_000)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Width).To(Equal(512))
		Expect(res.Launch).To(Equal(device.LaunchConfig{Groups: 2, LanesPerGroup: 512}))
		Expect(sieve.Verify(res.Flags)).To(Succeed())
	})

	It("is idempotent", func() {
		first, err := eng.Sieve(ctx, 10_007)
		Expect(err).NotTo(HaveOccurred())
		second, err := eng.Sieve(ctx, 10_007)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})

	It("matches a serial sieve for every N up to 600", func() {
		for n := 2; n <= 600; n++ {
			flags, err := eng.Sieve(ctx, n)
			Expect(err).NotTo(HaveOccurred())
			Expect(flags).To(Equal(sieve.Reference(n)), "n=%d", n)
		}
	})

	DescribeTable("matches a serial sieve for larger N",
		func(n, width int) {
			eng = sieve.New(newTestDevice(), sieve.WithLaneWidth(width))
			flags, err := eng.Sieve(ctx, n)
			Expect(err).NotTo(HaveOccurred())
			Expect(sieve.Verify(flags)).To(Succeed())
		},
		Entry("perfect square", 1<<20, 0),
		Entry("one past a square", 1<<20+1, 0),
		Entry("prime bound", 1_000_003, 0),
		Entry("ten million", 10_000_000, 0),
		Entry("one lane per group", 100_000, 1),
		Entry("odd group width", 100_000, 7),
		Entry("width above device limit", 10_000_000, 2048),
	)

	It("clamps a fixed width to the device limit", func() {
		eng = sieve.New(newTestDevice(device.WithMaxLanesPerGroup(64)), sieve.WithLaneWidth(4096))
		res, err := eng.Run(ctx, 1_000_000)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Width).To(Equal(64))
		Expect(res.Launch).To(Equal(device.LaunchConfig{Groups: 16, LanesPerGroup: 64}))
		Expect(sieve.Verify(res.Flags)).To(Succeed())
	})

	It("gives the same answer for any lane order", func() {
		r := rand.New(rand.NewPCG(42, 7))
		for _, n := range []int{2, 3, 50, 102, 1000, 10_201} {
			want := sieve.Reference(n)
			for trial := 0; trial < 20; trial++ {
				shuffle := func(lanes int) []int { return r.Perm(lanes) }
				eng := sieve.New(newTestDevice(device.WithLaneOrder(shuffle)), sieve.WithLaneWidth(4))
				flags, err := eng.Sieve(ctx, n)
				Expect(err).NotTo(HaveOccurred())
				Expect(flags).To(Equal(want), "n=%d trial=%d", n, trial)
			}
		}
	})

	It("serves concurrent callers", func() {
		var wg sync.WaitGroup
		bounds := []int{102, 5000, 77_777, 250_000}
		results := make([][]byte, len(bounds))
		errs := make([]error, len(bounds))
		for i, n := range bounds {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = eng.Sieve(ctx, n)
			}()
		}
		wg.Wait()

		for i, n := range bounds {
			Expect(errs[i]).NotTo(HaveOccurred())
			Expect(results[i]).To(Equal(sieve.Reference(n)))
		}
	})

	Describe("invalid bounds", func() {
		var fault *device.FaultDevice

		BeforeEach(func() {
			fault = device.NewFaultDevice(newTestDevice())
			eng = sieve.New(fault, sieve.WithMaxBound(1000))
		})

		DescribeTable("are rejected before the device is touched",
			func(n int) {
				_, err := eng.Run(ctx, n)
				Expect(err).To(MatchError(sieve.ErrInvalidArgument))
				Expect(sieve.IsFatal(err)).To(BeFalse())
				Expect(fault.Calls("capability")).To(BeZero())
				Expect(fault.Calls("alloc")).To(BeZero())
			},
			Entry("zero", 0),
			Entry("one", 1),
			Entry("negative", -5),
			Entry("above the maximum", 1001),
		)

		It("rejects bounds larger than device memory", func() {
			eng = sieve.New(newTestDevice(device.WithMemoryLimit(64)))
			_, err := eng.Run(ctx, 100)
			Expect(err).To(MatchError(sieve.ErrInvalidArgument))
		})
	})

	It("stops before allocating when the context is done", func() {
		fault := device.NewFaultDevice(newTestDevice())
		eng = sieve.New(fault)

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := eng.Run(canceled, 102)
		Expect(err).To(MatchError(context.Canceled))
		Expect(fault.Calls("alloc")).To(BeZero())
	})

	Describe("device failures", func() {
		var fault *device.FaultDevice

		BeforeEach(func() {
			fault = device.NewFaultDevice(newTestDevice())
			eng = sieve.New(fault)
		})

		expectStep := func(err error, step sieve.Step) {
			GinkgoHelper()
			var stepErr *sieve.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue(), "got %v", err)
			Expect(stepErr.Step).To(Equal(step))
			Expect(stepErr.Bound).To(Equal(102))
			Expect(sieve.IsFatal(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(string(step)))
		}

		It("fails the probe when the capability query fails", func() {
			fault.CapabilityErr = errInjected
			res, err := eng.Run(ctx, 102)
			Expect(res).To(BeNil())
			expectStep(err, sieve.StepProbe)
			Expect(err).To(MatchError(device.ErrDeviceUnavailable))
			Expect(fault.Calls("alloc")).To(BeZero())
		})

		It("fails the probe when compute is prohibited", func() {
			fault = device.NewFaultDevice(newTestDevice(device.WithComputeMode(device.ComputeProhibited)))
			eng = sieve.New(fault)
			_, err := eng.Run(ctx, 102)
			expectStep(err, sieve.StepProbe)
			Expect(err).To(MatchError(device.ErrDeviceUnavailable))
			Expect(fault.Calls("alloc")).To(BeZero())
		})

		It("reports allocation failures without launching", func() {
			fault.AllocErr = fmt.Errorf("%w: out of memory", device.ErrAllocation)
			_, err := eng.Run(ctx, 102)
			expectStep(err, sieve.StepAlloc)
			Expect(err).To(MatchError(device.ErrAllocation))
			Expect(fault.Calls("launch")).To(BeZero())
			Expect(fault.Outstanding()).To(BeZero())
		})

		It("frees the flags when the launch fails", func() {
			fault.LaunchErr = fmt.Errorf("%w: too many resources requested", device.ErrLaunch)
			_, err := eng.Run(ctx, 102)
			expectStep(err, sieve.StepLaunch)
			Expect(fault.Outstanding()).To(BeZero())
			Expect(fault.Calls("sync")).To(BeZero())
		})

		It("frees the flags when synchronization fails", func() {
			fault.SyncErr = errInjected
			_, err := eng.Run(ctx, 102)
			expectStep(err, sieve.StepSync)
			Expect(err).To(MatchError(errInjected))
			Expect(fault.Outstanding()).To(BeZero())
			Expect(fault.Calls("copy")).To(BeZero())
		})

		It("frees the flags when the copy back fails", func() {
			fault.CopyErr = errInjected
			res, err := eng.Run(ctx, 102)
			Expect(res).To(BeNil())
			expectStep(err, sieve.StepCopy)
			Expect(fault.Outstanding()).To(BeZero())
		})

		It("releases memory after a successful run", func() {
			_, err := eng.Run(ctx, 102)
			Expect(err).NotTo(HaveOccurred())
			Expect(fault.Calls("free")).To(Equal(1))
			Expect(fault.Outstanding()).To(BeZero())
		})
	})
})
