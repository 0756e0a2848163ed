package acceptance

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coherence/mem/coherence"
)

func runAndVerify(b Builder) *System {
	s := b.Build()

	Expect(s.Run()).To(Succeed())
	Expect(s.Verify()).To(Succeed())

	return s
}

var _ = Describe("Full coherence", func() {
	for _, seed := range []int64{1, 2, 3} {
		seed := seed

		It(fmt.Sprintf("should stay coherent, seed %d", seed), func() {
			s := runAndVerify(MakeBuilder().
				WithVariant(coherence.FullCoherence).
				WithNumAgents(4).
				WithNumRequests(300).
				WithNumLines(6).
				WithSeed(seed))

			for _, a := range s.Agents {
				Expect(a.NumCompleted).To(BeNumerically(">=", 300))
			}

			total := s.Access.Total()
			Expect(total.Hits()).To(BeNumerically(">", 0))
			Expect(total.Misses()).To(BeNumerically(">", 0))
		})
	}

	It("should stay coherent with a prefetcher", func() {
		runAndVerify(MakeBuilder().
			WithNumAgents(3).
			WithNumRequests(300).
			WithNumLines(8).
			WithSeed(7).
			WithNextLinePrefetch(true))
	})

	It("should stay coherent when the home node refuses requests", func() {
		runAndVerify(MakeBuilder().
			WithNumAgents(4).
			WithNumRequests(200).
			WithNumLines(4).
			WithSeed(11).
			WithHomeCapacity(1))
	})

	It("should stay coherent with one line per cache", func() {
		runAndVerify(MakeBuilder().
			WithNumAgents(2).
			WithNumRequests(200).
			WithNumLines(3).
			WithSeed(5).
			WithCacheGeometry(1, 1))
	})
})

var _ = Describe("Single writer", func() {
	for _, seed := range []int64{1, 2} {
		seed := seed

		It(fmt.Sprintf("should keep every agent's data, seed %d", seed), func() {
			runAndVerify(MakeBuilder().
				WithVariant(coherence.SingleWriter).
				WithNumAgents(3).
				WithNumRequests(300).
				WithNumLines(5).
				WithSeed(seed))
		})
	}

	It("should keep every agent's data with a prefetcher", func() {
		runAndVerify(MakeBuilder().
			WithVariant(coherence.SingleWriter).
			WithNumAgents(2).
			WithNumRequests(300).
			WithNumLines(6).
			WithSeed(3).
			WithNextLinePrefetch(true))
	})
})

type counter struct {
	n uint64
}

func (c *counter) IncrementFinished(amount uint64) {
	c.n += amount
}

var _ = Describe("Progress", func() {
	It("should report every completed request", func() {
		s := MakeBuilder().
			WithNumAgents(2).
			WithNumRequests(50).
			WithSeed(3).
			Build()

		c := &counter{}
		s.ReportProgressTo(c)

		Expect(s.Run()).To(Succeed())
		Expect(s.Verify()).To(Succeed())

		total := uint64(0)
		for _, a := range s.Agents {
			total += uint64(a.NumCompleted)
		}

		Expect(c.n).To(Equal(total))
	})
})
