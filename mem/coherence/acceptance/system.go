package acceptance

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/mem/coherence/cache"
	"github.com/sarchlab/coherence/mem/coherence/home"
	"github.com/sarchlab/coherence/mem/coherence/link"
	"github.com/sarchlab/coherence/sim"
	"github.com/sarchlab/coherence/tracing"
)

// A System is a set of agents, each with a private cache, that share one
// home node over a link.
type System struct {
	Engine  sim.Engine
	Link    *link.Link
	Home    *home.Comp
	Caches  []*cache.Comp
	Agents  []*Agent
	Checker *Checker
	Access  *tracing.AccessTracer
}

// Run runs the simulation until no event is left.
func (s *System) Run() error {
	for _, a := range s.Agents {
		a.Start()
	}

	err := s.Engine.Run()
	s.Engine.Finished()

	return err
}

// ReportProgressTo makes every agent report its completed requests.
func (s *System) ReportProgressTo(p ProgressReporter) {
	for _, a := range s.Agents {
		a.progress = p
	}
}

// Verify returns an error if an agent did not finish, a request is left in
// a queue, or the checker found a violation.
func (s *System) Verify() error {
	for _, a := range s.Agents {
		if !a.Done() {
			return fmt.Errorf("%s did not finish, %d requests completed",
				a.Name(), a.NumCompleted)
		}
	}

	for _, c := range s.Caches {
		if n := c.NumWaitingRequests(); n > 0 {
			return fmt.Errorf("%s has %d waiting requests", c.Name(), n)
		}
	}

	if n := s.Home.NumWaitingRequests(); n > 0 {
		return fmt.Errorf("%s has %d waiting requests", s.Home.Name(), n)
	}

	if errs := s.Checker.Errors(); len(errs) > 0 {
		return fmt.Errorf("%d violations, first: %s", len(errs), errs[0])
	}

	return nil
}

// Builder builds systems.
type Builder struct {
	variant      coherence.Variant
	numAgents    int
	numRequests  int
	numLines     int
	seed         int64
	numSets      int
	numWays      int
	linkLatency  uint64
	homeLatency  uint64
	homeCapacity int
	prefetch     bool
	checkLines   bool
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		variant:     coherence.FullCoherence,
		numAgents:   4,
		numRequests: 1000,
		numLines:    8,
		seed:        1,
		numSets:     2,
		numWays:     2,
		linkLatency: 2,
		homeLatency: 10,
		checkLines:  true,
	}
}

// WithVariant sets the protocol of the caches and the home node.
func (b Builder) WithVariant(v coherence.Variant) Builder {
	b.variant = v
	return b
}

// WithNumAgents sets the number of agents and caches.
func (b Builder) WithNumAgents(n int) Builder {
	b.numAgents = n
	return b
}

// WithNumRequests sets the number of requests each agent issues.
func (b Builder) WithNumRequests(n int) Builder {
	b.numRequests = n
	return b
}

// WithNumLines sets the number of lines each agent touches.
func (b Builder) WithNumLines(n int) Builder {
	b.numLines = n
	return b
}

// WithSeed sets the seed of the random traffic.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithCacheGeometry sets the number of sets and ways of every cache.
func (b Builder) WithCacheGeometry(numSets, numWays int) Builder {
	b.numSets = numSets
	b.numWays = numWays

	return b
}

// WithLinkLatency sets the wire latency in cycles.
func (b Builder) WithLinkLatency(cycles uint64) Builder {
	b.linkLatency = cycles
	return b
}

// WithHomeLatency sets the access latency of the home node.
func (b Builder) WithHomeLatency(cycles uint64) Builder {
	b.homeLatency = cycles
	return b
}

// WithHomeCapacity limits the number of requests the home node queues.
func (b Builder) WithHomeCapacity(n int) Builder {
	b.homeCapacity = n
	return b
}

// WithNextLinePrefetch turns on the next-line prefetcher of every cache.
func (b Builder) WithNextLinePrefetch(on bool) Builder {
	b.prefetch = on
	return b
}

// WithLineCheck sets if the checker inspects the cache lines after every
// event.
func (b Builder) WithLineCheck(on bool) Builder {
	b.checkLines = on
	return b
}

// Build creates a system.
func (b Builder) Build() *System {
	if b.numAgents <= 0 || b.numLines <= 0 {
		log.Panic("a system needs agents and lines")
	}

	engine := sim.NewSerialEngine()
	cfg := coherence.DefaultConfig()
	cfg.Variant = b.variant

	s := &System{
		Engine:  engine,
		Checker: NewChecker(b.variant),
		Access:  tracing.NewAccessTracer(),
	}

	s.Link = link.MakeBuilder().
		WithEngine(engine).
		WithLatency(b.linkLatency).
		Build("Link")

	s.Home = home.MakeBuilder().
		WithEngine(engine).
		WithNetwork(s.Link).
		WithVariant(b.variant).
		WithLineSize(cfg.LineSize).
		WithLatency(b.homeLatency).
		WithCapacity(b.homeCapacity).
		Build("Home")
	s.Link.PlugIn(s.Home)

	rng := rand.New(rand.NewSource(b.seed))

	for i := 0; i < b.numAgents; i++ {
		c := cache.MakeBuilder().
			WithEngine(engine).
			WithConfig(cfg).
			WithNumSets(b.numSets).
			WithNumWays(b.numWays).
			WithNetwork(s.Link).
			WithLowerName(s.Home.Name()).
			WithNextLinePrefetch(b.prefetch).
			Build(fmt.Sprintf("L1[%d]", i))
		c.Controller().AcceptHook(s.Access)
		s.Link.PlugIn(c)
		s.Caches = append(s.Caches, c)
		s.Checker.Watch(c)

		a := &Agent{
			name:         fmt.Sprintf("Core[%d]", i),
			id:           uint32(i + 1),
			engine:       engine,
			freq:         1 * sim.GHz,
			network:      s.Link,
			cacheName:    c.Name(),
			checker:      s.Checker,
			rng:          rand.New(rand.NewSource(rng.Int63())),
			lineSize:     cfg.LineSize,
			lines:        b.agentLines(i, cfg.LineSize),
			allowFlush:   b.variant == coherence.SingleWriter,
			requestsLeft: b.numRequests,
		}
		s.Link.PlugIn(a)
		s.Agents = append(s.Agents, a)
	}

	if b.checkLines {
		engine.AcceptHook(s.Checker)
	}

	return s
}

// agentLines returns the lines an agent touches. Under full coherence all
// the agents share the same lines. Under the single-writer protocol every
// agent owns its lines and the line after each of them stays unused, so
// that prefetches never bring in another agent's data.
func (b Builder) agentLines(agent int, lineSize uint64) []uint64 {
	lines := make([]uint64, b.numLines)

	for i := range lines {
		if b.variant == coherence.FullCoherence {
			lines[i] = uint64(i) * lineSize
			continue
		}

		lines[i] = uint64(agent*b.numLines+i) * 2 * lineSize
	}

	return lines
}
