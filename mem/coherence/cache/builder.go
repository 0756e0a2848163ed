package cache

import (
	"log"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/mem/coherence/internal/linearray"
	"github.com/sarchlab/coherence/mem/coherence/internal/mshr"
	"github.com/sarchlab/coherence/sim"
)

// A Builder can build caches.
type Builder struct {
	engine     sim.Engine
	freq       sim.Freq
	cfg        coherence.Config
	numSets    int
	numWays    int
	network    Network
	lowerName  string
	retryDelay uint64
	prefetch   bool
}

// MakeBuilder returns a Builder with a 1 GHz, 16 KB, 4-way cache that runs
// the full-coherence protocol.
func MakeBuilder() Builder {
	return Builder{
		freq:       1 * sim.GHz,
		cfg:        coherence.DefaultConfig(),
		numSets:    64,
		numWays:    4,
		retryDelay: 4,
	}
}

// WithEngine sets the engine that provides the current time.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the cache.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithConfig sets the configuration of the coherence controller.
func (b Builder) WithConfig(cfg coherence.Config) Builder {
	b.cfg = cfg
	return b
}

// WithVariant sets the coherence protocol.
func (b Builder) WithVariant(v coherence.Variant) Builder {
	b.cfg.Variant = v
	return b
}

// WithNumSets sets the number of sets.
func (b Builder) WithNumSets(n int) Builder {
	b.numSets = n
	return b
}

// WithNumWays sets the associativity.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// WithNetwork sets the network that carries the outgoing messages.
func (b Builder) WithNetwork(n Network) Builder {
	b.network = n
	return b
}

// WithLowerName sets the component that receives the messages to the lower
// level.
func (b Builder) WithLowerName(name string) Builder {
	b.lowerName = name
	return b
}

// WithRetryDelay sets the number of cycles to wait before sending a refused
// message again.
func (b Builder) WithRetryDelay(cycles uint64) Builder {
	b.retryDelay = cycles
	return b
}

// WithNextLinePrefetch makes every read miss also fetch the next line.
func (b Builder) WithNextLinePrefetch(on bool) Builder {
	b.prefetch = on
	return b
}

// Build creates a new cache.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		log.Panicf("cannot build cache %s: engine not set", name)
	}

	if b.numSets <= 0 || b.numWays <= 0 {
		log.Panicf("cannot build cache %s: %d sets, %d ways",
			name, b.numSets, b.numWays)
	}

	m := mshr.NewMSHR()

	c := &Comp{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		freq:         b.freq,
		network:      b.network,
		lowerName:    b.lowerName,
		retryDelay:   b.retryDelay,
		prefetch:     b.prefetch,
		mshr:         m,
		array:        linearray.NewArray(b.numSets, b.numWays, b.cfg.LineSize),
	}

	c.ctrl = coherence.MakeBuilder().
		WithConfig(b.cfg).
		WithMSHR(m).
		Build(name)

	return c
}
