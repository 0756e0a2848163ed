package home

import (
	"log"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/mem/coherence/internal/mshr"
	"github.com/sarchlab/coherence/sim"
)

// A Builder can build home nodes.
type Builder struct {
	engine   sim.Engine
	freq     sim.Freq
	network  Network
	variant  coherence.Variant
	lineSize uint64
	latency  uint64
	capacity int
}

// MakeBuilder returns a Builder for a 1 GHz full-coherence home node with
// 64-byte lines, a 10-cycle latency, and an unbounded queue.
func MakeBuilder() Builder {
	return Builder{
		freq:     1 * sim.GHz,
		variant:  coherence.FullCoherence,
		lineSize: 64,
		latency:  10,
	}
}

// WithEngine sets the engine that provides the current time.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the home node.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNetwork sets the network that carries the outgoing messages.
func (b Builder) WithNetwork(n Network) Builder {
	b.network = n
	return b
}

// WithVariant sets the coherence protocol of the caches that the home node
// serves.
func (b Builder) WithVariant(v coherence.Variant) Builder {
	b.variant = v
	return b
}

// WithLineSize sets the line size in bytes.
func (b Builder) WithLineSize(n uint64) Builder {
	b.lineSize = n
	return b
}

// WithLatency sets the number of cycles to answer a message.
func (b Builder) WithLatency(cycles uint64) Builder {
	b.latency = cycles
	return b
}

// WithCapacity sets the number of requests that can wait at the home node.
// Requests beyond the capacity are refused. Zero means unbounded.
func (b Builder) WithCapacity(n int) Builder {
	b.capacity = n
	return b
}

// Build creates a new home node.
func (b Builder) Build(name string) *Comp {
	sim.NameMustBeValid(name)

	if b.engine == nil {
		log.Panicf("cannot build home node %s: engine not set", name)
	}

	if b.lineSize == 0 || b.lineSize&(b.lineSize-1) != 0 {
		log.Panicf("cannot build home node %s: line size %d is not a power of two",
			name, b.lineSize)
	}

	return &Comp{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		freq:         b.freq,
		network:      b.network,
		variant:      b.variant,
		lineSize:     b.lineSize,
		latency:      b.latency,
		capacity:     b.capacity,
		storage:      make(map[uint64][]byte),
		directory:    make(map[uint64]*dirEntry),
		mshr:         mshr.NewMSHR(),
	}
}
