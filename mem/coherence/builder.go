package coherence

import (
	"log"

	"github.com/sarchlab/coherence/sim"
)

// A Builder can build coherence controllers.
type Builder struct {
	cfg  Config
	mshr MSHR
}

// MakeBuilder creates a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithVariant sets the protocol to run.
func (b Builder) WithVariant(v Variant) Builder {
	b.cfg.Variant = v
	return b
}

// WithLineSize sets the line size in bytes.
func (b Builder) WithLineSize(n uint64) Builder {
	b.cfg.LineSize = n
	return b
}

// WithTagLatency sets the latency of messages without data.
func (b Builder) WithTagLatency(n uint64) Builder {
	b.cfg.TagLatency = n
	return b
}

// WithAccessLatency sets the latency of messages that carry data.
func (b Builder) WithAccessLatency(n uint64) Builder {
	b.cfg.AccessLatency = n
	return b
}

// WithMSHRLatency sets the latency of messages sent by replays.
func (b Builder) WithMSHRLatency(n uint64) Builder {
	b.cfg.MSHRLatency = n
	return b
}

// WithLastLevel marks the controller as the last cache level.
func (b Builder) WithLastLevel(lastLevel bool) Builder {
	b.cfg.LastLevel = lastLevel
	return b
}

// WithWritebackCleanBlocks makes evictions of clean lines carry data.
func (b Builder) WithWritebackCleanBlocks(on bool) Builder {
	b.cfg.WritebackCleanBlocks = on
	return b
}

// WithMSHR sets the MSHR that the controller shares with its cache.
func (b Builder) WithMSHR(m MSHR) Builder {
	b.mshr = m
	return b
}

// Build creates a new Controller.
func (b Builder) Build(name string) *Controller {
	sim.NameMustBeValid(name)

	if err := b.cfg.Validate(); err != nil {
		log.Panicf("cannot build controller %s: %v", name, err)
	}

	if b.mshr == nil {
		log.Panicf("cannot build controller %s: MSHR not set", name)
	}

	c := &Controller{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		cfg:          b.cfg,
		mshr:         b.mshr,
	}

	switch b.cfg.Variant {
	case FullCoherence:
		c.protocol = &mesiProtocol{c: c}
	case SingleWriter:
		c.protocol = &incoherentProtocol{c: c}
	}

	return c
}
