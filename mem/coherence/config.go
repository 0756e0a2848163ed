package coherence

import (
	"fmt"
	"strings"
)

// Variant selects the protocol a controller runs.
type Variant int

// The supported protocol variants.
const (
	// FullCoherence is the invalidation-based MESI protocol.
	FullCoherence Variant = iota

	// SingleWriter is the "incoherent" protocol for caches whose data is
	// never shared. It adds the software flush commands.
	SingleWriter
)

func (v Variant) String() string {
	switch v {
	case FullCoherence:
		return "mesi"
	case SingleWriter:
		return "incoherent"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant converts a protocol name to a Variant.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mesi", "full", "full-coherence":
		return FullCoherence, nil
	case "incoherent", "single-writer", "singlewriter":
		return SingleWriter, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", name)
	}
}

// States returns the closed set of states the variant may put a line in.
func (v Variant) States() []State {
	switch v {
	case FullCoherence:
		return []State{StateI, StateS, StateE, StateM,
			StateIS, StateIM, StateSM}
	case SingleWriter:
		return []State{StateI, StateE, StateM,
			StateIS, StateIM, StateSB, StateIB}
	default:
		return nil
	}
}

// HasState tells if s belongs to the state set of the variant.
func (v Variant) HasState(s State) bool {
	for _, st := range v.States() {
		if st == s {
			return true
		}
	}

	return false
}

// Config holds the parameters of a controller. Latencies are in cycles.
type Config struct {
	Variant  Variant
	LineSize uint64

	TagLatency    uint64
	AccessLatency uint64
	MSHRLatency   uint64

	// LastLevel is set when nothing caches the data below this controller.
	LastLevel bool

	// WritebackCleanBlocks makes evictions of clean lines carry data.
	WritebackCleanBlocks bool
}

// DefaultConfig returns the configuration of a 64-byte-line MESI cache.
func DefaultConfig() Config {
	return Config{
		Variant:       FullCoherence,
		LineSize:      64,
		TagLatency:    1,
		AccessLatency: 2,
		MSHRLatency:   1,
	}
}

// ExpectWritebackAck tells if a Put sent by the controller is answered by an
// AckPut. A last-level cache that drops clean lines silently gets no answer.
func (c Config) ExpectWritebackAck() bool {
	return !(c.LastLevel && !c.WritebackCleanBlocks)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.LineSize == 0 || c.LineSize&(c.LineSize-1) != 0 {
		return fmt.Errorf("line size %d is not a power of two", c.LineSize)
	}

	if c.Variant != FullCoherence && c.Variant != SingleWriter {
		return fmt.Errorf("unknown variant %d", int(c.Variant))
	}

	return nil
}
