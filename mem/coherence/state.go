package coherence

import "fmt"

// State is the coherence state of a cache line.
type State int

// The closed set of coherence states. Stable states come first, transient
// states follow. S_B and I_B only exist in the single-writer protocol and SM
// only exists in the full-coherence protocol.
const (
	StateI State = iota
	StateS
	StateE
	StateM
	StateIS
	StateIM
	StateSM
	StateSB
	StateIB
)

var stateNames = [...]string{
	StateI:  "I",
	StateS:  "S",
	StateE:  "E",
	StateM:  "M",
	StateIS: "IS",
	StateIM: "IM",
	StateSM: "SM",
	StateSB: "S_B",
	StateIB: "I_B",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// IsStable returns true for I, S, E, and M.
func (s State) IsStable() bool {
	switch s {
	case StateI, StateS, StateE, StateM:
		return true
	default:
		return false
	}
}

// IsTransient returns true if a transaction is outstanding on a line in this
// state.
func (s State) IsTransient() bool {
	switch s {
	case StateIS, StateIM, StateSM, StateSB, StateIB:
		return true
	default:
		return false
	}
}

// IsValid returns true if a line in this state holds readable data.
func (s State) IsValid() bool {
	switch s {
	case StateS, StateE, StateM, StateSM, StateSB:
		return true
	default:
		return false
	}
}
