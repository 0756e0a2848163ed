package coherence

import "github.com/sarchlab/coherence/sim"

// HookPosAccess marks that a core access reached its final outcome. The item
// is the request and the detail is an AccessInfo.
var HookPosAccess = &sim.HookPos{Name: "CoherenceAccess"}

// HookPosTransition marks a line changing state. The item is the line and
// the detail is a TransitionInfo.
var HookPosTransition = &sim.HookPos{Name: "CoherenceTransition"}

// AccessType tells reads from writes.
type AccessType int

// Access types.
const (
	AccessRead AccessType = iota
	AccessWrite
)

func (t AccessType) String() string {
	if t == AccessWrite {
		return "Write"
	}

	return "Read"
}

// AccessResult tells hits from misses.
type AccessResult int

// Access results.
const (
	AccessHit AccessResult = iota
	AccessMiss
)

func (r AccessResult) String() string {
	if r == AccessMiss {
		return "Miss"
	}

	return "Hit"
}

// AccessInfo is the detail of a HookPosAccess hook.
type AccessInfo struct {
	Controller string
	Cycle      uint64
	Type       AccessType
	Result     AccessResult
}

// TransitionInfo is the detail of a HookPosTransition hook.
type TransitionInfo struct {
	Controller string
	Cycle      uint64
	From, To   State
	Cause      *Msg
}
