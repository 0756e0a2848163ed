package tracing

// MilestoneKind tells what a task waits for.
type MilestoneKind string

// The reasons a request can be held up.
const (
	MilestoneKindLock     MilestoneKind = "lock"
	MilestoneKindMSHR     MilestoneKind = "mshr"
	MilestoneKindVictim   MilestoneKind = "victim"
	MilestoneKindNetwork  MilestoneKind = "network"
	MilestoneKindDownward MilestoneKind = "downward"
)

// Milestone represents a point in time where a task is blocked
type Milestone struct {
	ID       string        `json:"id"`
	TaskID   string        `json:"task_id"`
	Kind     MilestoneKind `json:"kind"`
	What     string        `json:"what"`
	Location string        `json:"location"`
	Time     float64       `json:"time"`
}
