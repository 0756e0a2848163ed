package sim

// TimeTeller reports the simulated time. Components turn it into cycles
// with their Freq.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler accepts events for a future time.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler is called once the event queue has drained, for
// example to flush the recordings of a run.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine drives the discrete event simulation. The caches, the home node,
// and the link schedule their events on a shared Engine and never call each
// other directly. Hooks accepted by the Engine see every event before and
// after it is handled, which is where the coherence checker and the event
// logger attach.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run handles events in time order until none is left.
	Run() error

	// Pause blocks Run before the next event until Continue is called.
	Pause()

	// Continue resumes a paused Run.
	Continue()

	// RegisterSimulationEndHandler adds a handler that Finished invokes.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished invokes the registered handlers in registration order.
	Finished()
}
