// Package acceptance runs random traffic through caches and a home node and
// checks that the caches stay coherent.
package acceptance

import (
	"encoding/binary"
	"log"
	"math/rand"
	"reflect"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/mem/coherence/link"
	"github.com/sarchlab/coherence/sim"
)

// A Network delivers envelopes to the component named by the destination of
// the message.
type Network interface {
	Send(env coherence.Envelope)
}

// A ProgressReporter is told about every completed request.
type ProgressReporter interface {
	IncrementFinished(amount uint64)
}

type startEvent struct {
	*sim.EventBase
}

// An Agent plays a core. It sends random accesses to its cache, one at a
// time, and reports every request and response to the checker.
type Agent struct {
	name      string
	id        uint32
	engine    sim.Engine
	freq      sim.Freq
	network   Network
	cacheName string
	checker   *Checker
	progress  ProgressReporter
	rng       *rand.Rand

	lineSize   uint64
	lines      []uint64
	allowFlush bool

	requestsLeft int
	pending      *coherence.Msg
	lockedAddr   uint64
	holdingLock  bool
	seq          uint32

	NumCompleted int
}

// Name returns the name of the agent.
func (a *Agent) Name() string {
	return a.name
}

// Done tells if the agent has issued all its requests and received all the
// responses.
func (a *Agent) Done() bool {
	return a.requestsLeft == 0 && a.pending == nil && !a.holdingLock
}

// Start schedules the first request of the agent.
func (a *Agent) Start() {
	a.engine.Schedule(&startEvent{
		EventBase: sim.NewEventBase(a.engine.CurrentTime(), a),
	})
}

// Handle issues requests and collects responses.
func (a *Agent) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *startEvent:
		a.issue()
	case *link.DeliveryEvent:
		a.complete(e.Msg)
		a.issue()
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

func (a *Agent) now() uint64 {
	return a.freq.Cycle(a.engine.CurrentTime())
}

func (a *Agent) issue() {
	if a.pending != nil {
		return
	}

	var req *coherence.Msg

	switch {
	case a.holdingLock:
		req = a.buildWrite(a.lockedAddr, coherence.FlagLocked)
	case a.requestsLeft == 0:
		return
	default:
		req = a.randomRequest()
		a.requestsLeft--
	}

	a.pending = req
	a.checker.Issue(req, a.now())

	a.network.Send(coherence.Envelope{
		Msg:          req,
		DeliveryTime: a.now(),
		AckRequired:  true,
	})
}

func (a *Agent) randomRequest() *coherence.Msg {
	addr := a.randomAddress()
	dice := a.rng.Float64()

	switch {
	case dice < 0.45:
		return a.build(coherence.CmdGetS, addr)
	case dice < 0.85:
		return a.buildWrite(addr, 0)
	case dice < 0.93:
		return a.build(coherence.CmdGetSX, addr)
	case a.allowFlush && dice < 0.97:
		return a.build(coherence.CmdFlushLine, addr)
	case a.allowFlush:
		return a.build(coherence.CmdFlushLineInv, addr)
	default:
		return a.build(coherence.CmdGetS, addr)
	}
}

// randomAddress picks a word in the first quarter of a random line so that
// the agents collide often.
func (a *Agent) randomAddress() uint64 {
	line := a.lines[a.rng.Intn(len(a.lines))]
	words := a.lineSize / 16
	if words == 0 {
		words = 1
	}

	return line + uint64(a.rng.Int63n(int64(words)))*4
}

func (a *Agent) build(cmd coherence.Command, addr uint64) *coherence.Msg {
	return coherence.MakeMsgBuilder().
		WithCmd(cmd).
		WithAddress(addr).
		WithLineSize(a.lineSize).
		WithSize(4).
		WithSrc(a.name).
		WithDst(a.cacheName).
		Build()
}

func (a *Agent) buildWrite(addr uint64, flags coherence.Flags) *coherence.Msg {
	a.seq++

	value := make([]byte, 4)
	binary.LittleEndian.PutUint32(value, a.id<<24|a.seq)

	req := a.build(coherence.CmdGetX, addr)
	req.Payload = value
	req.Flags |= flags

	return req
}

func (a *Agent) complete(rsp *coherence.Msg) {
	req := a.pending
	if req == nil || rsp.RspTo != req.ID {
		log.Panicf("%s: unexpected response %s", a.name, rsp)
	}

	a.pending = nil
	a.NumCompleted++
	a.checker.Complete(req, rsp, a.now())

	if a.progress != nil {
		a.progress.IncrementFinished(1)
	}

	switch {
	case req.Cmd == coherence.CmdGetSX:
		a.holdingLock = true
		a.lockedAddr = req.Addr
	case req.HasFlag(coherence.FlagLocked):
		a.holdingLock = false
	}
}
