// Package cache provides a private cache that keeps its lines coherent with
// a home node through a coherence.Controller.
package cache

import (
	"log"
	"reflect"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/mem/coherence/internal/linearray"
	"github.com/sarchlab/coherence/mem/coherence/internal/mshr"
	"github.com/sarchlab/coherence/mem/coherence/link"
	"github.com/sarchlab/coherence/sim"
	"github.com/sarchlab/coherence/tracing"
)

// A Network delivers envelopes to the component named by the destination of
// the message.
type Network interface {
	Send(env coherence.Envelope)
}

// Comp is a private cache. It accepts accesses and flushes from above, keeps
// the lines in a set-associative array, and talks to the lower level through
// the network.
type Comp struct {
	*sim.HookableBase

	name       string
	engine     sim.Engine
	freq       sim.Freq
	network    Network
	lowerName  string
	retryDelay uint64
	prefetch   bool

	ctrl  *coherence.Controller
	array *linearray.Array
	mshr  *mshr.MSHR

	wakeList []uint64
}

// Name returns the name of the cache.
func (c *Comp) Name() string {
	return c.name
}

// Controller returns the coherence controller of the cache.
func (c *Comp) Controller() *coherence.Controller {
	return c.ctrl
}

// SetNetwork sets the network that carries the outgoing messages.
func (c *Comp) SetNetwork(n Network) {
	c.network = n
}

// SetLowerName sets the component that receives the messages to the lower
// level.
func (c *Comp) SetLowerName(name string) {
	c.lowerName = name
}

// Lookup returns the line that holds addr, or nil if the cache does not hold
// the address.
func (c *Comp) Lookup(addr uint64) *coherence.CacheLine {
	return c.array.Lookup(c.baseAddr(addr), false)
}

// Lines visits every line of the cache.
func (c *Comp) Lines(f func(line *coherence.CacheLine)) {
	c.array.Lines(f)
}

// HasTransaction tells if a request for addr is being served.
func (c *Comp) HasTransaction(addr uint64) bool {
	return c.mshr.IsInService(c.baseAddr(addr))
}

// NumPendingAddresses returns the number of addresses that still have
// queued, deferred, or in-flight messages.
func (c *Comp) NumPendingAddresses() int {
	return c.mshr.Size()
}

// NumWaitingRequests returns the number of messages that are queued or
// deferred at the cache.
func (c *Comp) NumWaitingRequests() int {
	return c.mshr.NumWaiting()
}

// Handle processes the messages that the network delivers.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *link.DeliveryEvent:
		c.Recv(e.Msg)
	case *link.NACKEvent:
		c.HandleNACK(e.Msg)
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

// Recv processes a message that arrives at the cache.
func (c *Comp) Recv(msg *coherence.Msg) {
	c.ctrl.UpdateTimestamp(c.now())

	switch {
	case msg.Cmd.IsRequest():
		c.recvRequest(msg)
	case msg.Cmd.IsResponse():
		c.recvResponse(msg)
	case msg.Cmd.IsInvalidation():
		c.recvSnoop(msg, false)
	default:
		log.Panicf("%s: cannot handle %s", c.name, msg)
	}

	c.runWakes()
}

// HandleNACK sends a refused message again if it is still needed.
func (c *Comp) HandleNACK(msg *coherence.Msg) {
	c.ctrl.UpdateTimestamp(c.now())

	line := c.array.Lookup(msg.BaseAddr, false)

	retry, err := c.ctrl.IsRetryNeeded(msg, line)
	c.mustNotViolate(err)

	if !retry {
		return
	}

	tracing.AddMilestone(msg.ID, c, tracing.MilestoneKindNetwork, "nack")

	ackRequired := msg.Cmd.IsRequest()
	if msg.Cmd.IsWriteback() {
		ackRequired = c.ctrl.Config().ExpectWritebackAck()
	}

	c.network.Send(coherence.Envelope{
		Msg:          msg,
		DeliveryTime: c.ctrl.Timestamp() + c.retryDelay,
		AckRequired:  ackRequired,
	})
}

func (c *Comp) now() uint64 {
	return c.freq.Cycle(c.engine.CurrentTime())
}

func (c *Comp) baseAddr(addr uint64) uint64 {
	return coherence.BaseAddress(addr, c.ctrl.Config().LineSize)
}

func (c *Comp) taskID(msg *coherence.Msg) string {
	return tracing.MsgIDAtReceiver(msg.ID, c)
}

func (c *Comp) recvRequest(msg *coherence.Msg) {
	tracing.StartTask(c.taskID(msg), msg.ID, c, "req_in", msg.Cmd.String(), msg)

	addr := msg.BaseAddr
	queued := c.mshr.LookupFront(addr) != nil

	c.mshr.Insert(addr, msg)

	if queued {
		tracing.AddMilestone(c.taskID(msg), c,
			tracing.MilestoneKindMSHR, "queued behind an earlier request")
		return
	}

	c.tryFront(addr, false)
}

// tryFront serves the queued requests of addr, oldest first, until one of
// them has to wait.
func (c *Comp) tryFront(addr uint64, replay bool) {
	for {
		msg := c.mshr.LookupFront(addr)
		if msg == nil ||
			c.mshr.IsInService(addr) ||
			c.mshr.PendingWriteback(addr) {
			return
		}

		line, ok := c.lineForRequest(msg)
		if !ok {
			return
		}

		action, err := c.ctrl.HandleRequest(msg, line, replay)
		c.mustNotViolate(err)
		c.sendOut()

		switch action {
		case coherence.Done, coherence.Ignore:
			c.mustRemoveFront(addr)
			tracing.EndTask(c.taskID(msg), c)
			c.releaseLock(line)
		case coherence.Stall:
			if line != nil && line.State.IsStable() {
				c.mustRemoveFront(addr)
				c.mshr.Defer(addr, msg)
				tracing.AddMilestone(c.taskID(msg), c,
					tracing.MilestoneKindLock, "line locked")

				break
			}

			c.mshr.SetInService(addr, true)
			tracing.AddMilestone(c.taskID(msg), c,
				tracing.MilestoneKindDownward, "miss")
			c.prefetchNextLine(msg)

			return
		case coherence.Block:
			tracing.AddMilestone(c.taskID(msg), c,
				tracing.MilestoneKindMSHR, "line in transition")

			return
		}

		replay = true
	}
}

// lineForRequest finds the line that a request works on. Accesses allocate
// a line, evicting a victim if needed. It returns false if the victim cannot
// leave yet.
func (c *Comp) lineForRequest(
	msg *coherence.Msg,
) (*coherence.CacheLine, bool) {
	addr := msg.BaseAddr

	if !msg.Cmd.IsAccess() {
		return c.array.Lookup(addr, false), true
	}

	line := c.array.Lookup(addr, true)
	if line != nil {
		return line, true
	}

	victim := c.array.FindReplacementCandidate(addr)

	action, err := c.ctrl.HandleEviction(victim, c.name)
	c.mustNotViolate(err)
	c.sendOut()

	if action != coherence.Done {
		c.mshr.InsertPointer(victim.BaseAddr, addr)
		tracing.AddMilestone(c.taskID(msg), c,
			tracing.MilestoneKindVictim, "victim busy")

		return nil, false
	}

	c.array.Replace(addr, victim)

	return victim, true
}

func (c *Comp) recvResponse(msg *coherence.Msg) {
	addr := msg.BaseAddr
	line := c.array.Lookup(addr, false)

	if msg.Cmd == coherence.CmdAckPut {
		_, err := c.ctrl.HandleResponse(msg, line, nil)
		c.mustNotViolate(err)
		c.sendOut()
		c.wake(addr)

		return
	}

	if !c.mshr.IsInService(addr) {
		log.Panicf("%s: response %s without an outstanding request",
			c.name, msg)
	}

	orig := c.mshr.LookupFront(addr)

	action, err := c.ctrl.HandleResponse(msg, line, orig)
	c.mustNotViolate(err)
	c.sendOut()

	if action != coherence.Done {
		return
	}

	c.mustRemoveFront(addr)
	tracing.EndTask(c.taskID(orig), c)
	c.releaseLock(line)
	c.wake(addr)
}

func (c *Comp) recvSnoop(msg *coherence.Msg, replay bool) {
	addr := msg.BaseAddr
	line := c.array.Lookup(addr, false)

	action, err := c.ctrl.HandleInvalidation(msg, line, replay)
	c.mustNotViolate(err)
	c.sendOut()

	switch action {
	case coherence.Stall:
		c.mshr.Defer(addr, msg)
	case coherence.Done:
		c.wake(addr)
	}
}

// releaseLock replays the messages that waited for the lock of line once the
// lock is free.
func (c *Comp) releaseLock(line *coherence.CacheLine) {
	if line == nil || line.IsLocked() || !line.EventsWaitingForLock {
		return
	}

	line.EventsWaitingForLock = false

	addr := line.BaseAddr
	for _, msg := range c.mshr.TakeDeferred(addr) {
		if msg.Cmd.IsInvalidation() {
			c.recvSnoop(msg, true)
			continue
		}

		c.mshr.Insert(addr, msg)
	}

	c.wake(addr)
}

func (c *Comp) prefetchNextLine(msg *coherence.Msg) {
	if !c.prefetch ||
		msg.Cmd != coherence.CmdGetS ||
		msg.HasFlag(coherence.FlagPrefetch) {
		return
	}

	next := msg.BaseAddr + c.ctrl.Config().LineSize
	if c.mshr.Exists(next) || c.array.Lookup(next, false) != nil {
		return
	}

	req := coherence.MakeMsgBuilder().
		WithCmd(coherence.CmdGetS).
		WithAddress(next).
		WithLineSize(c.ctrl.Config().LineSize).
		WithSize(c.ctrl.Config().LineSize).
		WithSrc(c.name).
		WithDst(c.name).
		WithFlags(coherence.FlagPrefetch).
		Build()

	tracing.StartTask(c.taskID(req), msg.ID, c, "prefetch", "GetS", req)
	c.mshr.Insert(next, req)
	c.wake(next)
}

func (c *Comp) wake(addr uint64) {
	c.wakeList = append(c.wakeList, addr)
}

// runWakes retries the addresses whose transactions have made progress and
// every address that waits for them to give up a victim.
func (c *Comp) runWakes() {
	for len(c.wakeList) > 0 {
		addr := c.wakeList[0]
		c.wakeList = c.wakeList[1:]

		c.tryFront(addr, true)

		for _, blocked := range c.mshr.TakePointers(addr) {
			c.tryFront(blocked, true)
		}
	}
}

// sendOut hands the envelopes produced by the last controller call to the
// network.
func (c *Comp) sendOut() {
	for _, env := range c.ctrl.DrainDown() {
		if env.Msg.Dst == "" {
			env.Msg.Dst = c.lowerName
		}

		c.network.Send(env)
	}

	for _, env := range c.ctrl.DrainUp() {
		c.network.Send(env)
	}
}

func (c *Comp) mustRemoveFront(addr uint64) {
	if err := c.mshr.RemoveFront(addr); err != nil {
		log.Panicf("%s: %v", c.name, err)
	}
}

func (c *Comp) mustNotViolate(err error) {
	if err != nil {
		log.Panicf("%v", err)
	}
}
