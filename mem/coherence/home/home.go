// Package home provides the home node of a cache line: a directory that
// tracks which caches hold the line, together with the backing memory.
package home

import (
	"log"
	"reflect"
	"sort"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/mem/coherence/internal/mshr"
	"github.com/sarchlab/coherence/mem/coherence/link"
	"github.com/sarchlab/coherence/sim"
	"github.com/sarchlab/coherence/tracing"
)

// A Network delivers envelopes and can refuse a message back to its sender.
type Network interface {
	Send(env coherence.Envelope)
	NACK(msg *coherence.Msg)
}

type dirEntry struct {
	owner   string
	sharers map[string]bool
	waiting map[string]bool
}

func (e *dirEntry) drop(name string) {
	if e.owner == name {
		e.owner = ""
	}

	delete(e.sharers, name)
}

func (e *dirEntry) isUncached() bool {
	return e.owner == "" && len(e.sharers) == 0
}

// Comp is a home node. It serves one transaction per address at a time and
// queues the others.
type Comp struct {
	*sim.HookableBase

	name     string
	engine   sim.Engine
	freq     sim.Freq
	network  Network
	variant  coherence.Variant
	lineSize uint64
	latency  uint64
	capacity int

	storage   map[uint64][]byte
	directory map[uint64]*dirEntry
	mshr      *mshr.MSHR
	numQueued int
}

// Name returns the name of the home node.
func (c *Comp) Name() string {
	return c.name
}

// SetNetwork sets the network that carries the outgoing messages.
func (c *Comp) SetNetwork(n Network) {
	c.network = n
}

// Read returns a copy of the memory line that holds addr.
func (c *Comp) Read(addr uint64) []byte {
	return append([]byte(nil), c.line(addr)...)
}

// Write stores data into memory starting at addr. It bypasses the
// directory and is meant for preloading memory.
func (c *Comp) Write(addr uint64, data []byte) {
	base := coherence.BaseAddress(addr, c.lineSize)
	copy(c.line(addr)[addr-base:], data)
}

// Owner returns the cache that holds addr in E or M, if any.
func (c *Comp) Owner(addr uint64) string {
	return c.entry(addr).owner
}

// Sharers returns the caches that hold addr in S, in alphabetical order.
func (c *Comp) Sharers(addr uint64) []string {
	e := c.entry(addr)

	names := make([]string, 0, len(e.sharers))
	for name := range e.sharers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// NumPendingAddresses returns the number of addresses with queued or active
// transactions.
func (c *Comp) NumPendingAddresses() int {
	return c.mshr.Size()
}

// NumWaitingRequests returns the number of requests queued at the home node.
func (c *Comp) NumWaitingRequests() int {
	return c.mshr.NumWaiting()
}

// Handle processes the messages that the network delivers.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *link.DeliveryEvent:
		c.Recv(e.Msg)
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

// Recv processes a message that arrives at the home node.
func (c *Comp) Recv(msg *coherence.Msg) {
	switch {
	case msg.Cmd.IsRequest():
		c.recvRequest(msg)
	case msg.Cmd.IsWriteback():
		c.recvWriteback(msg)
	case msg.Cmd == coherence.CmdAckInv,
		msg.Cmd == coherence.CmdGetSResp,
		msg.Cmd == coherence.CmdGetXResp:
		c.recvSnoopResponse(msg)
	default:
		log.Panicf("%s: cannot handle %s", c.name, msg)
	}
}

func (c *Comp) now() uint64 {
	return c.freq.Cycle(c.engine.CurrentTime())
}

func (c *Comp) entry(addr uint64) *dirEntry {
	base := coherence.BaseAddress(addr, c.lineSize)

	e, ok := c.directory[base]
	if !ok {
		e = &dirEntry{
			sharers: make(map[string]bool),
			waiting: make(map[string]bool),
		}
		c.directory[base] = e
	}

	return e
}

func (c *Comp) line(addr uint64) []byte {
	base := coherence.BaseAddress(addr, c.lineSize)

	data, ok := c.storage[base]
	if !ok {
		data = make([]byte, c.lineSize)
		c.storage[base] = data
	}

	return data
}

func (c *Comp) send(msg *coherence.Msg) {
	msg.Src = c.name

	c.network.Send(coherence.Envelope{
		Msg:          msg,
		DeliveryTime: c.now() + c.latency,
	})
}

func (c *Comp) recvRequest(msg *coherence.Msg) {
	if c.capacity > 0 && c.numQueued >= c.capacity {
		c.network.NACK(msg)
		return
	}

	tracing.StartTask(tracing.MsgIDAtReceiver(msg.ID, c), msg.ID, c,
		"req_in", msg.Cmd.String(), msg)

	c.mshr.Insert(msg.BaseAddr, msg)
	c.numQueued++

	c.serve(msg.BaseAddr)
}

// serve starts the queued transactions of addr until one of them has to
// wait for the caches.
func (c *Comp) serve(addr uint64) {
	for {
		req := c.mshr.LookupFront(addr)
		if req == nil || c.mshr.IsInService(addr) {
			return
		}

		if !c.start(req) {
			c.mshr.SetInService(addr, true)
			return
		}

		c.complete(req)
	}
}

// start begins a transaction. It returns true if the request can be granted
// right away.
func (c *Comp) start(req *coherence.Msg) bool {
	if c.variant == coherence.SingleWriter {
		return true
	}

	if req.Cmd.IsFlush() {
		log.Panicf("%s: flush %s in a full-coherence system", c.name, req)
	}

	e := c.entry(req.BaseAddr)
	requester := req.Src

	switch req.Cmd {
	case coherence.CmdGetS:
		if e.owner != "" && e.owner != requester {
			c.snoop(req, coherence.CmdFetchInvX, e.owner)
		}
	default:
		if e.owner != "" && e.owner != requester {
			c.snoop(req, coherence.CmdFetchInv, e.owner)
			break
		}

		for sharer := range e.sharers {
			if sharer != requester {
				c.snoop(req, coherence.CmdInv, sharer)
			}
		}
	}

	if len(e.waiting) == 0 {
		return true
	}

	c.mshr.SetAcksNeeded(req.BaseAddr, len(e.waiting))
	tracing.AddMilestone(tracing.MsgIDAtReceiver(req.ID, c), c,
		tracing.MilestoneKindDownward, "waiting for caches")

	return false
}

func (c *Comp) snoop(req *coherence.Msg, cmd coherence.Command, dst string) {
	msg := coherence.MakeMsgBuilder().
		WithCmd(cmd).
		WithAddress(req.BaseAddr).
		WithLineSize(c.lineSize).
		WithSize(c.lineSize).
		WithDst(dst).
		WithRequester(req.Requester).
		Build()

	c.entry(req.BaseAddr).waiting[dst] = true
	c.send(msg)
}

// complete grants the front request of its address and removes it.
func (c *Comp) complete(req *coherence.Msg) {
	addr := req.BaseAddr

	if req.Cmd.IsFlush() {
		c.completeFlush(req)
	} else {
		c.grant(req)
	}

	if err := c.mshr.RemoveFront(addr); err != nil {
		log.Panicf("%s: %v", c.name, err)
	}

	c.numQueued--
	tracing.EndTask(tracing.MsgIDAtReceiver(req.ID, c), c)
}

func (c *Comp) grant(req *coherence.Msg) {
	state := c.grantedState(req)

	rsp := req.MakeResponse()
	rsp.Payload = c.Read(req.BaseAddr)
	rsp.GrantedState = state
	rsp.SetFlag(coherence.FlagSuccess, true)

	c.send(rsp)
}

func (c *Comp) grantedState(req *coherence.Msg) coherence.State {
	if c.variant == coherence.SingleWriter {
		if req.Cmd == coherence.CmdGetS {
			return coherence.StateE
		}

		return coherence.StateM
	}

	e := c.entry(req.BaseAddr)
	requester := req.Src

	if req.Cmd != coherence.CmdGetS {
		e.owner = requester
		e.sharers = make(map[string]bool)

		return coherence.StateM
	}

	if e.isUncached() {
		e.owner = requester
		return coherence.StateE
	}

	e.sharers[requester] = true

	return coherence.StateS
}

func (c *Comp) completeFlush(req *coherence.Msg) {
	if len(req.Payload) > 0 {
		c.Write(req.BaseAddr, req.Payload)
	}

	rsp := req.MakeResponse()
	rsp.SetFlag(coherence.FlagSuccess, true)

	c.send(rsp)
}

func (c *Comp) recvWriteback(msg *coherence.Msg) {
	addr := msg.BaseAddr
	src := msg.Src

	if len(msg.Payload) > 0 {
		c.Write(addr, msg.Payload)
	}

	if c.variant == coherence.SingleWriter {
		c.send(msg.MakeResponse())
		return
	}

	e := c.entry(addr)
	e.drop(src)

	if e.waiting[src] {
		c.countAck(addr, src)
		return
	}

	c.send(msg.MakeResponse())
}

func (c *Comp) recvSnoopResponse(msg *coherence.Msg) {
	addr := msg.BaseAddr
	src := msg.Src
	e := c.entry(addr)

	if !e.waiting[src] {
		log.Panicf("%s: unexpected %s", c.name, msg)
	}

	if len(msg.Payload) > 0 {
		c.Write(addr, msg.Payload)
	}

	if msg.Cmd == coherence.CmdGetSResp {
		e.owner = ""
		e.sharers[src] = true
	} else {
		e.drop(src)
	}

	c.countAck(addr, src)
}

func (c *Comp) countAck(addr uint64, src string) {
	delete(c.entry(addr).waiting, src)

	remaining, err := c.mshr.DecrementAcks(addr)
	if err != nil {
		log.Panicf("%s: %v", c.name, err)
	}

	if remaining > 0 {
		return
	}

	c.complete(c.mshr.LookupFront(addr))
	c.serve(addr)
}
