// Package link delivers coherence messages between named components.
package link

import (
	"log"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/sim"
)

// HookPosSend marks a message being handed to the link. The item is the
// message and the detail is the delivery cycle.
var HookPosSend = &sim.HookPos{Name: "LinkSend"}

// HookPosNACK marks a message being bounced back to its sender.
var HookPosNACK = &sim.HookPos{Name: "LinkNACK"}

// An Endpoint is a component that can be plugged into a link.
type Endpoint interface {
	sim.Named
	sim.Handler
}

// DeliveryEvent hands a message to its destination.
type DeliveryEvent struct {
	*sim.EventBase
	Msg *coherence.Msg
}

// NACKEvent returns a message that its destination refused to the sender.
type NACKEvent struct {
	*sim.EventBase
	Msg *coherence.Msg
}

type pair struct {
	src, dst string
}

// A Link connects coherence components. Messages between the same pair of
// components arrive in the order they are sent.
type Link struct {
	*sim.HookableBase

	name    string
	engine  sim.Engine
	freq    sim.Freq
	latency uint64

	ends         map[string]Endpoint
	lastDelivery map[pair]uint64
}

// Name returns the name of the link.
func (l *Link) Name() string {
	return l.name
}

// PlugIn connects an endpoint to the link.
func (l *Link) PlugIn(e Endpoint) {
	if _, found := l.ends[e.Name()]; found {
		log.Panicf("%s is already connected to %s", e.Name(), l.name)
	}

	l.ends[e.Name()] = e
}

// Endpoints returns the names of the connected endpoints.
func (l *Link) Endpoints() []string {
	names := make([]string, 0, len(l.ends))
	for name := range l.ends {
		names = append(names, name)
	}

	return names
}

// Send schedules the delivery of an envelope. The message arrives at the
// delivery cycle of the envelope plus the wire latency, but never before an
// earlier message between the same pair of components.
func (l *Link) Send(env coherence.Envelope) {
	msg := env.Msg
	dst := l.msgMustBeValid(msg)

	p := pair{src: msg.Src, dst: msg.Dst}
	cycle := env.DeliveryTime + l.latency

	now := l.freq.Cycle(l.engine.CurrentTime())
	if cycle <= now {
		cycle = now + 1
	}

	if last := l.lastDelivery[p]; cycle < last {
		cycle = last
	}

	l.lastDelivery[p] = cycle

	l.InvokeHook(sim.HookCtx{
		Domain: l,
		Pos:    HookPosSend,
		Item:   msg,
		Detail: cycle,
	})

	l.engine.Schedule(&DeliveryEvent{
		EventBase: sim.NewEventBase(l.freq.CycleTime(cycle), dst),
		Msg:       msg,
	})
}

// NACK returns msg to its sender in the next cycle.
func (l *Link) NACK(msg *coherence.Msg) {
	src, found := l.ends[msg.Src]
	if !found {
		log.Panicf("%s: cannot NACK, %s is not connected", l.name, msg.Src)
	}

	cycle := l.freq.Cycle(l.engine.CurrentTime()) + 1

	l.InvokeHook(sim.HookCtx{
		Domain: l,
		Pos:    HookPosNACK,
		Item:   msg,
		Detail: cycle,
	})

	l.engine.Schedule(&NACKEvent{
		EventBase: sim.NewEventBase(l.freq.CycleTime(cycle), src),
		Msg:       msg,
	})
}

func (l *Link) msgMustBeValid(msg *coherence.Msg) Endpoint {
	if msg.Src == "" || msg.Dst == "" {
		log.Panicf("%s: src or dst of %s is not given", l.name, msg)
	}

	if msg.Src == msg.Dst {
		log.Panicf("%s: %s is sent back to its src", l.name, msg)
	}

	if _, found := l.ends[msg.Src]; !found {
		log.Panicf("%s: src %s is not connected", l.name, msg.Src)
	}

	dst, found := l.ends[msg.Dst]
	if !found {
		log.Panicf("%s: dst %s is not connected", l.name, msg.Dst)
	}

	return dst
}

// A Builder can build links.
type Builder struct {
	engine  sim.Engine
	freq    sim.Freq
	latency uint64
}

// MakeBuilder creates a Builder with a 1 GHz clock and no wire latency.
func MakeBuilder() Builder {
	return Builder{
		freq: 1 * sim.GHz,
	}
}

// WithEngine sets the engine that delivers the messages.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the clock that converts cycles to time.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLatency sets the wire latency in cycles.
func (b Builder) WithLatency(cycles uint64) Builder {
	b.latency = cycles
	return b
}

// Build creates a new Link.
func (b Builder) Build(name string) *Link {
	sim.NameMustBeValid(name)

	if b.engine == nil {
		log.Panicf("cannot build link %s: engine not set", name)
	}

	return &Link{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		freq:         b.freq,
		latency:      b.latency,
		ends:         make(map[string]Endpoint),
		lastDelivery: make(map[pair]uint64),
	}
}
