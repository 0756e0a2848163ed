package acceptance

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/sim"
)

const maxErrors = 32

// A LineHolder exposes the lines of a cache to the checker.
type LineHolder interface {
	sim.Named
	Lines(f func(line *coherence.CacheLine))
	HasTransaction(addr uint64) bool
}

type write struct {
	agent     string
	value     uint32
	issued    uint64
	completed uint64
	done      bool
}

type read struct {
	issued uint64
}

// A Checker verifies the values that loads return and, after every event,
// the states of the cache lines.
type Checker struct {
	variant coherence.Variant
	holders []LineHolder

	writes map[uint64][]*write
	byID   map[string]*write
	reads  map[string]read

	errors []string
}

// NewChecker creates a checker for caches that run the given protocol.
func NewChecker(variant coherence.Variant) *Checker {
	return &Checker{
		variant: variant,
		writes:  make(map[uint64][]*write),
		byID:    make(map[string]*write),
		reads:   make(map[string]read),
	}
}

// Watch adds a cache whose lines are checked after every event.
func (c *Checker) Watch(h LineHolder) {
	c.holders = append(c.holders, h)
}

// Errors returns the violations found so far.
func (c *Checker) Errors() []string {
	return c.errors
}

func (c *Checker) fail(format string, args ...any) {
	if len(c.errors) >= maxErrors {
		return
	}

	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

// Issue records a request that an agent sends.
func (c *Checker) Issue(req *coherence.Msg, cycle uint64) {
	switch req.Cmd {
	case coherence.CmdGetX:
		w := &write{
			agent:  req.Src,
			value:  binary.LittleEndian.Uint32(req.Payload),
			issued: cycle,
		}
		c.writes[req.Addr] = append(c.writes[req.Addr], w)
		c.byID[req.ID] = w
	case coherence.CmdGetS, coherence.CmdGetSX:
		c.reads[req.ID] = read{issued: cycle}
	}
}

// Complete records the response to a request and checks the value that a
// load returns.
func (c *Checker) Complete(req, rsp *coherence.Msg, cycle uint64) {
	if w, found := c.byID[req.ID]; found {
		w.completed = cycle
		w.done = true
		delete(c.byID, req.ID)

		return
	}

	r, found := c.reads[req.ID]
	if !found {
		return
	}

	delete(c.reads, req.ID)

	if len(rsp.Payload) < 4 {
		c.fail("%s: %s at 0x%x returned %d bytes",
			req.Src, req.Cmd, req.Addr, len(rsp.Payload))
		return
	}

	value := binary.LittleEndian.Uint32(rsp.Payload)
	c.checkValue(req, value, r.issued, cycle)
}

func (c *Checker) checkValue(
	req *coherence.Msg,
	value uint32,
	issued, completed uint64,
) {
	writes := c.writes[req.Addr]

	if value == 0 {
		for _, w := range writes {
			if w.done && w.completed < issued {
				c.fail("%s: read 0 at 0x%x at cycle %d, "+
					"but %s wrote 0x%x at cycle %d",
					req.Src, req.Addr, completed, w.agent, w.value, w.completed)
				return
			}
		}

		return
	}

	var src *write

	for _, w := range writes {
		if w.value == value {
			src = w
			break
		}
	}

	if src == nil || src.issued > completed {
		c.fail("%s: read 0x%x at 0x%x, which was never written",
			req.Src, value, req.Addr)
		return
	}

	if !src.done {
		return
	}

	for _, w := range writes {
		if w.done && src.completed < w.issued && w.completed < issued {
			c.fail("%s: read stale 0x%x at 0x%x, overwritten by 0x%x "+
				"at cycle %d", req.Src, value, req.Addr, w.value, w.completed)
			return
		}
	}
}

// Func checks the cache lines after an event is handled.
func (c *Checker) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	c.CheckLines()
}

type holding struct {
	readers []string
	owners  []string
}

// CheckLines checks the states of all the watched cache lines.
func (c *Checker) CheckLines() {
	byAddr := make(map[uint64]*holding)

	for _, h := range c.holders {
		h.Lines(func(line *coherence.CacheLine) {
			if line.State == coherence.StateI {
				return
			}

			c.checkLine(h, line)

			e := byAddr[line.BaseAddr]
			if e == nil {
				e = &holding{}
				byAddr[line.BaseAddr] = e
			}

			switch line.State {
			case coherence.StateE, coherence.StateM:
				e.owners = append(e.owners, h.Name())
			case coherence.StateS, coherence.StateSM:
				e.readers = append(e.readers, h.Name())
			}
		})
	}

	if c.variant != coherence.FullCoherence {
		return
	}

	for addr, e := range byAddr {
		if len(e.owners) > 1 {
			c.fail("0x%x is exclusive in %v", addr, e.owners)
		}

		if len(e.owners) > 0 && len(e.readers) > 0 {
			c.fail("0x%x is exclusive in %v and shared in %v",
				addr, e.owners, e.readers)
		}
	}
}

func (c *Checker) checkLine(h LineHolder, line *coherence.CacheLine) {
	if !c.variant.HasState(line.State) {
		c.fail("%s: 0x%x is in %s, which %s does not have",
			h.Name(), line.BaseAddr, line.State, c.variant)
	}

	busy := h.HasTransaction(line.BaseAddr)
	if line.State.IsTransient() != busy {
		c.fail("%s: 0x%x is in %s, transaction in flight: %t",
			h.Name(), line.BaseAddr, line.State, busy)
	}

	if line.LockCount < 0 {
		c.fail("%s: 0x%x has lock count %d",
			h.Name(), line.BaseAddr, line.LockCount)
	}
}
