package coherence

import "github.com/sarchlab/coherence/sim"

// protocol is one row set of the transition tables. Only the variants in
// this package implement it.
type protocol interface {
	handleEviction(line *CacheLine, requester string) (Action, error)
	handleRequest(msg *Msg, line *CacheLine, replay bool) (Action, error)
	handleResponse(msg *Msg, line *CacheLine, orig *Msg) (Action, error)
	handleInvalidation(msg *Msg, line *CacheLine, replay bool) (Action, error)
	isRetryNeeded(msg *Msg, line *CacheLine) (bool, error)
}

// A Controller decides, for every message that touches a cache line, the
// next state of the line, what happens to the message, and which messages to
// send out.
//
// The controller never delivers messages itself. Every send becomes an
// Envelope that carries the cycle at which the message must arrive. The
// owner drains the envelopes after each call.
type Controller struct {
	*sim.HookableBase

	name     string
	cfg      Config
	protocol protocol
	mshr     MSHR

	timestamp uint64
	down, up  EnvelopeQueue
}

// Name returns the name of the controller.
func (c *Controller) Name() string {
	return c.name
}

// Config returns the configuration of the controller.
func (c *Controller) Config() Config {
	return c.cfg
}

// Variant returns the protocol the controller runs.
func (c *Controller) Variant() Variant {
	return c.cfg.Variant
}

// MSHR returns the MSHR the controller shares with its cache.
func (c *Controller) MSHR() MSHR {
	return c.mshr
}

// UpdateTimestamp sets the current cycle of the controller.
func (c *Controller) UpdateTimestamp(cycle uint64) {
	c.timestamp = cycle
}

// Timestamp returns the current cycle of the controller.
func (c *Controller) Timestamp() uint64 {
	return c.timestamp
}

// HandleEviction is called when the cache wants to reuse line for another
// address.
func (c *Controller) HandleEviction(
	line *CacheLine,
	requester string,
) (Action, error) {
	if line == nil {
		return Stall, c.violation(OpHandleEviction, nil, nil,
			"eviction without a line")
	}

	return c.protocol.handleEviction(line, requester)
}

// HandleRequest processes an access or a flush from above. The replay flag is
// set when the request has been stalled before.
func (c *Controller) HandleRequest(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	return c.protocol.handleRequest(msg, line, replay)
}

// HandleResponse processes a response from below. orig is the request that
// the response completes, if any.
func (c *Controller) HandleResponse(
	msg *Msg,
	line *CacheLine,
	orig *Msg,
) (Action, error) {
	return c.protocol.handleResponse(msg, line, orig)
}

// HandleInvalidation processes a snoop from below. line is nil if the cache
// does not hold the address.
func (c *Controller) HandleInvalidation(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	return c.protocol.handleInvalidation(msg, line, replay)
}

// IsRetryNeeded tells if msg must be sent again after it was NACKed.
func (c *Controller) IsRetryNeeded(msg *Msg, line *CacheLine) (bool, error) {
	return c.protocol.isRetryNeeded(msg, line)
}

// AddToOutgoingQueue queues an envelope towards the lower level.
func (c *Controller) AddToOutgoingQueue(env Envelope) {
	c.down.Push(env)
}

// AddToOutgoingQueueUp queues an envelope towards the requesters.
func (c *Controller) AddToOutgoingQueueUp(env Envelope) {
	c.up.Push(env)
}

// DrainDown removes the queued downward envelopes in delivery order.
func (c *Controller) DrainDown() []Envelope {
	return c.down.Drain()
}

// DrainUp removes the queued upward envelopes in delivery order.
func (c *Controller) DrainUp() []Envelope {
	return c.up.Drain()
}

func (c *Controller) latency(hasData, replay bool) uint64 {
	switch {
	case replay:
		return c.cfg.MSHRLatency
	case hasData:
		return c.cfg.AccessLatency
	default:
		return c.cfg.TagLatency
	}
}

func (c *Controller) deliveryTime(line *CacheLine, latency uint64) uint64 {
	base := c.timestamp
	if line != nil && line.Timestamp > base {
		base = line.Timestamp
	}

	return base + latency
}

func (c *Controller) send(
	msg *Msg,
	line *CacheLine,
	replay, up, ackRequired bool,
) uint64 {
	msg.Src = c.name

	delivery := c.deliveryTime(line, c.latency(len(msg.Payload) > 0, replay))
	env := Envelope{
		Msg:          msg,
		DeliveryTime: delivery,
		AckRequired:  ackRequired,
	}

	if up {
		c.AddToOutgoingQueueUp(env)
	} else {
		c.AddToOutgoingQueue(env)
	}

	if line != nil && delivery > 0 && delivery-1 > line.Timestamp {
		line.Timestamp = delivery - 1
	}

	return delivery
}

// forwardRequest sends a request for the line to the lower level. The write
// data stays with the original request in the MSHR.
func (c *Controller) forwardRequest(msg *Msg, line *CacheLine, replay bool) {
	fwd := MakeMsgBuilder().
		WithCmd(msg.Cmd).
		WithAddress(msg.Addr).
		WithLineSize(c.cfg.LineSize).
		WithSize(c.cfg.LineSize).
		WithRequester(msg.Requester).
		WithFlags(msg.Flags & (FlagPrefetch | FlagNonCacheable)).
		Build()

	c.send(fwd, line, replay, false, true)
}

// forwardFlush sends a flush of the line to the lower level, with the line
// data if it is valid.
func (c *Controller) forwardFlush(msg *Msg, line *CacheLine, replay bool) {
	b := MakeMsgBuilder().
		WithCmd(msg.Cmd).
		WithAddress(msg.Addr).
		WithLineSize(c.cfg.LineSize).
		WithSize(c.cfg.LineSize).
		WithRequester(msg.Requester)

	if line != nil && line.State.IsValid() {
		b = b.WithPayload(line.CopyData())

		if line.State == StateM {
			b = b.WithFlags(FlagDirty)
		}
	}

	c.send(b.Build(), line, replay, false, true)
}

// respondUp answers a request from above. Accesses get the bytes they asked
// for, flushes get no data.
func (c *Controller) respondUp(
	orig *Msg,
	line *CacheLine,
	replay, success bool,
) {
	rsp := orig.MakeResponse()
	rsp.SetFlag(FlagSuccess, success)

	if line != nil && orig.Cmd.IsAccess() {
		rsp.Payload = c.accessedBytes(orig, line)
		rsp.GrantedState = line.State
	}

	c.send(rsp, line, replay, true, false)
}

func (c *Controller) accessedBytes(orig *Msg, line *CacheLine) []byte {
	offset := orig.Addr - line.BaseAddr
	size := orig.Size

	if size == 0 || offset+size > uint64(len(line.Data)) {
		return line.CopyData()
	}

	return append([]byte(nil), line.Data[offset:offset+size]...)
}

// respondDown answers a snoop with the line data.
func (c *Controller) respondDown(
	snoop *Msg,
	line *CacheLine,
	replay, dirty bool,
) {
	rsp := snoop.MakeResponse()
	rsp.Payload = line.CopyData()
	rsp.SetFlag(FlagDirty, dirty)

	c.send(rsp, line, replay, false, false)
}

func (c *Controller) ackInv(snoop *Msg, line *CacheLine, replay bool) {
	c.send(snoop.MakeResponse(), line, replay, false, false)
}

// writeback sends the Put for an evicted line and registers it with the MSHR
// when an AckPut will follow.
func (c *Controller) writeback(cmd Command, line *CacheLine, requester string) {
	dirty := line.State == StateM

	b := MakeMsgBuilder().
		WithCmd(cmd).
		WithAddress(line.BaseAddr).
		WithLineSize(c.cfg.LineSize).
		WithSize(c.cfg.LineSize).
		WithSrc(c.name).
		WithRequester(requester)

	if dirty || c.cfg.WritebackCleanBlocks {
		b = b.WithPayload(line.CopyData())
	}

	if dirty {
		b = b.WithFlags(FlagDirty)
	}

	expectAck := c.cfg.ExpectWritebackAck()
	c.send(b.Build(), line, false, false, expectAck)

	if expectAck {
		c.mshr.InsertWriteback(line.BaseAddr)
	}
}

// completeWrite applies a GetX or GetSX to a line that is in M. It returns
// false for a failed store-conditional.
func (c *Controller) completeWrite(
	op string,
	msg *Msg,
	line *CacheLine,
) (bool, error) {
	if msg.Cmd == CmdGetSX {
		line.LockCount++
		return true, nil
	}

	if msg.HasFlag(FlagLocked) {
		if !line.IsLocked() {
			return false, c.violation(op, msg, line,
				"unlocking store on a line that is not locked")
		}

		line.LockCount--
	}

	success := true
	if msg.HasFlag(FlagAtomic) {
		success = line.Reserved
	}

	if success {
		if len(msg.Payload) > 0 {
			line.SetData(msg.Payload, msg.Addr-line.BaseAddr)
		}

		line.Reserved = false
	}

	return success, nil
}

func (c *Controller) handleAckPut(msg *Msg) (Action, error) {
	if c.mshr.PendingWriteback(msg.BaseAddr) {
		if err := c.mshr.RemoveWriteback(msg.BaseAddr); err != nil {
			return Stall, err
		}
	}

	return Done, nil
}

func (c *Controller) isLocalPrefetch(msg *Msg) bool {
	return msg.HasFlag(FlagPrefetch) && msg.Src == c.name
}

func (c *Controller) setState(line *CacheLine, to State, cause *Msg) {
	from := line.State
	line.State = to

	if from == to || c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosTransition,
		Item:   line,
		Detail: TransitionInfo{
			Controller: c.name,
			Cycle:      c.timestamp,
			From:       from,
			To:         to,
			Cause:      cause,
		},
	})
}

func (c *Controller) notifyAccess(msg *Msg, result AccessResult) {
	if c.NumHooks() == 0 {
		return
	}

	accessType := AccessRead
	if msg.Cmd != CmdGetS {
		accessType = AccessWrite
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosAccess,
		Item:   msg,
		Detail: AccessInfo{
			Controller: c.name,
			Cycle:      c.timestamp,
			Type:       accessType,
			Result:     result,
		},
	})
}

// deferForLock parks a message behind the lock of line.
func (c *Controller) deferForLock(line *CacheLine) (Action, error) {
	line.EventsWaitingForLock = true
	return Stall, nil
}

// blocksOnLock tells if a core access has to wait for the lock of line. Loads
// and lock acquisitions go through, plain stores wait.
func blocksOnLock(msg *Msg, line *CacheLine) bool {
	return line.IsLocked() &&
		msg.Cmd == CmdGetX &&
		!msg.HasFlag(FlagLocked)
}

// resolveAbsentSnoop handles a snoop for an address the cache holds no valid
// copy of. A Put in flight answers the snoop by itself.
func (c *Controller) resolveAbsentSnoop(msg *Msg) (Action, error) {
	if !c.mshr.PendingWriteback(msg.BaseAddr) {
		return Ignore, nil
	}

	if err := c.mshr.RemoveWriteback(msg.BaseAddr); err != nil {
		return Stall, err
	}

	return Done, nil
}

func (c *Controller) installData(msg *Msg, line *CacheLine) {
	if len(msg.Payload) == 0 {
		return
	}

	line.SetData(msg.Payload, 0)
}

// writebackRetryNeeded tells if a NACKed Put still has to reach the lower
// level. An untracked Put always does.
func (c *Controller) writebackRetryNeeded(msg *Msg) bool {
	if !c.cfg.ExpectWritebackAck() {
		return true
	}

	return c.mshr.PendingWriteback(msg.BaseAddr)
}
