package coherence

// mesiProtocol is the invalidation-based full-coherence protocol. Lines may
// be shared by many readers, but only one cache may hold a writable copy.
type mesiProtocol struct {
	c *Controller
}

func (p *mesiProtocol) handleEviction(
	line *CacheLine,
	requester string,
) (Action, error) {
	c := p.c

	if line.IsLocked() {
		return c.deferForLock(line)
	}

	var put Command

	switch line.State {
	case StateI:
		return Done, nil
	case StateIS, StateIM, StateSM:
		return Stall, nil
	case StateS:
		put = CmdPutS
	case StateE:
		put = CmdPutE
	case StateM:
		put = CmdPutM
	default:
		return Stall, c.violation(OpHandleEviction, nil, line,
			"state not in the MESI state set")
	}

	c.writeback(put, line, requester)

	line.Reserved = false
	line.Prefetch = false
	c.setState(line, StateI, nil)

	return Done, nil
}

func (p *mesiProtocol) handleRequest(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	if msg.Cmd.IsFlush() {
		return Stall, c.violation(OpHandleRequest, msg, line,
			"flush is not supported by the full-coherence protocol")
	}

	if !msg.Cmd.IsAccess() {
		return Stall, c.violation(OpHandleRequest, msg, line,
			"not a request")
	}

	if line == nil {
		return Stall, c.violation(OpHandleRequest, msg, nil,
			"access without a line")
	}

	if blocksOnLock(msg, line) {
		return c.deferForLock(line)
	}

	switch line.State {
	case StateIS, StateIM, StateSM:
		return Block, nil
	case StateI, StateS, StateE, StateM:
	default:
		return Stall, c.violation(OpHandleRequest, msg, line,
			"state not in the MESI state set")
	}

	if msg.Cmd == CmdGetS {
		return p.handleGetS(msg, line, replay)
	}

	return p.handleGetX(msg, line, replay)
}

func (p *mesiProtocol) handleGetS(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	if line.State == StateI {
		c.forwardRequest(msg, line, replay)
		c.setState(line, StateIS, msg)

		return Stall, nil
	}

	if c.isLocalPrefetch(msg) {
		c.notifyAccess(msg, AccessHit)
		return Done, nil
	}

	line.Prefetch = false

	if msg.HasFlag(FlagAtomic) {
		line.Reserved = true
	}

	c.respondUp(msg, line, replay, true)
	c.notifyAccess(msg, AccessHit)

	return Done, nil
}

func (p *mesiProtocol) handleGetX(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	switch line.State {
	case StateI:
		c.forwardRequest(msg, line, replay)
		c.setState(line, StateIM, msg)

		return Stall, nil
	case StateS:
		c.forwardRequest(msg, line, replay)
		c.setState(line, StateSM, msg)

		return Stall, nil
	case StateE:
		c.setState(line, StateM, msg)
	}

	line.Prefetch = false

	success, err := c.completeWrite(OpHandleRequest, msg, line)
	if err != nil {
		return Stall, err
	}

	c.respondUp(msg, line, replay, success)
	c.notifyAccess(msg, AccessHit)

	return Done, nil
}

func (p *mesiProtocol) handleResponse(
	msg *Msg,
	line *CacheLine,
	orig *Msg,
) (Action, error) {
	c := p.c

	switch msg.Cmd {
	case CmdAckPut:
		return c.handleAckPut(msg)
	case CmdGetSResp, CmdGetXResp:
	default:
		return Stall, c.violation(OpHandleResponse, msg, line,
			"unexpected response")
	}

	if line == nil {
		return Stall, c.violation(OpHandleResponse, msg, nil,
			"data response without a line")
	}

	if orig == nil {
		return Stall, c.violation(OpHandleResponse, msg, line,
			"data response without an outstanding request")
	}

	switch line.State {
	case StateIS:
		return p.completeRead(msg, line, orig)
	case StateIM, StateSM:
		return p.completeWriteMiss(msg, line, orig)
	default:
		return Stall, c.violation(OpHandleResponse, msg, line,
			"data response while no transaction is outstanding")
	}
}

func (p *mesiProtocol) completeRead(
	msg *Msg,
	line *CacheLine,
	orig *Msg,
) (Action, error) {
	c := p.c

	switch msg.GrantedState {
	case StateS, StateE, StateM:
	default:
		return Stall, c.violation(OpHandleResponse, msg, line,
			"granted state %s is not stable", msg.GrantedState)
	}

	c.installData(msg, line)
	c.setState(line, msg.GrantedState, msg)

	if c.isLocalPrefetch(orig) {
		line.Prefetch = true
		c.notifyAccess(orig, AccessMiss)

		return Done, nil
	}

	if orig.HasFlag(FlagAtomic) {
		line.Reserved = true
	}

	c.respondUp(orig, line, true, true)
	c.notifyAccess(orig, AccessMiss)

	return Done, nil
}

func (p *mesiProtocol) completeWriteMiss(
	msg *Msg,
	line *CacheLine,
	orig *Msg,
) (Action, error) {
	c := p.c

	c.installData(msg, line)
	c.setState(line, StateM, msg)

	success, err := c.completeWrite(OpHandleResponse, orig, line)
	if err != nil {
		return Stall, err
	}

	c.respondUp(orig, line, true, success)
	c.notifyAccess(orig, AccessMiss)

	return Done, nil
}

func (p *mesiProtocol) handleInvalidation(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	if !msg.Cmd.IsInvalidation() {
		return Stall, c.violation(OpHandleInvalidation, msg, line,
			"not an invalidation")
	}

	if line == nil || line.State == StateI {
		return c.resolveAbsentSnoop(msg)
	}

	if line.IsLocked() {
		return c.deferForLock(line)
	}

	if !c.cfg.Variant.HasState(line.State) {
		return Stall, c.violation(OpHandleInvalidation, msg, line,
			"state not in the MESI state set")
	}

	switch msg.Cmd {
	case CmdInv:
		return p.handleInv(msg, line, replay)
	case CmdFetch:
		return p.handleFetch(msg, line, replay)
	case CmdFetchInv:
		return p.handleFetchInv(msg, line, replay)
	default:
		return p.handleFetchInvX(msg, line, replay)
	}
}

func (p *mesiProtocol) handleInv(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	switch line.State {
	case StateIS, StateIM:
		return Ignore, nil
	case StateS:
		c.ackInv(msg, line, replay)
		line.Reserved = false
		c.setState(line, StateI, msg)

		return Done, nil
	case StateSM:
		c.ackInv(msg, line, replay)
		line.Reserved = false
		c.setState(line, StateIM, msg)

		return Done, nil
	default:
		return Stall, c.violation(OpHandleInvalidation, msg, line,
			"Inv on an exclusive copy")
	}
}

func (p *mesiProtocol) handleFetch(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	switch line.State {
	case StateIS, StateIM:
		return Ignore, nil
	case StateS, StateSM:
		c.respondDown(msg, line, replay, false)
		return Done, nil
	default:
		return Stall, c.violation(OpHandleInvalidation, msg, line,
			"Fetch on an exclusive copy")
	}
}

func (p *mesiProtocol) handleFetchInv(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	switch line.State {
	case StateIS, StateIM:
		return Ignore, nil
	case StateSM:
		c.respondDown(msg, line, replay, false)
		line.Reserved = false
		c.setState(line, StateIM, msg)

		return Done, nil
	default:
		c.respondDown(msg, line, replay, line.State == StateM)
		line.Reserved = false
		line.Prefetch = false
		c.setState(line, StateI, msg)

		return Done, nil
	}
}

func (p *mesiProtocol) handleFetchInvX(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	switch line.State {
	case StateIS, StateIM, StateSM:
		return Ignore, nil
	case StateE, StateM:
		c.respondDown(msg, line, replay, line.State == StateM)
		line.Reserved = false
		c.setState(line, StateS, msg)

		return Done, nil
	default:
		return Stall, c.violation(OpHandleInvalidation, msg, line,
			"FetchInvX on a shared copy")
	}
}

func (p *mesiProtocol) isRetryNeeded(
	msg *Msg,
	line *CacheLine,
) (bool, error) {
	switch {
	case msg.Cmd.IsAccess():
		return true, nil
	case msg.Cmd.IsWriteback():
		return p.c.writebackRetryNeeded(msg), nil
	default:
		return false, p.c.violation(OpIsRetryNeeded, msg, line,
			"%s is never retried", msg.Cmd)
	}
}
