package coherence

// incoherentProtocol is the single-writer protocol. Only one cache ever
// holds a copy of a line, so there are no sharers to invalidate. Software
// pushes data down with FlushLine and FlushLineInv instead.
type incoherentProtocol struct {
	c *Controller
}

func (p *incoherentProtocol) handleEviction(
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
	case StateIS, StateIM, StateSB, StateIB:
		return Stall, nil
	case StateE:
		put = CmdPutE
	case StateM:
		put = CmdPutM
	default:
		return Stall, c.violation(OpHandleEviction, nil, line,
			"state not in the single-writer state set")
	}

	c.writeback(put, line, requester)

	line.Reserved = false
	line.Prefetch = false
	c.setState(line, StateI, nil)

	return Done, nil
}

func (p *incoherentProtocol) handleRequest(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	if msg.Cmd.IsFlush() {
		return p.handleFlush(msg, line, replay)
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
	case StateIS, StateIM, StateSB, StateIB:
		return Block, nil
	case StateI:
		return p.handleMiss(msg, line, replay)
	case StateE, StateM:
		return p.handleHit(msg, line, replay)
	default:
		return Stall, c.violation(OpHandleRequest, msg, line,
			"state not in the single-writer state set")
	}
}

func (p *incoherentProtocol) handleMiss(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	c.forwardRequest(msg, line, replay)

	if msg.Cmd == CmdGetS {
		c.setState(line, StateIS, msg)
	} else {
		c.setState(line, StateIM, msg)
	}

	return Stall, nil
}

func (p *incoherentProtocol) handleHit(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	if msg.Cmd == CmdGetS {
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

	if line.State == StateE {
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

func (p *incoherentProtocol) handleFlush(
	msg *Msg,
	line *CacheLine,
	replay bool,
) (Action, error) {
	c := p.c

	if line == nil {
		c.forwardFlush(msg, nil, replay)
		return Stall, nil
	}

	if line.IsLocked() {
		c.respondUp(msg, line, replay, false)
		return Done, nil
	}

	switch line.State {
	case StateIS, StateIM, StateSB, StateIB:
		return Block, nil
	case StateI:
		c.forwardFlush(msg, line, replay)
		c.setState(line, StateIB, msg)

		return Stall, nil
	case StateE, StateM:
		c.forwardFlush(msg, line, replay)
		line.Reserved = false

		if msg.Cmd == CmdFlushLine {
			c.setState(line, StateSB, msg)
		} else {
			c.setState(line, StateIB, msg)
		}

		return Stall, nil
	default:
		return Stall, c.violation(OpHandleRequest, msg, line,
			"state not in the single-writer state set")
	}
}

func (p *incoherentProtocol) handleResponse(
	msg *Msg,
	line *CacheLine,
	orig *Msg,
) (Action, error) {
	c := p.c

	switch msg.Cmd {
	case CmdAckPut:
		return c.handleAckPut(msg)
	case CmdFlushLineResp:
		return p.handleFlushResp(msg, line, orig)
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
		c.installData(msg, line)

		if msg.GrantedState == StateM {
			c.setState(line, StateM, msg)
		} else {
			c.setState(line, StateE, msg)
		}

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
	case StateIM:
		c.installData(msg, line)
		c.setState(line, StateM, msg)

		success, err := c.completeWrite(OpHandleResponse, orig, line)
		if err != nil {
			return Stall, err
		}

		c.respondUp(orig, line, true, success)
		c.notifyAccess(orig, AccessMiss)

		return Done, nil
	default:
		return Stall, c.violation(OpHandleResponse, msg, line,
			"data response while no transaction is outstanding")
	}
}

func (p *incoherentProtocol) handleFlushResp(
	msg *Msg,
	line *CacheLine,
	orig *Msg,
) (Action, error) {
	c := p.c

	if orig == nil || !orig.Cmd.IsFlush() {
		return Stall, c.violation(OpHandleResponse, msg, line,
			"flush response without an outstanding flush")
	}

	if line != nil {
		switch line.State {
		case StateSB:
			c.setState(line, StateE, msg)
		case StateIB:
			line.Prefetch = false
			c.setState(line, StateI, msg)
		case StateI:
		default:
			return Stall, c.violation(OpHandleResponse, msg, line,
				"flush response while no flush is outstanding")
		}
	}

	c.respondUp(orig, line, true, msg.HasFlag(FlagSuccess))

	return Done, nil
}

func (p *incoherentProtocol) handleInvalidation(
	msg *Msg,
	line *CacheLine,
	_ bool,
) (Action, error) {
	return Stall, p.c.violation(OpHandleInvalidation, msg, line,
		"snoops are not part of the single-writer protocol")
}

func (p *incoherentProtocol) isRetryNeeded(
	msg *Msg,
	line *CacheLine,
) (bool, error) {
	switch {
	case msg.Cmd.IsAccess(), msg.Cmd.IsFlush():
		return true, nil
	case msg.Cmd.IsWriteback():
		return p.c.writebackRetryNeeded(msg), nil
	default:
		return false, p.c.violation(OpIsRetryNeeded, msg, line,
			"%s is never retried", msg.Cmd)
	}
}
