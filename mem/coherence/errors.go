package coherence

import (
	"fmt"
	"strings"
)

// A ProtocolViolation reports a message that the protocol table has no
// transition for. It is a bug in the system configuration or in a peer, and
// the simulation must not continue after it.
type ProtocolViolation struct {
	Controller string
	Variant    Variant
	Op         string
	Cycle      uint64

	Addr      uint64
	Cmd       Command
	Requester string

	LinePresent bool
	State       State

	Reason string
}

func (e *ProtocolViolation) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s protocol violation in %s",
		e.Controller, e.Variant, e.Op)
	fmt.Fprintf(&b, ": cmd %s addr 0x%x requester %q", e.Cmd, e.Addr,
		e.Requester)

	if e.LinePresent {
		fmt.Fprintf(&b, " state %s", e.State)
	} else {
		b.WriteString(" line not present")
	}

	fmt.Fprintf(&b, " at cycle %d: %s", e.Cycle, e.Reason)

	return b.String()
}

// Operation names used in violations.
const (
	OpHandleEviction     = "HandleEviction"
	OpHandleRequest      = "HandleRequest"
	OpHandleResponse     = "HandleResponse"
	OpHandleInvalidation = "HandleInvalidation"
	OpIsRetryNeeded      = "IsRetryNeeded"
)

func (c *Controller) violation(
	op string,
	msg *Msg,
	line *CacheLine,
	format string,
	args ...interface{},
) *ProtocolViolation {
	v := &ProtocolViolation{
		Controller: c.name,
		Variant:    c.cfg.Variant,
		Op:         op,
		Cycle:      c.timestamp,
		Reason:     fmt.Sprintf(format, args...),
	}

	if msg != nil {
		v.Addr = msg.Addr
		v.Cmd = msg.Cmd
		v.Requester = msg.Requester
	}

	if line != nil {
		v.LinePresent = true
		v.State = line.State

		if msg == nil {
			v.Addr = line.BaseAddr
		}
	}

	return v
}
