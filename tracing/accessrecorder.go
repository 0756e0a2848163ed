package tracing

import (
	"github.com/sarchlab/coherence/datarecording"
	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/sim"
)

// The tables an AccessRecorder writes.
const (
	AccessTableName     = "coherence_access"
	TransitionTableName = "coherence_transition"
)

// An AccessEntry is a row of the access table.
type AccessEntry struct {
	Controller string
	Cycle      uint64
	MsgID      string
	Cmd        string
	Addr       uint64
	Requester  string
	Type       string
	Result     string
}

// A TransitionEntry is a row of the transition table.
type TransitionEntry struct {
	Controller string
	Cycle      uint64
	Addr       uint64
	From       string
	To         string
	Cause      string
}

// An AccessRecorder writes every completed access and every line state
// transition of the controllers it is attached to into a DataRecorder.
type AccessRecorder struct {
	recorder datarecording.DataRecorder
}

// NewAccessRecorder creates the tables and returns the recorder.
func NewAccessRecorder(recorder datarecording.DataRecorder) *AccessRecorder {
	recorder.CreateTable(AccessTableName, AccessEntry{})
	recorder.CreateTable(TransitionTableName, TransitionEntry{})

	return &AccessRecorder{recorder: recorder}
}

// Func records the access or the transition.
func (r *AccessRecorder) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case coherence.HookPosAccess:
		r.recordAccess(ctx)
	case coherence.HookPosTransition:
		r.recordTransition(ctx)
	}
}

func (r *AccessRecorder) recordAccess(ctx sim.HookCtx) {
	msg := ctx.Item.(*coherence.Msg)
	info := ctx.Detail.(coherence.AccessInfo)

	r.recorder.InsertData(AccessTableName, AccessEntry{
		Controller: info.Controller,
		Cycle:      info.Cycle,
		MsgID:      msg.ID,
		Cmd:        msg.Cmd.String(),
		Addr:       msg.Addr,
		Requester:  msg.Requester,
		Type:       info.Type.String(),
		Result:     info.Result.String(),
	})
}

func (r *AccessRecorder) recordTransition(ctx sim.HookCtx) {
	line := ctx.Item.(*coherence.CacheLine)
	info := ctx.Detail.(coherence.TransitionInfo)

	cause := ""
	if info.Cause != nil {
		cause = info.Cause.Cmd.String()
	}

	r.recorder.InsertData(TransitionTableName, TransitionEntry{
		Controller: info.Controller,
		Cycle:      info.Cycle,
		Addr:       line.BaseAddr,
		From:       info.From.String(),
		To:         info.To.String(),
		Cause:      cause,
	})
}
