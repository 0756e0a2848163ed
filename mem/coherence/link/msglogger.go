package link

import (
	"log"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/sim"
)

// MsgLogger is a hook that logs every message sent over a link.
type MsgLogger struct {
	*log.Logger
}

// NewMsgLogger returns a new MsgLogger which writes into the logger.
func NewMsgLogger(logger *log.Logger) *MsgLogger {
	return &MsgLogger{Logger: logger}
}

// Func writes the message information into the logger.
func (h *MsgLogger) Func(ctx sim.HookCtx) {
	msg, ok := ctx.Item.(*coherence.Msg)
	if !ok {
		return
	}

	h.Printf("%d,%s,%s,%s,%s,%s,0x%x\n",
		ctx.Detail, ctx.Pos.Name,
		msg.Src, msg.Dst, msg.Cmd, msg.ID, msg.BaseAddr)
}
