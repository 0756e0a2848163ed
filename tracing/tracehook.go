package tracing

import (
	"log"

	"github.com/sarchlab/coherence/sim"
)

// CollectTrace attaches tracer to a cache, a home node, or any other
// component that reports tasks. Attaching the same tracer twice is a wiring
// bug and panics.
func CollectTrace(component NamedHookable, tracer Tracer) {
	for _, h := range component.Hooks() {
		if th, ok := h.(*traceHook); ok && th.t == tracer {
			log.Panicf("%s already reports to tracer %T",
				component.Name(), tracer)
		}
	}

	component.AcceptHook(&traceHook{t: tracer})
}

// traceHook turns task hook positions into Tracer calls.
type traceHook struct {
	t Tracer
}

func (h *traceHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		h.t.StartTask(ctx.Item.(Task))
	case HookPosTaskStep:
		h.t.StepTask(ctx.Item.(Task))
	case HookPosMilestone:
		h.t.AddMilestone(ctx.Item.(Milestone))
	case HookPosTaskEnd:
		h.t.EndTask(ctx.Item.(Task))
	}
}
