package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/sim"
	"go.uber.org/mock/gomock"
)

func accessCtx(
	controller string,
	cmd coherence.Command,
	accessType coherence.AccessType,
	result coherence.AccessResult,
) sim.HookCtx {
	msg := coherence.MakeMsgBuilder().
		WithCmd(cmd).
		WithAddress(0x48).
		WithSrc("Core").
		Build()

	return sim.HookCtx{
		Pos:  coherence.HookPosAccess,
		Item: msg,
		Detail: coherence.AccessInfo{
			Controller: controller,
			Cycle:      7,
			Type:       accessType,
			Result:     result,
		},
	}
}

var _ = Describe("AccessTracer", func() {
	It("should count hits and misses per controller", func() {
		t := NewAccessTracer()

		t.Func(accessCtx("L1B", coherence.CmdGetS,
			coherence.AccessRead, coherence.AccessHit))
		t.Func(accessCtx("L1A", coherence.CmdGetS,
			coherence.AccessRead, coherence.AccessMiss))
		t.Func(accessCtx("L1A", coherence.CmdGetX,
			coherence.AccessWrite, coherence.AccessMiss))
		t.Func(accessCtx("L1A", coherence.CmdGetX,
			coherence.AccessWrite, coherence.AccessHit))
		t.Func(sim.HookCtx{Pos: coherence.HookPosTransition})

		Expect(t.Controllers()).To(Equal([]string{"L1A", "L1B"}))
		Expect(t.Count("L1A")).To(Equal(AccessCount{
			ReadMiss:  1,
			WriteHit:  1,
			WriteMiss: 1,
		}))
		Expect(t.Count("L2")).To(Equal(AccessCount{}))
		Expect(t.Total().Hits()).To(Equal(uint64(2)))
		Expect(t.Total().Misses()).To(Equal(uint64(2)))
	})
})

var _ = Describe("AccessRecorder", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *MockDataRecorder
		r        *AccessRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockDataRecorder(mockCtrl)
		recorder.EXPECT().CreateTable("coherence_access", AccessEntry{})
		recorder.EXPECT().CreateTable("coherence_transition", TransitionEntry{})
		r = NewAccessRecorder(recorder)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record accesses", func() {
		ctx := accessCtx("L1", coherence.CmdGetX,
			coherence.AccessWrite, coherence.AccessMiss)
		msg := ctx.Item.(*coherence.Msg)

		recorder.EXPECT().InsertData("coherence_access", AccessEntry{
			Controller: "L1",
			Cycle:      7,
			MsgID:      msg.ID,
			Cmd:        "GetX",
			Addr:       0x48,
			Requester:  "Core",
			Type:       "Write",
			Result:     "Miss",
		})

		r.Func(ctx)
	})

	It("should record transitions", func() {
		line := coherence.NewCacheLine(64)
		line.BaseAddr = 0x40
		cause := coherence.MakeMsgBuilder().
			WithCmd(coherence.CmdInv).
			Build()

		recorder.EXPECT().InsertData("coherence_transition", TransitionEntry{
			Controller: "L1",
			Cycle:      3,
			Addr:       0x40,
			From:       "S",
			To:         "I",
			Cause:      "Inv",
		})

		r.Func(sim.HookCtx{
			Pos:  coherence.HookPosTransition,
			Item: line,
			Detail: coherence.TransitionInfo{
				Controller: "L1",
				Cycle:      3,
				From:       coherence.StateS,
				To:         coherence.StateI,
				Cause:      cause,
			},
		})
	})
})
