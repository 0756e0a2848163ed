package coherence_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/coherence/mem/coherence"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Incoherent Controller", func() {
	var (
		mockCtrl *gomock.Controller
		mshr     *MockMSHR
		c        *coherence.Controller
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mshr = NewMockMSHR(mockCtrl)

		c = coherence.MakeBuilder().
			WithVariant(coherence.SingleWriter).
			WithTagLatency(1).
			WithAccessLatency(3).
			WithMSHRLatency(2).
			WithMSHR(mshr).
			Build("L1")
		c.UpdateTimestamp(10)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("accesses", func() {
		It("should install a read miss as E", func() {
			line := makeLine(coherence.StateI)
			getS := coreReq(coherence.CmdGetS, 0x100).Build()

			action, err := c.HandleRequest(getS, line, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Stall))
			Expect(line.State).To(Equal(coherence.StateIS))
			Expect(c.DrainDown()).To(HaveLen(1))

			action, err = c.HandleResponse(
				fromBelow(coherence.CmdGetSResp).
					WithGrantedState(coherence.StateS).
					WithPayload(linePattern(4)).
					Build(),
				line, getS)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Done))
			Expect(line.State).To(Equal(coherence.StateE))
			Expect(c.DrainUp()).To(HaveLen(1))
		})

		It("should keep a granted M", func() {
			line := makeLine(coherence.StateIS)
			getS := coreReq(coherence.CmdGetS, 0x100).Build()

			_, err := c.HandleResponse(
				fromBelow(coherence.CmdGetSResp).
					WithGrantedState(coherence.StateM).
					WithPayload(linePattern(4)).
					Build(),
				line, getS)

			Expect(err).NotTo(HaveOccurred())
			Expect(line.State).To(Equal(coherence.StateM))
		})

		It("should complete a write miss", func() {
			line := makeLine(coherence.StateI)
			getX := coreReq(coherence.CmdGetX, 0x100).
				WithPayload([]byte{3, 3, 3, 3}).
				Build()

			action, err := c.HandleRequest(getX, line, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Stall))
			Expect(line.State).To(Equal(coherence.StateIM))
			c.DrainDown()

			action, err = c.HandleResponse(
				fromBelow(coherence.CmdGetXResp).
					WithGrantedState(coherence.StateM).
					WithPayload(linePattern(4)).
					Build(),
				line, getX)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Done))
			Expect(line.State).To(Equal(coherence.StateM))
			Expect(line.Data[:4]).To(Equal([]byte{3, 3, 3, 3}))
		})

		It("should promote E to M in place", func() {
			line := makeLine(coherence.StateE)

			action, err := c.HandleRequest(
				coreReq(coherence.CmdGetX, 0x100).WithPayload([]byte{1, 2, 3, 4}).Build(),
				line, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Done))
			Expect(line.State).To(Equal(coherence.StateM))
			Expect(c.DrainDown()).To(BeEmpty())
			Expect(c.DrainUp()).To(HaveLen(1))
		})

		DescribeTable("busy lines block",
			func(state coherence.State) {
				action, err := c.HandleRequest(
					coreReq(coherence.CmdGetS, 0x100).Build(), makeLine(state), false)

				Expect(err).NotTo(HaveOccurred())
				Expect(action).To(Equal(coherence.Block))
			},
			Entry("IS", coherence.StateIS),
			Entry("IM", coherence.StateIM),
			Entry("S_B", coherence.StateSB),
			Entry("I_B", coherence.StateIB),
		)

		It("should reject shared states", func() {
			_, err := c.HandleRequest(
				coreReq(coherence.CmdGetS, 0x100).Build(), makeLine(coherence.StateS), false)

			Expect(err).To(BeAssignableToTypeOf(&coherence.ProtocolViolation{}))
		})
	})

	Context("flush", func() {
		It("should flush a dirty line and keep it", func() {
			line := makeLine(coherence.StateM)
			flush := coreReq(coherence.CmdFlushLine, 0x100).Build()

			action, err := c.HandleRequest(flush, line, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Stall))
			Expect(line.State).To(Equal(coherence.StateSB))

			down := c.DrainDown()
			Expect(down).To(HaveLen(1))
			Expect(down[0].Msg.Cmd).To(Equal(coherence.CmdFlushLine))
			Expect(down[0].Msg.Payload).To(Equal(linePattern(1)))
			Expect(down[0].Msg.HasFlag(coherence.FlagDirty)).To(BeTrue())
			Expect(down[0].AckRequired).To(BeTrue())

			action, err = c.HandleResponse(
				fromBelow(coherence.CmdFlushLineResp).WithFlags(coherence.FlagSuccess).Build(),
				line, flush)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Done))
			Expect(line.State).To(Equal(coherence.StateE))
			Expect(line.Data).To(Equal(linePattern(1)))

			up := c.DrainUp()
			Expect(up).To(HaveLen(1))
			Expect(up[0].Msg.Cmd).To(Equal(coherence.CmdFlushLineResp))
			Expect(up[0].Msg.Dst).To(Equal("Core"))
			Expect(up[0].Msg.HasFlag(coherence.FlagSuccess)).To(BeTrue())
			Expect(up[0].Msg.Payload).To(BeEmpty())
		})

		It("should flush and invalidate a clean line", func() {
			line := makeLine(coherence.StateE)
			flush := coreReq(coherence.CmdFlushLineInv, 0x100).Build()

			_, err := c.HandleRequest(flush, line, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(line.State).To(Equal(coherence.StateIB))

			down := c.DrainDown()
			Expect(down[0].Msg.Payload).To(Equal(linePattern(1)))
			Expect(down[0].Msg.HasFlag(coherence.FlagDirty)).To(BeFalse())

			action, err := c.HandleResponse(
				fromBelow(coherence.CmdFlushLineResp).WithFlags(coherence.FlagSuccess).Build(),
				line, flush)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Done))
			Expect(line.State).To(Equal(coherence.StateI))
		})

		It("should forward a flush of an invalid line without data", func() {
			line := makeLine(coherence.StateI)

			action, err := c.HandleRequest(
				coreReq(coherence.CmdFlushLine, 0x100).Build(), line, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Stall))
			Expect(line.State).To(Equal(coherence.StateIB))
			Expect(c.DrainDown()[0].Msg.Payload).To(BeEmpty())
		})

		It("should forward a flush of an absent line", func() {
			flush := coreReq(coherence.CmdFlushLineInv, 0x100).Build()

			action, err := c.HandleRequest(flush, nil, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Stall))

			down := c.DrainDown()
			Expect(down).To(HaveLen(1))
			Expect(down[0].DeliveryTime).To(Equal(uint64(11)))

			action, err = c.HandleResponse(
				fromBelow(coherence.CmdFlushLineResp).Build(), nil, flush)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Done))

			up := c.DrainUp()
			Expect(up).To(HaveLen(1))
			Expect(up[0].Msg.HasFlag(coherence.FlagSuccess)).To(BeFalse())
		})

		It("should fail the flush of a locked line", func() {
			line := makeLine(coherence.StateM)
			line.LockCount = 1

			action, err := c.HandleRequest(
				coreReq(coherence.CmdFlushLine, 0x100).Build(), line, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Done))
			Expect(line.State).To(Equal(coherence.StateM))
			Expect(c.DrainDown()).To(BeEmpty())

			up := c.DrainUp()
			Expect(up).To(HaveLen(1))
			Expect(up[0].Msg.Cmd).To(Equal(coherence.CmdFlushLineResp))
			Expect(up[0].Msg.HasFlag(coherence.FlagSuccess)).To(BeFalse())
		})

		It("should block a flush on a busy line", func() {
			action, err := c.HandleRequest(
				coreReq(coherence.CmdFlushLine, 0x100).Build(), makeLine(coherence.StateIM), false)

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Block))
		})

		It("should reject a flush response without a flush", func() {
			_, err := c.HandleResponse(
				fromBelow(coherence.CmdFlushLineResp).Build(), makeLine(coherence.StateE),
				coreReq(coherence.CmdFlushLine, 0x100).Build())

			Expect(err).To(BeAssignableToTypeOf(&coherence.ProtocolViolation{}))
		})

		It("should retry NACKed flushes", func() {
			retry, err := c.IsRetryNeeded(
				coreReq(coherence.CmdFlushLine, 0x100).Build(), nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(retry).To(BeTrue())
		})
	})

	Context("eviction", func() {
		It("should write back E without data", func() {
			line := makeLine(coherence.StateE)
			mshr.EXPECT().InsertWriteback(uint64(0x100))

			action, err := c.HandleEviction(line, "Core")

			Expect(err).NotTo(HaveOccurred())
			Expect(action).To(Equal(coherence.Done))
			Expect(line.State).To(Equal(coherence.StateI))

			down := c.DrainDown()
			Expect(down[0].Msg.Cmd).To(Equal(coherence.CmdPutE))
			Expect(down[0].Msg.Payload).To(BeEmpty())
		})

		DescribeTable("busy lines stall",
			func(state coherence.State) {
				line := makeLine(state)

				action, err := c.HandleEviction(line, "Core")

				Expect(err).NotTo(HaveOccurred())
				Expect(action).To(Equal(coherence.Stall))
				Expect(line.Data).To(Equal(linePattern(1)))
			},
			Entry("IS", coherence.StateIS),
			Entry("IM", coherence.StateIM),
			Entry("S_B", coherence.StateSB),
			Entry("I_B", coherence.StateIB),
		)
	})

	Context("snoops", func() {
		DescribeTable("are violations",
			func(cmd coherence.Command, line *coherence.CacheLine) {
				_, err := c.HandleInvalidation(fromBelow(cmd).Build(), line, false)

				Expect(err).To(BeAssignableToTypeOf(&coherence.ProtocolViolation{}))
			},
			Entry("Inv", coherence.CmdInv, makeLine(coherence.StateE)),
			Entry("Fetch", coherence.CmdFetch, makeLine(coherence.StateM)),
			Entry("FetchInv on an absent line",
				coherence.CmdFetchInv, (*coherence.CacheLine)(nil)),
			Entry("FetchInvX", coherence.CmdFetchInvX, makeLine(coherence.StateI)),
		)
	})
})
