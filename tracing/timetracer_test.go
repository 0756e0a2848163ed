package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/coherence/sim"
	"go.uber.org/mock/gomock"
)

var _ = Describe("TimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		tracer     *TimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		tracer = NewTimeTracer(timeTeller, KindIs("req_in"))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should sum and average the task times", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		tracer.StartTask(Task{ID: "a", Kind: "req_in"})
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2))
		tracer.StartTask(Task{ID: "b", Kind: "req_in"})

		Expect(tracer.InflightCount()).To(Equal(2))

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(4))
		tracer.EndTask(Task{ID: "a"})
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(5))
		tracer.EndTask(Task{ID: "b"})

		Expect(tracer.TotalTime()).To(BeNumerically("~", 6))
		Expect(tracer.TotalCount()).To(Equal(uint64(2)))
		Expect(tracer.AverageTime()).To(BeNumerically("~", 3))
		Expect(tracer.InflightCount()).To(Equal(0))
	})

	It("should ignore filtered tasks", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1)).Times(2)
		tracer.StartTask(Task{ID: "a", Kind: "req_out"})
		tracer.EndTask(Task{ID: "a"})

		Expect(tracer.TotalCount()).To(Equal(uint64(0)))
		Expect(tracer.AverageTime()).To(Equal(sim.VTimeInSec(0)))
	})
})
