package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/coherence/sim"
	"go.uber.org/mock/gomock"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		recorder   *MockDataRecorder
		tracer     *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		recorder = NewMockDataRecorder(mockCtrl)

		recorder.EXPECT().CreateTable("trace", taskTableEntry{})
		recorder.EXPECT().CreateTable("trace_milestones", Milestone{})

		tracer = NewDBTracer(timeTeller, recorder)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	task := Task{
		ID:       "t1",
		Kind:     "req_in",
		What:     "GetX",
		Location: "L1",
	}

	It("should panic on tasks without a location", func() {
		timeTeller.EXPECT().CurrentTime().AnyTimes()
		Expect(func() {
			tracer.StartTask(Task{ID: "t", Kind: "k", What: "w"})
		}).To(Panic())
	})

	It("should write a task when it ends", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		tracer.StartTask(task)

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(3))
		recorder.EXPECT().InsertData("trace", taskTableEntry{
			ID:        "t1",
			Kind:      "req_in",
			What:      "GetX",
			Location:  "L1",
			StartTime: 1,
			EndTime:   3,
		})
		tracer.EndTask(Task{ID: "t1"})
	})

	It("should record milestones of traced tasks only", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		tracer.StartTask(task)

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2))
		recorder.EXPECT().
			InsertData("trace_milestones", gomock.Any()).
			Do(func(_ string, entry any) {
				m := entry.(Milestone)
				Expect(m.TaskID).To(Equal("t1"))
				Expect(m.Time).To(Equal(2.0))
			})

		tracer.AddMilestone(Milestone{TaskID: "t1", Kind: MilestoneKindMSHR})
		tracer.AddMilestone(Milestone{TaskID: "other", Kind: MilestoneKindMSHR})
	})

	It("should drop tasks that start after the time range", func() {
		tracer.SetTimeRange(0, 5)

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(6))
		tracer.StartTask(task)

		tracer.EndTask(Task{ID: "t1"})
	})

	It("should write unfinished tasks on termination", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		tracer.StartTask(task)

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(9))
		recorder.EXPECT().InsertData("trace", gomock.Any()).
			Do(func(_ string, entry any) {
				Expect(entry.(taskTableEntry).EndTime).To(Equal(9.0))
			})
		recorder.EXPECT().Flush()

		tracer.Terminate()
	})
})
