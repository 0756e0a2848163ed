package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/coherence/sim"
)

type testDomain struct {
	*sim.HookableBase
	name string
}

func (d *testDomain) Name() string {
	return d.name
}

type taskCollector struct {
	started    []Task
	steps      []Task
	milestones []Milestone
	ended      []Task
}

func (c *taskCollector) StartTask(task Task) {
	c.started = append(c.started, task)
}

func (c *taskCollector) StepTask(task Task) {
	c.steps = append(c.steps, task)
}

func (c *taskCollector) AddMilestone(milestone Milestone) {
	c.milestones = append(c.milestones, milestone)
}

func (c *taskCollector) EndTask(task Task) {
	c.ended = append(c.ended, task)
}

var _ = Describe("API", func() {
	var (
		domain    *testDomain
		collector *taskCollector
	)

	BeforeEach(func() {
		domain = &testDomain{HookableBase: sim.NewHookableBase(), name: "L1"}
		collector = &taskCollector{}
		CollectTrace(domain, collector)
	})

	It("should panic if ID is not given", func() {
		Expect(func() {
			StartTask("", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if domain is nil", func() {
		Expect(func() {
			StartTask("id", "123", nil, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if domain's name is empty", func() {
		domain.name = ""
		Expect(func() {
			StartTask("id", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if kind or what is empty", func() {
		Expect(func() {
			StartTask("id", "123", domain, "", "what", nil)
		}).Should(Panic())
		Expect(func() {
			StartTask("id", "123", domain, "kind", "", nil)
		}).Should(Panic())
	})

	It("should panic when the same tracer is attached twice", func() {
		Expect(func() { CollectTrace(domain, collector) }).Should(Panic())
	})

	It("should deliver the life of a task to the tracer", func() {
		StartTask("t1", "p1", domain, "req_in", "GetS", nil)
		AddTaskStep("t1", domain, "hit")
		AddMilestone("t1", domain, MilestoneKindLock, "line locked")
		EndTask("t1", domain)

		Expect(collector.started).To(HaveLen(1))
		Expect(collector.started[0].ParentID).To(Equal("p1"))
		Expect(collector.started[0].Location).To(Equal("L1"))
		Expect(collector.steps[0].Steps[0].What).To(Equal("hit"))
		Expect(collector.milestones[0].Kind).To(Equal(MilestoneKindLock))
		Expect(collector.milestones[0].Location).To(Equal("L1"))
		Expect(collector.ended[0].ID).To(Equal("t1"))
	})

	It("should name tasks at the receiver", func() {
		Expect(MsgIDAtReceiver("m1", domain)).To(Equal("m1@L1"))
	})
})
