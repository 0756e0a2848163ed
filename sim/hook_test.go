package sim

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type namedHandler struct {
	name string
}

func (h namedHandler) Name() string {
	return h.name
}

func (h namedHandler) Handle(_ Event) error {
	return nil
}

var _ = Describe("HookableBase", func() {
	It("should invoke hooks in order", func() {
		h := NewHookableBase()
		var order []int

		h.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 1) }))
		h.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 2) }))
		h.InvokeHook(HookCtx{Pos: HookPosBeforeEvent})

		Expect(h.NumHooks()).To(Equal(2))
		Expect(order).To(Equal([]int{1, 2}))
	})
})

var _ = Describe("EventLogger", func() {
	var (
		buf    *bytes.Buffer
		logger *EventLogger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		logger = NewEventLogger(log.New(buf, "", 0))
	})

	It("should print events before they are handled", func() {
		evt := NewEventBase(2, namedHandler{name: "L1"})

		logger.Func(HookCtx{Pos: HookPosAfterEvent, Item: evt})
		Expect(buf.String()).To(BeEmpty())

		logger.Func(HookCtx{Pos: HookPosBeforeEvent, Item: evt})
		Expect(buf.String()).To(Equal("2.0000000000, *sim.EventBase -> L1\n"))
	})

	It("should print events of unnamed handlers", func() {
		ctrl := gomock.NewController(GinkgoT())
		handler := NewMockHandler(ctrl)
		evt := NewEventBase(1, handler)

		logger.Func(HookCtx{Pos: HookPosBeforeEvent, Item: evt})

		Expect(buf.String()).To(Equal("1.0000000000, *sim.EventBase\n"))
	})
})

var _ = Describe("Names", func() {
	It("should accept a plain name", func() {
		Expect(func() { NameMustBeValid("L1[0]") }).NotTo(Panic())
	})

	It("should reject empty names and white spaces", func() {
		Expect(func() { NameMustBeValid("") }).To(Panic())
		Expect(func() { NameMustBeValid("L1 0") }).To(Panic())
	})
})

var _ = Describe("IDGenerator", func() {
	It("should generate unique IDs", func() {
		g := GetIDGenerator()

		Expect(g.Generate()).NotTo(Equal(g.Generate()))
	})

	It("should not switch generators after use", func() {
		GetIDGenerator()

		Expect(UseParallelIDGenerator).To(Panic())
	})
})
