package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/sim"
	"github.com/sarchlab/coherence/tracing"
)

type sampleCache struct {
	name    string
	lines   []*coherence.CacheLine
	pending int
	waiting int
}

func (c *sampleCache) Name() string {
	return c.name
}

func (c *sampleCache) Lines(f func(line *coherence.CacheLine)) {
	for _, l := range c.lines {
		f(l)
	}
}

func (c *sampleCache) NumPendingAddresses() int {
	return c.pending
}

func (c *sampleCache) NumWaitingRequests() int {
	return c.waiting
}

type sampleNamed struct {
	name string
}

func (n sampleNamed) Name() string {
	return n.name
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		engine *sim.SerialEngine
	)

	get := func(url string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		m.router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()

		m = NewMonitor()
		m.RegisterEngine(engine)
	})

	It("should fall back to a random port", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should report the time", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"now":0.0000000000}`))
	})

	It("should list components", func() {
		m.RegisterComponent(&sampleCache{name: "L1"})
		m.RegisterComponent(sampleNamed{name: "Link"})

		var names []string
		Expect(json.Unmarshal(get("/api/list_components").Body.Bytes(),
			&names)).To(Succeed())

		Expect(names).To(Equal([]string{"L1", "Link"}))
	})

	It("should list the lines of a cache", func() {
		l := coherence.NewCacheLine(64)
		l.Reset(0x40)
		l.State = coherence.StateSM
		l.WayID = 1
		m.RegisterComponent(&sampleCache{
			name:  "L1",
			lines: []*coherence.CacheLine{l},
		})

		var lines []lineRsp
		Expect(json.Unmarshal(get("/api/lines/L1").Body.Bytes(),
			&lines)).To(Succeed())

		Expect(lines).To(Equal([]lineRsp{
			{Set: 0, Way: 1, Addr: "0x40", State: "SM"},
		}))
	})

	It("should refuse lines of a component without lines", func() {
		m.RegisterComponent(sampleNamed{name: "Link"})

		Expect(get("/api/lines/Link").Code).
			To(Equal(http.StatusMethodNotAllowed))
	})

	It("should return 404 for unknown components", func() {
		Expect(get("/api/lines/L2").Code).To(Equal(http.StatusNotFound))
	})

	It("should sort queues by the number of waiting requests", func() {
		m.RegisterComponent(&sampleCache{name: "A", pending: 1, waiting: 1})
		m.RegisterComponent(&sampleCache{name: "B", pending: 3, waiting: 5})
		m.RegisterComponent(&sampleCache{name: "C", pending: 2, waiting: 1})
		m.RegisterComponent(sampleNamed{name: "Link"})

		var queues []queueRsp
		Expect(json.Unmarshal(get("/api/hangdetector/queues?limit=2").
			Body.Bytes(), &queues)).To(Succeed())

		Expect(queues).To(Equal([]queueRsp{
			{Component: "B", Addresses: 3, Waiting: 5},
			{Component: "C", Addresses: 2, Waiting: 1},
		}))
	})

	It("should reject a bad limit", func() {
		Expect(get("/api/hangdetector/queues?limit=x").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should report access counts", func() {
		t := tracing.NewAccessTracer()
		t.Func(sim.HookCtx{
			Pos: coherence.HookPosAccess,
			Detail: coherence.AccessInfo{
				Controller: "L1",
				Type:       coherence.AccessWrite,
				Result:     coherence.AccessMiss,
			},
		})
		m.RegisterAccessTracer(t)

		var counts []accessRsp
		Expect(json.Unmarshal(get("/api/access").Body.Bytes(),
			&counts)).To(Succeed())

		Expect(counts).To(Equal([]accessRsp{
			{Controller: "L1", WriteMiss: 1, Misses: 1},
		}))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("Requests", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		Expect(bar.Finished).To(Equal(uint64(2)))
		Expect(bar.InProgress).To(Equal(uint64(1)))
		Expect(get("/api/progress").Body.String()).
			To(ContainSubstring(`"name":"Requests"`))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(Equal("[]"))
	})
})

var _ = Describe("ProgressBar", func() {
	It("should print the percentage", func() {
		bar := &ProgressBar{Name: "Requests", Total: 8}
		bar.IncrementFinished(2)

		Expect(bar.String()).To(Equal("Requests: 2/8 (25.0%)"))
	})
})
