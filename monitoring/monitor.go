// Package monitoring turns a running coherence simulation into a web server
// that reports the engine time, the queues of the components, the cache
// lines, and the hit and miss counts.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/monitoring/web"
	"github.com/sarchlab/coherence/sim"
	"github.com/sarchlab/coherence/tracing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// A LineHolder is a component that owns cache lines.
type LineHolder interface {
	Lines(f func(line *coherence.CacheLine))
}

// A QueueHolder is a component that queues requests per address.
type QueueHolder interface {
	NumPendingAddresses() int
	NumWaitingRequests() int
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine       sim.Engine
	components   []sim.Named
	accessTracer *tracing.AccessTracer
	portNumber   int
	openBrowser  bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser sets if the monitor opens its page in a browser when the
// server starts.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterAccessTracer sets the tracer that counts the hits and misses.
func (m *Monitor) RegisterAccessTracer(t *tracing.AccessTracer) {
	m.accessTracer = t
}

// RegisterComponent register a component to be monitored.
func (m *Monitor) RegisterComponent(c sim.Named) {
	m.components = append(m.components, c)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/lines/{name}", m.listLines)
	r.HandleFunc("/api/hangdetector/queues", m.hangDetectorQueues)
	r.HandleFunc("/api/access", m.listAccessCounts)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.Assets()))

	return r
}

// StartServer starts the monitor as a web server with a custom port if
// wanted. It returns the URL of the server.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	r := m.router()

	go func() {
		err := http.Serve(listener, r)
		dieOnErr(err)
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}

	return url
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) run(_ http.ResponseWriter, _ *http.Request) {
	go func() {
		err := m.engine.Run()
		if err != nil {
			panic(err)
		}
	}()
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type lineRsp struct {
	Set       int    `json:"set"`
	Way       int    `json:"way"`
	Addr      string `json:"addr"`
	State     string `json:"state"`
	LockCount int    `json:"lock_count"`
	Prefetch  bool   `json:"prefetch"`
}

func (m *Monitor) listLines(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	holder, ok := component.(LineHolder)
	if !ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	lines := []lineRsp{}
	holder.Lines(func(l *coherence.CacheLine) {
		lines = append(lines, lineRsp{
			Set:       l.SetID,
			Way:       l.WayID,
			Addr:      fmt.Sprintf("0x%x", l.BaseAddr),
			State:     l.State.String(),
			LockCount: l.LockCount,
			Prefetch:  l.Prefetch,
		})
	})

	writeJSON(w, lines)
}

type queueRsp struct {
	Component string `json:"component"`
	Addresses int    `json:"addresses"`
	Waiting   int    `json:"waiting"`
}

// hangDetectorQueues lists the components with the most waiting requests
// first.
func (m *Monitor) hangDetectorQueues(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	queues := m.sortedQueues()
	if limit > 0 && limit < len(queues) {
		queues = queues[:limit]
	}

	writeJSON(w, queues)
}

func (m *Monitor) sortedQueues() []queueRsp {
	queues := []queueRsp{}

	for _, c := range m.components {
		q, ok := c.(QueueHolder)
		if !ok {
			continue
		}

		queues = append(queues, queueRsp{
			Component: c.Name(),
			Addresses: q.NumPendingAddresses(),
			Waiting:   q.NumWaitingRequests(),
		})
	}

	sort.SliceStable(queues, func(i, j int) bool {
		if queues[i].Waiting != queues[j].Waiting {
			return queues[i].Waiting > queues[j].Waiting
		}

		return queues[i].Addresses > queues[j].Addresses
	})

	return queues
}

type accessRsp struct {
	Controller string `json:"controller"`
	ReadHit    uint64 `json:"read_hit"`
	ReadMiss   uint64 `json:"read_miss"`
	WriteHit   uint64 `json:"write_hit"`
	WriteMiss  uint64 `json:"write_miss"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
}

func (m *Monitor) listAccessCounts(w http.ResponseWriter, _ *http.Request) {
	counts := []accessRsp{}

	if m.accessTracer != nil {
		for _, name := range m.accessTracer.Controllers() {
			c := m.accessTracer.Count(name)
			counts = append(counts, accessRsp{
				Controller: name,
				ReadHit:    c.ReadHit,
				ReadMiss:   c.ReadMiss,
				WriteHit:   c.WriteHit,
				WriteMiss:  c.WriteMiss,
				Hits:       c.Hits(),
				Misses:     c.Misses(),
			})
		}
	}

	writeJSON(w, counts)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Named {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(b)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
