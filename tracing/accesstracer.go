package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/sim"
)

// AccessCount holds the number of accesses a controller has completed.
type AccessCount struct {
	ReadHit   uint64
	ReadMiss  uint64
	WriteHit  uint64
	WriteMiss uint64
}

// Hits returns the number of read and write hits.
func (c AccessCount) Hits() uint64 {
	return c.ReadHit + c.WriteHit
}

// Misses returns the number of read and write misses.
func (c AccessCount) Misses() uint64 {
	return c.ReadMiss + c.WriteMiss
}

// AccessTracer counts the hits and misses of coherence controllers. It is a
// hook to attach to controllers.
type AccessTracer struct {
	lock   sync.Mutex
	counts map[string]*AccessCount
}

// NewAccessTracer creates an AccessTracer with all counters at zero.
func NewAccessTracer() *AccessTracer {
	return &AccessTracer{
		counts: make(map[string]*AccessCount),
	}
}

// Func counts one completed access.
func (t *AccessTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != coherence.HookPosAccess {
		return
	}

	info := ctx.Detail.(coherence.AccessInfo)

	t.lock.Lock()
	defer t.lock.Unlock()

	count, ok := t.counts[info.Controller]
	if !ok {
		count = &AccessCount{}
		t.counts[info.Controller] = count
	}

	switch {
	case info.Type == coherence.AccessRead && info.Result == coherence.AccessHit:
		count.ReadHit++
	case info.Type == coherence.AccessRead:
		count.ReadMiss++
	case info.Result == coherence.AccessHit:
		count.WriteHit++
	default:
		count.WriteMiss++
	}
}

// Count returns the counters of a controller.
func (t *AccessTracer) Count(controller string) AccessCount {
	t.lock.Lock()
	defer t.lock.Unlock()

	count, ok := t.counts[controller]
	if !ok {
		return AccessCount{}
	}

	return *count
}

// Total returns the sum of the counters of all the controllers.
func (t *AccessTracer) Total() AccessCount {
	t.lock.Lock()
	defer t.lock.Unlock()

	total := AccessCount{}
	for _, c := range t.counts {
		total.ReadHit += c.ReadHit
		total.ReadMiss += c.ReadMiss
		total.WriteHit += c.WriteHit
		total.WriteMiss += c.WriteMiss
	}

	return total
}

// Controllers returns the names of the controllers that completed at least
// one access, in alphabetical order.
func (t *AccessTracer) Controllers() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, 0, len(t.counts))
	for name := range t.counts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
