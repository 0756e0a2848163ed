// Package mshr provides the miss status holding registers of a coherence
// cache.
package mshr

import (
	"fmt"

	"github.com/sarchlab/coherence/mem/coherence"
)

// entry is the record of one address.
type entry struct {
	queue            []*coherence.Msg
	inService        bool
	pendingWriteback bool
	pointers         []uint64
	deferred         []*coherence.Msg
	acksNeeded       int
}

func (e *entry) isEmpty() bool {
	return len(e.queue) == 0 &&
		!e.pendingWriteback &&
		len(e.pointers) == 0 &&
		len(e.deferred) == 0 &&
		e.acksNeeded == 0
}

// MSHR keeps per-address records. A record is created on first use and
// dropped as soon as it no longer holds anything.
type MSHR struct {
	entries map[uint64]*entry
}

// NewMSHR creates a new MSHR.
func NewMSHR() *MSHR {
	return &MSHR{
		entries: make(map[uint64]*entry),
	}
}

func (m *MSHR) getOrCreate(addr uint64) *entry {
	e, ok := m.entries[addr]
	if !ok {
		e = &entry{}
		m.entries[addr] = e
	}

	return e
}

func (m *MSHR) gc(addr uint64) {
	e, ok := m.entries[addr]
	if ok && e.isEmpty() {
		delete(m.entries, addr)
	}
}

// Exists tells if the address has a record.
func (m *MSHR) Exists(addr uint64) bool {
	_, ok := m.entries[addr]
	return ok
}

// Insert appends msg to the queue of addr.
func (m *MSHR) Insert(addr uint64, msg *coherence.Msg) {
	e := m.getOrCreate(addr)
	e.queue = append(e.queue, msg)
}

// LookupFront returns the oldest message queued for addr.
func (m *MSHR) LookupFront(addr uint64) *coherence.Msg {
	e, ok := m.entries[addr]
	if !ok || len(e.queue) == 0 {
		return nil
	}

	return e.queue[0]
}

// RemoveFront drops the oldest message queued for addr. The next message is
// not in service until it is admitted again.
func (m *MSHR) RemoveFront(addr uint64) error {
	e, ok := m.entries[addr]
	if !ok || len(e.queue) == 0 {
		return fmt.Errorf("no request queued for addr 0x%x", addr)
	}

	e.queue[0] = nil
	e.queue = e.queue[1:]
	e.inService = false
	m.gc(addr)

	return nil
}

// IsInService tells if the front message of addr has been admitted.
func (m *MSHR) IsInService(addr uint64) bool {
	e, ok := m.entries[addr]
	return ok && len(e.queue) > 0 && e.inService
}

// SetInService marks the front message of addr as admitted or not.
func (m *MSHR) SetInService(addr uint64, inService bool) {
	e, ok := m.entries[addr]
	if !ok || len(e.queue) == 0 {
		return
	}

	e.inService = inService
}

// InsertPointer records that the replacement for blockedAddr waits for
// blockingAddr.
func (m *MSHR) InsertPointer(blockingAddr, blockedAddr uint64) {
	e := m.getOrCreate(blockingAddr)

	for _, p := range e.pointers {
		if p == blockedAddr {
			return
		}
	}

	e.pointers = append(e.pointers, blockedAddr)
}

// TakePointers removes and returns the addresses blocked behind addr.
func (m *MSHR) TakePointers(addr uint64) []uint64 {
	e, ok := m.entries[addr]
	if !ok {
		return nil
	}

	pointers := e.pointers
	e.pointers = nil
	m.gc(addr)

	return pointers
}

// InsertWriteback marks a Put for addr as in flight.
func (m *MSHR) InsertWriteback(addr uint64) {
	m.getOrCreate(addr).pendingWriteback = true
}

// RemoveWriteback clears the in-flight Put marker of addr.
func (m *MSHR) RemoveWriteback(addr uint64) error {
	e, ok := m.entries[addr]
	if !ok || !e.pendingWriteback {
		return fmt.Errorf("no pending writeback for addr 0x%x", addr)
	}

	e.pendingWriteback = false
	m.gc(addr)

	return nil
}

// PendingWriteback tells if a Put for addr is in flight.
func (m *MSHR) PendingWriteback(addr uint64) bool {
	e, ok := m.entries[addr]
	return ok && e.pendingWriteback
}

// Defer parks msg until the lock on addr releases.
func (m *MSHR) Defer(addr uint64, msg *coherence.Msg) {
	e := m.getOrCreate(addr)
	e.deferred = append(e.deferred, msg)
}

// TakeDeferred removes and returns the parked messages of addr.
func (m *MSHR) TakeDeferred(addr uint64) []*coherence.Msg {
	e, ok := m.entries[addr]
	if !ok {
		return nil
	}

	deferred := e.deferred
	e.deferred = nil
	m.gc(addr)

	return deferred
}

// GetAcksNeeded returns the acknowledgments addr still waits for.
func (m *MSHR) GetAcksNeeded(addr uint64) int {
	e, ok := m.entries[addr]
	if !ok {
		return 0
	}

	return e.acksNeeded
}

// SetAcksNeeded sets the acknowledgments addr waits for.
func (m *MSHR) SetAcksNeeded(addr uint64, n int) {
	m.getOrCreate(addr).acksNeeded = n
	m.gc(addr)
}

// DecrementAcks counts one acknowledgment for addr.
func (m *MSHR) DecrementAcks(addr uint64) (int, error) {
	e, ok := m.entries[addr]
	if !ok || e.acksNeeded == 0 {
		return 0, fmt.Errorf("no acknowledgment expected for addr 0x%x", addr)
	}

	e.acksNeeded--
	left := e.acksNeeded
	m.gc(addr)

	return left, nil
}

// Size returns the number of addresses with a record.
func (m *MSHR) Size() int {
	return len(m.entries)
}

// NumWaiting returns the number of queued and deferred messages of all
// addresses.
func (m *MSHR) NumWaiting() int {
	n := 0
	for _, e := range m.entries {
		n += len(e.queue) + len(e.deferred)
	}

	return n
}

// Reset drops every record.
func (m *MSHR) Reset() {
	m.entries = make(map[uint64]*entry)
}
