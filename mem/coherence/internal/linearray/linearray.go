// Package linearray provides the set-associative storage of coherence cache
// lines.
package linearray

import (
	"github.com/sarchlab/coherence/mem/coherence"
)

// A set is a list of ways a certain piece of memory can be stored at. The
// LRU queue lists way IDs from least to most recently used.
type set struct {
	lruQueue []int
}

// Array owns every line of a cache. Lines are allocated once and reused for
// new addresses, so a line pointer is only meaningful until the next Replace
// on it.
type Array struct {
	numSets  int
	numWays  int
	lineSize uint64

	lines  []coherence.CacheLine
	tagged []bool
	sets   []set
}

// NewArray creates an array with all lines invalid.
func NewArray(numSets, numWays int, lineSize uint64) *Array {
	a := &Array{
		numSets:  numSets,
		numWays:  numWays,
		lineSize: lineSize,
	}

	a.Reset()

	return a
}

// NumSets returns the number of sets.
func (a *Array) NumSets() int {
	return a.numSets
}

// NumWays returns the associativity.
func (a *Array) NumWays() int {
	return a.numWays
}

// TotalSize returns the maximum number of bytes the array can hold.
func (a *Array) TotalSize() uint64 {
	return uint64(a.numSets) * uint64(a.numWays) * a.lineSize
}

func (a *Array) setID(addr uint64) int {
	return int(addr / a.lineSize % uint64(a.numSets))
}

func (a *Array) index(setID, wayID int) int {
	return setID*a.numWays + wayID
}

func (a *Array) line(setID, wayID int) *coherence.CacheLine {
	return &a.lines[a.index(setID, wayID)]
}

func (a *Array) isFree(setID, wayID int) bool {
	idx := a.index(setID, wayID)
	return !a.tagged[idx] ||
		(a.lines[idx].State == coherence.StateI && !a.lines[idx].IsLocked())
}

// Lookup returns the line that holds addr, in any state. On a miss with
// allocateOnMiss set, it claims a free way of the set for addr if one exists.
// It returns nil otherwise.
func (a *Array) Lookup(addr uint64, allocateOnMiss bool) *coherence.CacheLine {
	base := coherence.BaseAddress(addr, a.lineSize)
	setID := a.setID(base)

	for wayID := 0; wayID < a.numWays; wayID++ {
		idx := a.index(setID, wayID)
		if a.tagged[idx] && a.lines[idx].BaseAddr == base {
			a.visit(setID, wayID)
			return &a.lines[idx]
		}
	}

	if !allocateOnMiss {
		return nil
	}

	for _, wayID := range a.sets[setID].lruQueue {
		if a.isFree(setID, wayID) {
			l := a.line(setID, wayID)
			a.Replace(base, l)

			return l
		}
	}

	return nil
}

// FindReplacementCandidate returns the line to evict to make room for addr.
// Free ways come first, then the least recently used line that is neither
// locked nor busy. If every way is busy, the least recently used one is
// returned and the eviction is expected to stall.
func (a *Array) FindReplacementCandidate(addr uint64) *coherence.CacheLine {
	setID := a.setID(coherence.BaseAddress(addr, a.lineSize))
	queue := a.sets[setID].lruQueue

	for _, wayID := range queue {
		if a.isFree(setID, wayID) {
			return a.line(setID, wayID)
		}
	}

	for _, wayID := range queue {
		l := a.line(setID, wayID)
		if !l.IsLocked() && !l.State.IsTransient() {
			return l
		}
	}

	return a.line(setID, queue[0])
}

// Replace rebinds line to addr. The line becomes invalid and most recently
// used.
func (a *Array) Replace(addr uint64, line *coherence.CacheLine) {
	line.Reset(coherence.BaseAddress(addr, a.lineSize))
	a.tagged[a.index(line.SetID, line.WayID)] = true
	a.visit(line.SetID, line.WayID)
}

// Visit marks line as most recently used.
func (a *Array) Visit(line *coherence.CacheLine) {
	a.visit(line.SetID, line.WayID)
}

func (a *Array) visit(setID, wayID int) {
	s := &a.sets[setID]
	queue := s.lruQueue[:0]

	for _, w := range s.lruQueue {
		if w != wayID {
			queue = append(queue, w)
		}
	}

	s.lruQueue = append(queue, wayID)
}

// Lines calls f for every line that is bound to an address.
func (a *Array) Lines(f func(line *coherence.CacheLine)) {
	for i := range a.lines {
		if a.tagged[i] {
			f(&a.lines[i])
		}
	}
}

// Reset marks all the lines invalid and unbound.
func (a *Array) Reset() {
	n := a.numSets * a.numWays

	a.lines = make([]coherence.CacheLine, n)
	a.tagged = make([]bool, n)
	a.sets = make([]set, a.numSets)

	for i := 0; i < a.numSets; i++ {
		for j := 0; j < a.numWays; j++ {
			l := a.line(i, j)
			*l = *coherence.NewCacheLine(a.lineSize)
			l.SetID = i
			l.WayID = j

			a.sets[i].lruQueue = append(a.sets[i].lruQueue, j)
		}
	}
}
