package coherence

import "fmt"

// A CacheLine is the state record of one cached block. The cache array owns
// it; controllers only borrow it for the duration of one call.
type CacheLine struct {
	SetID, WayID int

	BaseAddr  uint64
	Data      []byte
	State     State
	Timestamp uint64
	LockCount int

	// Prefetch is set while the data was brought in by a prefetch and has
	// not been demanded yet.
	Prefetch bool

	// EventsWaitingForLock is set when a message was deferred because the
	// line is locked.
	EventsWaitingForLock bool

	// Reserved holds the load-linked reservation of the line.
	Reserved bool
}

// NewCacheLine creates an invalid line of the given size.
func NewCacheLine(lineSize uint64) *CacheLine {
	return &CacheLine{
		Data:  make([]byte, lineSize),
		State: StateI,
	}
}

// IsLocked tells if an atomic sequence is open on the line.
func (l *CacheLine) IsLocked() bool {
	return l.LockCount > 0
}

// SetData copies data into the line at offset.
func (l *CacheLine) SetData(data []byte, offset uint64) {
	if offset+uint64(len(data)) > uint64(len(l.Data)) {
		panic(fmt.Sprintf(
			"writing %d bytes at offset %d overflows a %d-byte line",
			len(data), offset, len(l.Data)))
	}

	copy(l.Data[offset:], data)
}

// CopyData returns a copy of the line payload.
func (l *CacheLine) CopyData() []byte {
	return append([]byte(nil), l.Data...)
}

// Reset invalidates the line and rebinds it to a new base address. The
// timestamp survives so later events on the slot stay ordered.
func (l *CacheLine) Reset(baseAddr uint64) {
	l.BaseAddr = baseAddr
	l.State = StateI
	l.LockCount = 0
	l.Prefetch = false
	l.EventsWaitingForLock = false
	l.Reserved = false

	for i := range l.Data {
		l.Data[i] = 0
	}
}

func (l *CacheLine) String() string {
	return fmt.Sprintf("<0x%x %s ts=%d lock=%d>",
		l.BaseAddr, l.State, l.Timestamp, l.LockCount)
}
