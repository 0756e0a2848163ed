package coherence

import (
	"fmt"

	"github.com/sarchlab/coherence/sim"
)

// Flags is a bit set carried by messages.
type Flags uint8

// Message flags.
const (
	// FlagLocked marks the store that releases a lock taken by GetSX.
	FlagLocked Flags = 1 << iota

	// FlagAtomic marks a load-linked GetS or a store-conditional GetX.
	FlagAtomic

	// FlagNonCacheable marks an access that must not allocate.
	FlagNonCacheable

	// FlagPrefetch marks a request issued by a prefetcher.
	FlagPrefetch

	// FlagDirty marks data that is newer than the copy below.
	FlagDirty

	// FlagSuccess marks a successful store-conditional or flush.
	FlagSuccess
)

var headerByteSize = 8

// A Msg is a coherence message. It is immutable once sent, except for the
// response fields the receiving controller fills in.
type Msg struct {
	ID    string
	RspTo string

	Cmd       Command
	BaseAddr  uint64
	Addr      uint64
	Size      uint64
	Src, Dst  string
	Requester string

	Payload      []byte
	Flags        Flags
	GrantedState State
}

// HasFlag tells if all the given flags are set.
func (m *Msg) HasFlag(f Flags) bool {
	return m.Flags&f == f
}

// SetFlag sets or clears the given flags.
func (m *Msg) SetFlag(f Flags, on bool) {
	if on {
		m.Flags |= f
		return
	}

	m.Flags &^= f
}

// ByteSize returns the number of bytes the message occupies on a link.
func (m *Msg) ByteSize() int {
	return headerByteSize + len(m.Payload)
}

// Clone returns a copy of the message with a new ID. The payload is copied.
func (m *Msg) Clone() *Msg {
	c := *m
	c.ID = sim.GetIDGenerator().Generate()

	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}

	return &c
}

// MakeResponse creates the response to m, addressed back to the sender of m.
// It panics if m does not expect a response.
func (m *Msg) MakeResponse() *Msg {
	cmd, ok := m.Cmd.ResponseCommand()
	if !ok {
		panic(fmt.Sprintf("%s does not have a response", m.Cmd))
	}

	return &Msg{
		ID:        sim.GetIDGenerator().Generate(),
		RspTo:     m.ID,
		Cmd:       cmd,
		BaseAddr:  m.BaseAddr,
		Addr:      m.Addr,
		Size:      m.Size,
		Src:       m.Dst,
		Dst:       m.Src,
		Requester: m.Requester,
	}
}

func (m *Msg) String() string {
	return fmt.Sprintf("%s[%s] 0x%x (base 0x%x) %s->%s rqstr=%s",
		m.Cmd, m.ID, m.Addr, m.BaseAddr, m.Src, m.Dst, m.Requester)
}

// MsgBuilder can build coherence messages.
type MsgBuilder struct {
	cmd          Command
	addr         uint64
	lineSize     uint64
	size         uint64
	src, dst     string
	requester    string
	payload      []byte
	flags        Flags
	grantedState State
	rspTo        string
}

// MakeMsgBuilder creates a MsgBuilder with 64-byte lines.
func MakeMsgBuilder() MsgBuilder {
	return MsgBuilder{
		lineSize: 64,
	}
}

// WithCmd sets the command of the message to build.
func (b MsgBuilder) WithCmd(cmd Command) MsgBuilder {
	b.cmd = cmd
	return b
}

// WithAddress sets the full address. The base address is derived from the
// line size.
func (b MsgBuilder) WithAddress(addr uint64) MsgBuilder {
	b.addr = addr
	return b
}

// WithLineSize sets the line size used to derive the base address.
func (b MsgBuilder) WithLineSize(lineSize uint64) MsgBuilder {
	b.lineSize = lineSize
	return b
}

// WithSize sets the number of bytes accessed.
func (b MsgBuilder) WithSize(size uint64) MsgBuilder {
	b.size = size
	return b
}

// WithSrc sets the sender.
func (b MsgBuilder) WithSrc(src string) MsgBuilder {
	b.src = src
	return b
}

// WithDst sets the receiver.
func (b MsgBuilder) WithDst(dst string) MsgBuilder {
	b.dst = dst
	return b
}

// WithRequester sets the identity of the original requester.
func (b MsgBuilder) WithRequester(requester string) MsgBuilder {
	b.requester = requester
	return b
}

// WithPayload sets the data carried.
func (b MsgBuilder) WithPayload(payload []byte) MsgBuilder {
	b.payload = payload
	return b
}

// WithFlags adds flags.
func (b MsgBuilder) WithFlags(flags Flags) MsgBuilder {
	b.flags |= flags
	return b
}

// WithGrantedState sets the state granted by a data response.
func (b MsgBuilder) WithGrantedState(s State) MsgBuilder {
	b.grantedState = s
	return b
}

// WithRspTo sets the ID of the request the message answers.
func (b MsgBuilder) WithRspTo(id string) MsgBuilder {
	b.rspTo = id
	return b
}

// Build creates a new Msg.
func (b MsgBuilder) Build() *Msg {
	m := &Msg{
		ID:           sim.GetIDGenerator().Generate(),
		RspTo:        b.rspTo,
		Cmd:          b.cmd,
		Addr:         b.addr,
		BaseAddr:     BaseAddress(b.addr, b.lineSize),
		Size:         b.size,
		Src:          b.src,
		Dst:          b.dst,
		Requester:    b.requester,
		Payload:      b.payload,
		Flags:        b.flags,
		GrantedState: b.grantedState,
	}

	if m.Requester == "" {
		m.Requester = b.src
	}

	return m
}

// BaseAddress aligns addr down to a line boundary. lineSize must be a power
// of two.
func BaseAddress(addr, lineSize uint64) uint64 {
	return addr &^ (lineSize - 1)
}
