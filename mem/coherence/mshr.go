package coherence

// MSHR is the per-address bookkeeping of in-flight transactions that a
// controller and its cache share. At most one transaction is active per
// address. Everything else queues behind it.
type MSHR interface {
	// Exists tells if the MSHR keeps any record of the address.
	Exists(addr uint64) bool

	// Insert appends a message to the FIFO of the address.
	Insert(addr uint64, msg *Msg)

	// LookupFront returns the oldest queued message of the address, or nil.
	LookupFront(addr uint64) *Msg

	// RemoveFront drops the oldest queued message of the address.
	RemoveFront(addr uint64) error

	// IsInService tells if the front message of the address has been
	// admitted and is waiting for a response.
	IsInService(addr uint64) bool

	// SetInService marks or clears the front message as admitted.
	SetInService(addr uint64, inService bool)

	// InsertPointer records that the replacement for blockedAddr waits for
	// the transaction on blockingAddr.
	InsertPointer(blockingAddr, blockedAddr uint64)

	// TakePointers removes and returns the addresses blocked behind addr.
	TakePointers(addr uint64) []uint64

	// InsertWriteback marks a Put for the address as in flight.
	InsertWriteback(addr uint64)

	// RemoveWriteback clears the in-flight Put marker of the address.
	RemoveWriteback(addr uint64) error

	// PendingWriteback tells if a Put for the address is in flight.
	PendingWriteback(addr uint64) bool

	// Defer parks a message until a lock on the address releases.
	Defer(addr uint64, msg *Msg)

	// TakeDeferred removes and returns the parked messages of the address in
	// arrival order.
	TakeDeferred(addr uint64) []*Msg

	// GetAcksNeeded returns the number of acknowledgments the active
	// transaction of the address still waits for.
	GetAcksNeeded(addr uint64) int

	// SetAcksNeeded sets the number of acknowledgments to wait for.
	SetAcksNeeded(addr uint64, n int)

	// DecrementAcks counts one acknowledgment and returns how many remain.
	DecrementAcks(addr uint64) (int, error)

	// Size returns the number of addresses tracked.
	Size() int

	// Reset drops every record.
	Reset()
}
