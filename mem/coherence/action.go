package coherence

// Action is the verdict a controller returns for the message it handled.
type Action int

// The verdicts.
const (
	// Done means the transaction is fully resolved.
	Done Action = iota

	// Stall means the message must be kept and handled again later, either
	// when a response arrives or when the line unlocks.
	Stall

	// Ignore means the message is obsolete and must be dropped silently.
	Ignore

	// Block means the message waits for the completion of another
	// transaction on the same line. No retry message is expected.
	Block
)

func (a Action) String() string {
	switch a {
	case Done:
		return "Done"
	case Stall:
		return "Stall"
	case Ignore:
		return "Ignore"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}
