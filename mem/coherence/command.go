package coherence

import "fmt"

// Command is the tag of a coherence message.
type Command int

// The closed command vocabulary.
const (
	CmdGetS Command = iota
	CmdGetX
	CmdGetSX
	CmdGetSResp
	CmdGetXResp
	CmdPutS
	CmdPutE
	CmdPutM
	CmdInv
	CmdFetch
	CmdFetchInv
	CmdFetchInvX
	CmdAckInv
	CmdAckPut
	CmdFlushLine
	CmdFlushLineInv
	CmdFlushLineResp
)

var commandNames = [...]string{
	CmdGetS:          "GetS",
	CmdGetX:          "GetX",
	CmdGetSX:         "GetSX",
	CmdGetSResp:      "GetSResp",
	CmdGetXResp:      "GetXResp",
	CmdPutS:          "PutS",
	CmdPutE:          "PutE",
	CmdPutM:          "PutM",
	CmdInv:           "Inv",
	CmdFetch:         "Fetch",
	CmdFetchInv:      "FetchInv",
	CmdFetchInvX:     "FetchInvX",
	CmdAckInv:        "AckInv",
	CmdAckPut:        "AckPut",
	CmdFlushLine:     "FlushLine",
	CmdFlushLineInv:  "FlushLineInv",
	CmdFlushLineResp: "FlushLineResp",
}

func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return fmt.Sprintf("Command(%d)", int(c))
	}

	return commandNames[c]
}

// ParseCommand converts a command name back to a Command.
func ParseCommand(name string) (Command, error) {
	for i, n := range commandNames {
		if n == name {
			return Command(i), nil
		}
	}

	return 0, fmt.Errorf("unknown command %q", name)
}

// IsAccess returns true for the core-side access requests.
func (c Command) IsAccess() bool {
	return c == CmdGetS || c == CmdGetX || c == CmdGetSX
}

// IsFlush returns true for the software flush requests.
func (c Command) IsFlush() bool {
	return c == CmdFlushLine || c == CmdFlushLineInv
}

// IsRequest returns true for everything that a cache accepts from above.
func (c Command) IsRequest() bool {
	return c.IsAccess() || c.IsFlush()
}

// IsWriteback returns true for PutS, PutE, and PutM.
func (c Command) IsWriteback() bool {
	return c == CmdPutS || c == CmdPutE || c == CmdPutM
}

// IsInvalidation returns true for the snoops a parent may send.
func (c Command) IsInvalidation() bool {
	switch c {
	case CmdInv, CmdFetch, CmdFetchInv, CmdFetchInvX:
		return true
	default:
		return false
	}
}

// IsResponse returns true for messages that complete an outstanding
// transaction of the receiver.
func (c Command) IsResponse() bool {
	switch c {
	case CmdGetSResp, CmdGetXResp, CmdAckInv, CmdAckPut, CmdFlushLineResp:
		return true
	default:
		return false
	}
}

// ResponseCommand returns the command used to answer c.
func (c Command) ResponseCommand() (Command, bool) {
	switch c {
	case CmdGetS, CmdFetch, CmdFetchInvX:
		return CmdGetSResp, true
	case CmdGetX, CmdGetSX, CmdFetchInv:
		return CmdGetXResp, true
	case CmdPutS, CmdPutE, CmdPutM:
		return CmdAckPut, true
	case CmdInv:
		return CmdAckInv, true
	case CmdFlushLine, CmdFlushLineInv:
		return CmdFlushLineResp, true
	default:
		return 0, false
	}
}
