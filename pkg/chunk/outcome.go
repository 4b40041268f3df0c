package chunk

import "github.com/midi2dev/pe-engine/pkg/wire"

// Key identifies one in-progress assembly: the source device and the
// Request ID the chunks arrived under.
type Key struct {
	Source    wire.DUID
	RequestID wire.RequestID
}

// OutcomeKind is the closed variant an Add call resolves to.
type OutcomeKind uint8

const (
	Incomplete OutcomeKind = iota
	Complete
	Timeout
	UnknownRequestID
)

// String renders the outcome kind name.
func (k OutcomeKind) String() string {
	switch k {
	case Complete:
		return "Complete"
	case Timeout:
		return "Timeout"
	case UnknownRequestID:
		return "UnknownRequestID"
	default:
		return "Incomplete"
	}
}

// Outcome is the result of adding a chunk to an assembly, or of a poll for
// staleness. Only the fields relevant to Kind are populated.
type Outcome struct {
	Kind     OutcomeKind
	Key      Key
	Header   []byte
	Body     []byte
	Received int
	Expected int
	Resource string
	// SubscribeID/Resource carried by chunk 1 of a Notify.
	SubscribeID string
}
