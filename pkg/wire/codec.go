package wire

// GetRequest describes a PE GET Inquiry to build.
type GetRequest struct {
	Resource  string
	DUID      DUID
	RequestID RequestID
	Offset    int
	Limit     int
}

// SetRequest describes a PE SET Inquiry to build.
type SetRequest struct {
	Resource  string
	DUID      DUID
	RequestID RequestID
	Body      []byte
	Mcoded7   bool
}

// SubscribeRequest describes a PE Subscribe Inquiry to build.
type SubscribeRequest struct {
	Resource  string
	DUID      DUID
	RequestID RequestID
}

// UnsubscribeRequest describes a PE Subscribe(end) Inquiry to build.
type UnsubscribeRequest struct {
	Resource    string
	DUID        DUID
	RequestID   RequestID
	SubscribeID string
}

// MessageCodec builds outbound PE Inquiries and parses inbound frames.
// The engine consumes this interface; the byte-exact SysEx/Mcoded7 framing
// is an external collaborator's responsibility.
type MessageCodec interface {
	BuildGet(req GetRequest) ([]byte, error)
	BuildSet(req SetRequest) ([]byte, error)
	BuildSubscribe(req SubscribeRequest) ([]byte, error)
	BuildUnsubscribe(req UnsubscribeRequest) ([]byte, error)
	Parse(frame []byte) (ParsedFrame, error)
}
