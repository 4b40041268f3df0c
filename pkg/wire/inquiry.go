package wire

// InquiryKind distinguishes the inbound PE Inquiry message types the
// Responder's dispatch state machine branches on.
type InquiryKind uint8

const (
	InquiryCapability InquiryKind = iota
	InquiryGet
	InquirySet
	InquirySubscribeStart
	InquirySubscribeEnd
)

// String renders the inquiry kind name.
func (k InquiryKind) String() string {
	switch k {
	case InquiryCapability:
		return "Capability"
	case InquiryGet:
		return "Get"
	case InquirySet:
		return "Set"
	case InquirySubscribeStart:
		return "SubscribeStart"
	case InquirySubscribeEnd:
		return "SubscribeEnd"
	default:
		return "Unknown"
	}
}

// ParsedInquiry is an inbound PE Inquiry as seen by the Responder, the
// dual of ParsedFrame on the Initiator side.
type ParsedInquiry struct {
	Kind       InquiryKind
	SourceDUID DUID // the initiator that sent this Inquiry
	DestDUID   DUID
	RequestID  RequestID
	Resource   string
	Offset     int
	Limit      int
	Body       []byte
	Mcoded7    bool   // true if Body is Mcoded7-packed and needs decoding before use
	SubscribeID string // set on InquirySubscribeEnd
}

// ReplyCodec builds Responder-side outbound frames and parses inbound
// Inquiries. It is the dual of MessageCodec, which is Initiator-side; kept
// as a separate interface so a device that is Initiator-only never needs a
// Responder-side codec implementation.
type ReplyCodec interface {
	ParseInquiry(frame []byte) (ParsedInquiry, error)
	BuildGetReply(requestID RequestID, header Header, body []byte) ([]byte, error)
	BuildSetReply(requestID RequestID, header Header) ([]byte, error)
	BuildSubscribeReply(requestID RequestID, header Header, subscribeID string) ([]byte, error)
	BuildNotify(subscribeID, resource string, header Header, body []byte) ([]byte, error)
}
