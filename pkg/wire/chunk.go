package wire

// Chunk is one frame of a multi-frame PE Reply or Notify. Chunk indices are
// 1-based; only chunk 1 carries the header bytes. Chunk 1 of a Notify may
// also carry SubscribeID and Resource.
type Chunk struct {
	ThisChunk    uint8
	NumChunks    uint8
	HeaderBytes  []byte
	PropertyBytes []byte
	SubscribeID  string
	Resource     string
}

// Response is the fully assembled result of a GET/SET request.
type Response struct {
	Status      int
	Header      Header
	RawBody     []byte
	DecodedBody []byte
}

// ReplyKind is the closed variant returned by a message parser classifying
// an inbound frame.
type ReplyKind uint8

const (
	ReplyOther ReplyKind = iota
	ReplyNAK
	ReplySubscribeReply
	ReplyNotify
	ReplyPEReply
)

// String renders the reply kind name.
func (k ReplyKind) String() string {
	switch k {
	case ReplyNAK:
		return "NAK"
	case ReplySubscribeReply:
		return "SubscribeReply"
	case ReplyNotify:
		return "Notify"
	case ReplyPEReply:
		return "PEReply"
	default:
		return "Other"
	}
}

// ParsedFrame is the normalized result of parsing one inbound SysEx-derived
// frame, as produced by the external MessageCodec.
type ParsedFrame struct {
	Kind        ReplyKind
	SourceDUID  DUID
	DestDUID    DUID
	RequestID   RequestID
	HasRequestID bool // false for NAK frames, which carry no Request ID
	Chunk       Chunk
	NAK         NAKInfo
	SubscribeID string
	Success     bool // for SubscribeReply: whether the subscribe succeeded
}
