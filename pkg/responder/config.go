package responder

import (
	pelog "github.com/midi2dev/pe-engine/pkg/log"
	"github.com/midi2dev/pe-engine/pkg/transport"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// GetFunc answers a GET Inquiry. It returns the property body, whether the
// body should be declared Mcoded7-encoded in the reply header, and any
// error (mapped to status 500 by the dispatcher).
type GetFunc func(offset, limit int) (body []byte, mcoded7 bool, err error)

// SetFunc answers a SET Inquiry with the body exactly as the ReplyCodec
// parsed it. The Responder does not Mcoded7-decode the body, even when
// ParsedInquiry.Mcoded7 is set.
type SetFunc func(body []byte) error

// ResourceHandler is one registered resource: a subset of {get, set,
// subscribe} plus whether it supports subscription. A nil Get or Set means
// the resource does not support that operation.
type ResourceHandler struct {
	Get                  GetFunc
	Set                  SetFunc
	SupportsSubscription bool
}

// Config configures a Responder.
type Config struct {
	OwnDUID   wire.DUID
	Transport transport.Transport
	Codec     wire.ReplyCodec
	Logger    pelog.Logger
}

// DefaultConfig returns a Config with a no-op logger; Transport, Codec and
// OwnDUID must still be set by the caller.
func DefaultConfig() Config {
	return Config{Logger: pelog.NoopLogger{}}
}
