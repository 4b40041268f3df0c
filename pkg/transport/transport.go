// Package transport declares the MIDI transport interface the engine
// consumes: sending/receiving raw byte frames, endpoint enumeration and
// setup-change notification. The concrete MIDI I/O (USB, BLE, virtual
// ports) is an external collaborator; nothing in this package talks to real
// hardware.
package transport

import (
	"context"

	"github.com/midi2dev/pe-engine/pkg/wire"
)

// InboundFrame is one frame read from the transport, optionally tagged with
// the source endpoint it arrived from.
type InboundFrame struct {
	Data   []byte
	Source *wire.Destination
}

// Transport is the MIDI transport surface the engine sends through and
// reads from. Received and SetupChanged are lazy, long-lived, non-restartable
// sequences: closing them signals the transport is gone.
type Transport interface {
	Send(ctx context.Context, to wire.Destination, data []byte) error
	Broadcast(ctx context.Context, data []byte) error
	Destinations() []wire.Destination
	Received() <-chan InboundFrame
	SetupChanged() <-chan struct{}
}
