package main

import (
	"context"

	"github.com/midi2dev/pe-engine/pkg/transport"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// loopbackTransport is a transport.Transport that hands every Send directly
// to a linked peer's Received channel, standing in for the real MIDI
// transport (USB/BLE/virtual port) this engine only consumes as an
// interface.
type loopbackTransport struct {
	self         wire.Destination
	peer         *loopbackTransport
	received     chan transport.InboundFrame
	setupChanged chan struct{}
}

func newLoopbackTransport(self wire.Destination) *loopbackTransport {
	return &loopbackTransport{
		self:         self,
		received:     make(chan transport.InboundFrame, 16),
		setupChanged: make(chan struct{}),
	}
}

// link connects two loopback transports so each one's Send delivers into
// the other's Received stream.
func link(a, b *loopbackTransport) {
	a.peer = b
	b.peer = a
}

func (t *loopbackTransport) Send(ctx context.Context, to wire.Destination, data []byte) error {
	if t.peer == nil {
		return nil
	}
	self := t.self
	select {
	case t.peer.received <- transport.InboundFrame{Data: data, Source: &self}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (t *loopbackTransport) Broadcast(ctx context.Context, data []byte) error {
	return t.Send(ctx, "", data)
}

func (t *loopbackTransport) Destinations() []wire.Destination {
	if t.peer == nil {
		return nil
	}
	return []wire.Destination{t.peer.self}
}

func (t *loopbackTransport) Received() <-chan transport.InboundFrame { return t.received }

func (t *loopbackTransport) SetupChanged() <-chan struct{} { return t.setupChanged }
