// Package codectest provides minimal fake implementations of the
// transport.Transport, wire.MessageCodec, wire.ReplyCodec, mcoded7.Codec and
// discovery.Service interfaces, used only by this module's own test files.
package codectest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/midi2dev/pe-engine/pkg/discovery"
	"github.com/midi2dev/pe-engine/pkg/transport"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// FakeTransport is an in-memory transport.Transport double. Sends are
// recorded; inbound frames are injected via Inject.
type FakeTransport struct {
	mu           sync.Mutex
	sent         []SentFrame
	dests        []wire.Destination
	fail         map[wire.Destination]error
	received     chan transport.InboundFrame
	setupChanged chan struct{}
}

// SentFrame records one outbound send.
type SentFrame struct {
	To   wire.Destination
	Data []byte
}

// NewFakeTransport creates a FakeTransport enumerating dests as its known
// destinations.
func NewFakeTransport(dests ...wire.Destination) *FakeTransport {
	return &FakeTransport{
		dests:        dests,
		fail:         make(map[wire.Destination]error),
		received:     make(chan transport.InboundFrame, 64),
		setupChanged: make(chan struct{}),
	}
}

// FailNext makes every future Send to dest fail with err.
func (t *FakeTransport) FailNext(dest wire.Destination, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail[dest] = err
}

func (t *FakeTransport) Send(_ context.Context, to wire.Destination, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err, ok := t.fail[to]; ok {
		return err
	}
	t.sent = append(t.sent, SentFrame{To: to, Data: append([]byte(nil), data...)})
	return nil
}

func (t *FakeTransport) Broadcast(ctx context.Context, data []byte) error {
	for _, d := range t.Destinations() {
		if err := t.Send(ctx, d, data); err != nil {
			return err
		}
	}
	return nil
}

func (t *FakeTransport) Destinations() []wire.Destination {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]wire.Destination(nil), t.dests...)
}

func (t *FakeTransport) Received() <-chan transport.InboundFrame { return t.received }

func (t *FakeTransport) SetupChanged() <-chan struct{} { return t.setupChanged }

// Inject delivers data as an inbound frame to whoever is reading Received().
func (t *FakeTransport) Inject(data []byte) {
	t.received <- transport.InboundFrame{Data: append([]byte(nil), data...)}
}

// Sent returns every frame sent so far.
func (t *FakeTransport) Sent() []SentFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SentFrame(nil), t.sent...)
}

// FakeCodec is a wire.MessageCodec double. Build* methods JSON-encode their
// request struct so tests can inspect exactly what was "sent"; Parse is
// driven by ParseFunc, set per test.
type FakeCodec struct {
	ParseFunc func([]byte) (wire.ParsedFrame, error)

	mu         sync.Mutex
	lastGetID  wire.RequestID
	lastSetID  wire.RequestID
	lastSubID  wire.RequestID
}

func (c *FakeCodec) BuildGet(req wire.GetRequest) ([]byte, error) {
	c.mu.Lock()
	c.lastGetID = req.RequestID
	c.mu.Unlock()
	return json.Marshal(req)
}
func (c *FakeCodec) BuildSet(req wire.SetRequest) ([]byte, error) {
	c.mu.Lock()
	c.lastSetID = req.RequestID
	c.mu.Unlock()
	return json.Marshal(req)
}
func (c *FakeCodec) BuildSubscribe(req wire.SubscribeRequest) ([]byte, error) {
	c.mu.Lock()
	c.lastSubID = req.RequestID
	c.mu.Unlock()
	return json.Marshal(req)
}
func (c *FakeCodec) BuildUnsubscribe(req wire.UnsubscribeRequest) ([]byte, error) {
	return json.Marshal(req)
}

// LastGetRequestID returns the Request ID of the most recently built GET.
func (c *FakeCodec) LastGetRequestID() wire.RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastGetID
}

// LastSubscribeRequestID returns the Request ID of the most recently built
// Subscribe.
func (c *FakeCodec) LastSubscribeRequestID() wire.RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSubID
}

func (c *FakeCodec) Parse(frame []byte) (wire.ParsedFrame, error) {
	if c.ParseFunc == nil {
		return wire.ParsedFrame{}, nil
	}
	return c.ParseFunc(frame)
}

// IdentityMcoded7 is a passthrough mcoded7.Codec double: the actual 7-bit
// packing algorithm is out of scope, so round-trip behavior is what tests
// need, not byte-exact packing.
type IdentityMcoded7 struct{}

func (IdentityMcoded7) Encode(payload []byte) ([]byte, error) { return payload, nil }
func (IdentityMcoded7) Decode(packed []byte) ([]byte, error)  { return packed, nil }

// FakeDiscovery is an in-memory discovery.Service double: tests mutate its
// device list and push events directly via Discover and Lose.
type FakeDiscovery struct {
	mu      sync.Mutex
	devices map[wire.DUID]discovery.DiscoveredDevice
	events  chan discovery.Event
}

// NewFakeDiscovery creates an empty FakeDiscovery.
func NewFakeDiscovery() *FakeDiscovery {
	return &FakeDiscovery{
		devices: make(map[wire.DUID]discovery.DiscoveredDevice),
		events:  make(chan discovery.Event, 64),
	}
}

func (d *FakeDiscovery) Devices() []discovery.DiscoveredDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]discovery.DiscoveredDevice, 0, len(d.devices))
	for _, dev := range d.devices {
		out = append(out, dev)
	}
	return out
}

func (d *FakeDiscovery) Destination(duid wire.DUID) (wire.Destination, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[duid]
	return dev.Destination, ok
}

func (d *FakeDiscovery) Events() <-chan discovery.Event { return d.events }

// Discover adds or replaces a device and emits a DeviceDiscovered event.
func (d *FakeDiscovery) Discover(dev discovery.DiscoveredDevice) {
	d.mu.Lock()
	d.devices[dev.DUID] = dev
	d.mu.Unlock()
	d.events <- discovery.Event{Type: discovery.DeviceDiscovered, Device: dev, DUID: dev.DUID}
}

// Lose removes a device and emits a DeviceLost event.
func (d *FakeDiscovery) Lose(duid wire.DUID) {
	d.mu.Lock()
	delete(d.devices, duid)
	d.mu.Unlock()
	d.events <- discovery.Event{Type: discovery.DeviceLost, DUID: duid}
}

// builtReply is the JSON envelope FakeReplyCodec uses for every Build*
// method, so tests can decode exactly what the Responder produced.
type builtReply struct {
	RequestID   wire.RequestID `json:"requestId"`
	Header      wire.Header    `json:"header"`
	Body        []byte         `json:"body,omitempty"`
	SubscribeID string         `json:"subscribeId,omitempty"`
	Resource    string         `json:"resource,omitempty"`
}

// FakeReplyCodec is a wire.ReplyCodec double. Inbound Inquiries are parsed
// via ParseFunc, set per test; outbound replies are JSON envelopes so tests
// can decode exactly what was built.
type FakeReplyCodec struct {
	ParseFunc func([]byte) (wire.ParsedInquiry, error)
}

func (c *FakeReplyCodec) ParseInquiry(frame []byte) (wire.ParsedInquiry, error) {
	if c.ParseFunc == nil {
		return wire.ParsedInquiry{}, nil
	}
	return c.ParseFunc(frame)
}

func (c *FakeReplyCodec) BuildGetReply(requestID wire.RequestID, header wire.Header, body []byte) ([]byte, error) {
	return json.Marshal(builtReply{RequestID: requestID, Header: header, Body: body})
}

func (c *FakeReplyCodec) BuildSetReply(requestID wire.RequestID, header wire.Header) ([]byte, error) {
	return json.Marshal(builtReply{RequestID: requestID, Header: header})
}

func (c *FakeReplyCodec) BuildSubscribeReply(requestID wire.RequestID, header wire.Header, subscribeID string) ([]byte, error) {
	return json.Marshal(builtReply{RequestID: requestID, Header: header, SubscribeID: subscribeID})
}

func (c *FakeReplyCodec) BuildNotify(subscribeID, resource string, header wire.Header, body []byte) ([]byte, error) {
	return json.Marshal(builtReply{Header: header, Body: body, SubscribeID: subscribeID, Resource: resource})
}

// DecodeBuiltReply is a test helper unwrapping what FakeReplyCodec built.
func DecodeBuiltReply(t testing.TB, data []byte) (requestID wire.RequestID, header wire.Header, body []byte, subscribeID string) {
	t.Helper()
	var br builtReply
	if err := json.Unmarshal(data, &br); err != nil {
		t.Fatalf("decode built reply: %v", err)
		return
	}
	return br.RequestID, br.Header, br.Body, br.SubscribeID
}
