package pe_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midi2dev/pe-engine/internal/codectest"
	"github.com/midi2dev/pe-engine/pkg/discovery"
	"github.com/midi2dev/pe-engine/pkg/pe"
	"github.com/midi2dev/pe-engine/pkg/responder"
	"github.com/midi2dev/pe-engine/pkg/subscription"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// builtReplyEnvelope mirrors the JSON shape codectest.FakeReplyCodec builds,
// so the initiator-side fake codec in this test can decode what the
// Responder actually produced.
type builtReplyEnvelope struct {
	RequestID   wire.RequestID `json:"requestId"`
	Header      wire.Header    `json:"header"`
	Body        []byte         `json:"body,omitempty"`
	SubscribeID string         `json:"subscribeId,omitempty"`
	Resource    string         `json:"resource,omitempty"`
}

// TestE2E_GetAcrossResponder drives a GET from a PE Manager (Initiator)
// through a Responder (device side): the Initiator's outbound frame is
// handed directly to Responder.HandleFrame (standing in for a transport
// hop), and the Responder's reply is fed back to the Initiator's transport
// so its waiter resolves with the handler's actual body.
func TestE2E_GetAcrossResponder(t *testing.T) {
	initiatorTp := codectest.NewFakeTransport("device-1")
	deviceTp := codectest.NewFakeTransport("initiator-1")
	initiatorCodec := &codectest.FakeCodec{}
	replyCodec := &codectest.FakeReplyCodec{
		ParseFunc: func(frame []byte) (wire.ParsedInquiry, error) {
			var req wire.GetRequest
			if err := json.Unmarshal(frame, &req); err != nil {
				return wire.ParsedInquiry{}, err
			}
			return wire.ParsedInquiry{Kind: wire.InquiryGet, SourceDUID: 0x01, DestDUID: 0x02, RequestID: req.RequestID, Resource: req.Resource}, nil
		},
	}

	initiatorCodec.ParseFunc = func(frame []byte) (wire.ParsedFrame, error) {
		var br builtReplyEnvelope
		if err := json.Unmarshal(frame, &br); err != nil {
			return wire.ParsedFrame{}, err
		}
		return wire.ParsedFrame{
			Kind:         wire.ReplyPEReply,
			SourceDUID:   0x02,
			DestDUID:     0x01,
			RequestID:    br.RequestID,
			HasRequestID: true,
			Chunk: wire.Chunk{
				ThisChunk:     1,
				NumChunks:     1,
				PropertyBytes: br.Body,
			},
		}, nil
	}

	resp := responder.New(responder.Config{
		OwnDUID:   0x02,
		Transport: deviceTp,
		Codec:     replyCodec,
	})
	resp.RegisterResource("DeviceInfo", responder.ResourceHandler{
		Get: func(offset, limit int) ([]byte, bool, error) {
			return []byte(`{"vendor":"midi2dev"}`), false, nil
		},
	})

	peCfg := pe.DefaultConfig()
	peCfg.OwnDUID = 0x01
	peCfg.Transport = initiatorTp
	peCfg.MessageCodec = initiatorCodec
	mgr := pe.NewManager(peCfg)
	mgr.Start(context.Background())
	defer mgr.Stop()

	// Stand in for the transport hop: whatever the Initiator sends is
	// handed to the Responder directly, and whatever the Responder sends
	// back is injected into the Initiator's inbound stream.
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if sent := initiatorTp.Sent(); len(sent) > 0 {
				resp.HandleFrame(context.Background(), sent[0].Data, "")
				break
			}
			time.Sleep(time.Millisecond)
		}
		deadline = time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if sent := deviceTp.Sent(); len(sent) > 0 {
				initiatorTp.Inject(sent[0].Data)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := mgr.Get(ctx, "DeviceInfo", 0x02, "device-1")
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, `{"vendor":"midi2dev"}`, string(result.DecodedBody))
}

// TestE2E_SubscribeRestoresAfterDeviceLoss exercises the Subscription
// Manager's device-loss/reappearance cycle against a real PE Manager,
// using a discovery double to drive device-lost and device-discovered
// events and a canned SubscribeReply injected shortly after each
// subscribe attempt.
func TestE2E_SubscribeRestoresAfterDeviceLoss(t *testing.T) {
	tp := codectest.NewFakeTransport("device-1")
	codec := &codectest.FakeCodec{}
	disc := codectest.NewFakeDiscovery()

	device := discovery.DiscoveredDevice{
		DUID:        0x02,
		Destination: "device-1",
		Identity:    discovery.Identity{ManufacturerID: 1, FamilyID: 2, ModelID: 3},
	}

	subscribeID := "sub-1"
	codec.ParseFunc = func([]byte) (wire.ParsedFrame, error) {
		return wire.ParsedFrame{
			Kind:         wire.ReplySubscribeReply,
			SourceDUID:   0x02,
			DestDUID:     0x01,
			RequestID:    codec.LastSubscribeRequestID(),
			HasRequestID: true,
			SubscribeID:  subscribeID,
			Success:      true,
			Chunk:        wire.Chunk{Resource: "ChannelList"},
		}, nil
	}

	peCfg := pe.DefaultConfig()
	peCfg.OwnDUID = 0x01
	peCfg.Transport = tp
	peCfg.MessageCodec = codec
	peMgr := pe.NewManager(peCfg)
	peMgr.Start(context.Background())
	defer peMgr.Stop()

	subCfg := subscription.DefaultConfig()
	subCfg.ResubscribeDelay = 10 * time.Millisecond
	subCfg.InterAttemptWait = 10 * time.Millisecond
	subMgr := subscription.NewManager(subCfg, peMgr, disc)
	subMgr.Start(context.Background())
	defer subMgr.Stop()

	events := subMgr.Events()

	disc.Discover(device)
	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("subreply"))
	}()
	id := subMgr.Subscribe(context.Background(), "ChannelList", 0x02, nil)
	waitForEvent(t, events, subscription.EventSubscribed, id)

	disc.Lose(0x02)
	waitForEvent(t, events, subscription.EventSuspended, id)

	subscribeID = "sub-2"
	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("subreply"))
	}()
	disc.Discover(device)
	waitForEvent(t, events, subscription.EventRestored, id)
}

func waitForEvent(t *testing.T, ch <-chan subscription.Event, kind subscription.EventKind, intentID string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind && ev.IntentID == intentID {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %s", kind)
		}
	}
}
