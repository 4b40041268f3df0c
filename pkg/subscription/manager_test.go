package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/midi2dev/pe-engine/internal/codectest"
	"github.com/midi2dev/pe-engine/pkg/discovery"
	"github.com/midi2dev/pe-engine/pkg/pe"
	"github.com/midi2dev/pe-engine/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRig(t *testing.T) (*Manager, *pe.Manager, *codectest.FakeTransport, *codectest.FakeCodec, *codectest.FakeDiscovery) {
	t.Helper()
	tp := codectest.NewFakeTransport("ep-1")
	codec := &codectest.FakeCodec{}
	peCfg := pe.DefaultConfig()
	peCfg.RequestTimeout = time.Second
	peCfg.MessageCodec = codec
	peCfg.Transport = tp
	peCfg.OwnDUID = 0x0000001
	peMgr := pe.NewManager(peCfg)
	peMgr.Start(context.Background())

	disc := codectest.NewFakeDiscovery()
	cfg := Config{ResubscribeDelay: 10 * time.Millisecond, MaxRetryAttempts: 2, InterAttemptWait: 10 * time.Millisecond}
	subMgr := NewManager(cfg, peMgr, disc)
	subMgr.Start(context.Background())

	t.Cleanup(func() {
		subMgr.Stop()
		peMgr.Stop()
	})
	return subMgr, peMgr, tp, codec, disc
}

func subscribeReplyParseFunc(subscribeID string) func([]byte) (wire.ParsedFrame, error) {
	return func([]byte) (wire.ParsedFrame, error) {
		return wire.ParsedFrame{
			Kind:         wire.ReplySubscribeReply,
			SourceDUID:   0x42,
			DestDUID:     0x0000001,
			HasRequestID: true,
			Success:      true,
			SubscribeID:  subscribeID,
			Chunk:        wire.Chunk{Resource: "ProgramList"},
		}, nil
	}
}

func TestManager_SubscribeImmediateMatchMarksActive(t *testing.T) {
	subMgr, _, tp, codec, disc := newTestRig(t)
	codec.ParseFunc = subscribeReplyParseFunc("sub-1")
	disc.Discover(discovery.DiscoveredDevice{DUID: 0x42, Destination: "ep-1"})

	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("subreply"))
	}()

	events := subMgr.Events()
	id := subMgr.Subscribe(context.Background(), "ProgramList", 0x42, nil)

	select {
	case ev := <-events:
		assert.Equal(t, EventSubscribed, ev.Kind)
		assert.Equal(t, id, ev.IntentID)
		assert.Equal(t, "sub-1", ev.SubscribeID)
	case <-time.After(time.Second):
		t.Fatal("no Subscribed event received")
	}

	snaps := subMgr.Intents()
	require.Len(t, snaps, 1)
	assert.Equal(t, StateActive, snaps[0].State)
}

func TestManager_SubscribeNoDeviceStaysPending(t *testing.T) {
	subMgr, _, _, _, _ := newTestRig(t)
	id := subMgr.Subscribe(context.Background(), "ProgramList", 0x99, nil)

	snaps := subMgr.Intents()
	require.Len(t, snaps, 1)
	assert.Equal(t, id, snaps[0].ID)
	assert.Equal(t, StatePending, snaps[0].State)
}

func TestManager_DeviceLostSuspendsActiveIntent(t *testing.T) {
	subMgr, _, tp, codec, disc := newTestRig(t)
	codec.ParseFunc = subscribeReplyParseFunc("sub-1")
	disc.Discover(discovery.DiscoveredDevice{DUID: 0x42, Destination: "ep-1"})

	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("subreply"))
	}()

	events := subMgr.Events()
	id := subMgr.Subscribe(context.Background(), "ProgramList", 0x42, nil)
	<-events // Subscribed

	disc.Lose(0x42)

	select {
	case ev := <-events:
		assert.Equal(t, EventSuspended, ev.Kind)
		assert.Equal(t, id, ev.IntentID)
	case <-time.After(time.Second):
		t.Fatal("no Suspended event received")
	}

	snaps := subMgr.Intents()
	require.Len(t, snaps, 1)
	assert.Equal(t, StatePending, snaps[0].State)
}

// Scenario 5: subscription restore on device re-appearance.
func TestManager_DeviceReappearanceRestoresSubscription(t *testing.T) {
	subMgr, _, tp, codec, disc := newTestRig(t)
	codec.ParseFunc = subscribeReplyParseFunc("sub-1")
	events := subMgr.Events()

	id := subMgr.Subscribe(context.Background(), "ProgramList", 0x42, nil)
	snaps := subMgr.Intents()
	require.Len(t, snaps, 1)
	assert.Equal(t, StatePending, snaps[0].State)

	codec.ParseFunc = subscribeReplyParseFunc("sub-2")
	go func() {
		time.Sleep(30 * time.Millisecond)
		tp.Inject([]byte("subreply"))
	}()
	disc.Discover(discovery.DiscoveredDevice{DUID: 0x42, Destination: "ep-1"})

	select {
	case ev := <-events:
		assert.Equal(t, EventRestored, ev.Kind)
		assert.Equal(t, id, ev.IntentID)
		assert.Equal(t, "sub-2", ev.SubscribeID)
	case <-time.After(2 * time.Second):
		t.Fatal("no Restored event received")
	}
}

func TestManager_UnsubscribeRemovesIntent(t *testing.T) {
	subMgr, _, _, _, _ := newTestRig(t)
	id := subMgr.Subscribe(context.Background(), "ProgramList", 0x99, nil)
	require.NoError(t, subMgr.Unsubscribe(context.Background(), id))
	assert.Empty(t, subMgr.Intents())
}

func TestManager_UnsubscribeUnknownIntentErrors(t *testing.T) {
	subMgr, _, _, _, _ := newTestRig(t)
	err := subMgr.Unsubscribe(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestIntentState_String(t *testing.T) {
	assert.Equal(t, "Pending", StatePending.String())
	assert.Equal(t, "Active", StateActive.String())
	assert.Equal(t, "Failed", StateFailed.String())
}
