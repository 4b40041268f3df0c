package pe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/midi2dev/pe-engine/internal/codectest"
	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, codec *codectest.FakeCodec, tp *codectest.FakeTransport, timeout, cooldown time.Duration) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RequestTimeout = timeout
	cfg.Cooldown = cooldown
	cfg.MessageCodec = codec
	cfg.Transport = tp
	cfg.OwnDUID = 0x0000001
	m := NewManager(cfg)
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

// Scenario 1: single-chunk GET success.
func TestManager_SingleChunkGetSuccess(t *testing.T) {
	tp := codectest.NewFakeTransport("ep-1")
	codec := &codectest.FakeCodec{}
	codec.ParseFunc = func([]byte) (wire.ParsedFrame, error) {
		return wire.ParsedFrame{
			Kind:         wire.ReplyPEReply,
			SourceDUID:   0x0123456,
			DestDUID:     0x0000001,
			RequestID:    0,
			HasRequestID: true,
			Chunk: wire.Chunk{
				ThisChunk: 1, NumChunks: 1,
				HeaderBytes:   []byte(`{"status":200}`),
				PropertyBytes: []byte(`{"manufacturerName":"Acme","productName":"Synth"}`),
			},
		}, nil
	}
	m := newTestManager(t, codec, tp, time.Second, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("reply"))
	}()

	resp, err := m.Get(context.Background(), "DeviceInfo", 0x0123456, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"manufacturerName":"Acme","productName":"Synth"}`, string(resp.DecodedBody))

	dest, ok := m.cache.GetCached(0x0123456, time.Now())
	assert.True(t, ok)
	assert.Equal(t, wire.Destination("ep-1"), dest)
}

// Scenario 2: three-chunk GET assembly.
func TestManager_ThreeChunkGetAssembly(t *testing.T) {
	tp := codectest.NewFakeTransport("ep-1")
	codec := &codectest.FakeCodec{}
	codec.ParseFunc = func(frame []byte) (wire.ParsedFrame, error) {
		base := wire.ParsedFrame{Kind: wire.ReplyPEReply, SourceDUID: 0x42, DestDUID: 0x0000001, RequestID: 0, HasRequestID: true}
		switch string(frame) {
		case "c1":
			base.Chunk = wire.Chunk{ThisChunk: 1, NumChunks: 3, HeaderBytes: []byte(`{}`), PropertyBytes: []byte(`[{"resource":"A"},`)}
		case "c2":
			base.Chunk = wire.Chunk{ThisChunk: 2, NumChunks: 3, PropertyBytes: []byte(`{"resource":"B"},`)}
		case "c3":
			base.Chunk = wire.Chunk{ThisChunk: 3, NumChunks: 3, PropertyBytes: []byte(`{"resource":"C"}]`)}
		}
		return base, nil
	}
	m := newTestManager(t, codec, tp, time.Second, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("c1"))
		tp.Inject([]byte("c2"))
		tp.Inject([]byte("c3"))
	}()

	resp, err := m.Get(context.Background(), "ResourceList", 0x42, "ep-1")
	require.NoError(t, err)
	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(resp.DecodedBody, &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "A", decoded[0]["resource"])
	assert.Equal(t, "C", decoded[2]["resource"])
}

// Scenario 3: timeout with cooldown blocks immediate reuse of the timed-out ID.
func TestManager_TimeoutWithCooldown(t *testing.T) {
	tp := codectest.NewFakeTransport("ep-1")
	codec := &codectest.FakeCodec{}
	m := newTestManager(t, codec, tp, 40*time.Millisecond, 200*time.Millisecond)

	_, err := m.Get(context.Background(), "DeviceInfo", 0x42, "ep-1")
	require.ErrorIs(t, err, peerr.ErrTimeout)
	timedOutID := codec.LastGetRequestID()

	_, err = m.Get(context.Background(), "DeviceInfo", 0x42, "ep-1")
	require.ErrorIs(t, err, peerr.ErrTimeout)
	assert.NotEqual(t, timedOutID, codec.LastGetRequestID())
}

// Scenario 4: NAK routing with a single pending waiter.
func TestManager_NAKRouting(t *testing.T) {
	tp := codectest.NewFakeTransport("ep-1")
	codec := &codectest.FakeCodec{}
	codec.ParseFunc = func([]byte) (wire.ParsedFrame, error) {
		return wire.ParsedFrame{
			Kind:     wire.ReplyNAK,
			DestDUID: 0x0000001,
			NAK:      wire.NAKInfo{Detail: wire.NAKBusy, DetailCode: 0x01},
		}, nil
	}
	m := newTestManager(t, codec, tp, time.Second, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("nak"))
	}()

	_, err := m.Get(context.Background(), "DeviceInfo", 0x42, "ep-1")
	require.Error(t, err)
	var nakErr *peerr.NAKError
	require.True(t, errors.As(err, &nakErr))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 500*time.Millisecond, SuggestedRetryDelay(err))
}

func TestManager_SubscribeRegistersSubscriptionOnSuccess(t *testing.T) {
	tp := codectest.NewFakeTransport("ep-1")
	codec := &codectest.FakeCodec{}
	codec.ParseFunc = func([]byte) (wire.ParsedFrame, error) {
		return wire.ParsedFrame{
			Kind:         wire.ReplySubscribeReply,
			SourceDUID:   0x42,
			DestDUID:     0x0000001,
			RequestID:    0,
			HasRequestID: true,
			Success:      true,
			SubscribeID:  "sub-1",
			Chunk:        wire.Chunk{Resource: "ProgramList"},
		}, nil
	}
	m := newTestManager(t, codec, tp, time.Second, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("subreply"))
	}()

	id, err := m.Subscribe(context.Background(), "ProgramList", 0x42, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)
	assert.Len(t, m.Subscriptions(), 1)
}

func TestManager_StopResumesAllPendingWaitersWithCancelled(t *testing.T) {
	tp := codectest.NewFakeTransport("ep-1")
	codec := &codectest.FakeCodec{}
	m := newTestManager(t, codec, tp, 5*time.Second, 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Get(context.Background(), "DeviceInfo", 0x42, "ep-1")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	m.Stop()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, peerr.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("waiter was not resumed after Stop")
	}
}

// Scenario 6: extended resource responds empty, falls back to standard.
func TestManager_ExtendedToStandardFallback(t *testing.T) {
	tp := codectest.NewFakeTransport("ep-1")
	codec := &codectest.FakeCodec{}
	codec.ParseFunc = func(frame []byte) (wire.ParsedFrame, error) {
		base := wire.ParsedFrame{Kind: wire.ReplyPEReply, SourceDUID: 0x42, DestDUID: 0x0000001, HasRequestID: true}
		switch string(frame) {
		case "extended":
			base.RequestID = 0
			base.Chunk = wire.Chunk{ThisChunk: 1, NumChunks: 1, HeaderBytes: []byte(`{}`), PropertyBytes: []byte(`[]`)}
		case "standard":
			base.RequestID = 1
			base.Chunk = wire.Chunk{ThisChunk: 1, NumChunks: 1, HeaderBytes: []byte(`{}`), PropertyBytes: []byte(`[{"channel":1},{"channel":2}]`)}
		}
		return base, nil
	}
	m := newTestManager(t, codec, tp, time.Second, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("extended"))
		time.Sleep(10 * time.Millisecond)
		tp.Inject([]byte("standard"))
	}()

	var out []map[string]int
	diag, err := m.GetChannelListWithDiagnostics(context.Background(), 0x42, "ep-1", &out)
	require.NoError(t, err)
	assert.Equal(t, "fallbackToStandard", diag.Path)
	assert.True(t, diag.ExtendedWasEmpty)
	assert.Equal(t, []string{"X-ChannelList", "ChannelList"}, diag.AttemptedResources)
	assert.Len(t, out, 2)
}

func TestValidateParams_BoundaryBehaviors(t *testing.T) {
	assert.NoError(t, validateParams(RequestParams{Resource: "DeviceInfo", Offset: 0, Limit: 1}))
	assert.Error(t, validateParams(RequestParams{Resource: "", Offset: 0, Limit: 1}))
	assert.Error(t, validateParams(RequestParams{Resource: "DeviceInfo", Offset: 0, Limit: 0}))
	assert.Error(t, validateParams(RequestParams{Resource: "DeviceInfo", IsSet: true, Offset: 0, Limit: 1}))

	ch0, ch255, chNeg, ch256 := 0, 255, -1, 256
	assert.NoError(t, validateParams(RequestParams{Resource: "R", Channel: &ch0, Limit: 1}))
	assert.NoError(t, validateParams(RequestParams{Resource: "R", Channel: &ch255, Limit: 1}))
	assert.Error(t, validateParams(RequestParams{Resource: "R", Channel: &chNeg, Limit: 1}))
	assert.Error(t, validateParams(RequestParams{Resource: "R", Channel: &ch256, Limit: 1}))
}

func TestValidateParams_IsPure(t *testing.T) {
	p := RequestParams{Resource: "DeviceInfo", Offset: 0, Limit: 1}
	assert.Equal(t, validateParams(p), validateParams(p))
}
