package sendstrategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/midi2dev/pe-engine/pkg/destcache"
	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/transport"
	"github.com/midi2dev/pe-engine/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent map[wire.Destination][]byte
	dest []wire.Destination
	fail map[wire.Destination]error
}

func newFakeTransport(dests ...wire.Destination) *fakeTransport {
	return &fakeTransport{sent: make(map[wire.Destination][]byte), dest: dests, fail: make(map[wire.Destination]error)}
}

func (f *fakeTransport) Send(_ context.Context, to wire.Destination, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[to]; ok {
		return err
	}
	f.sent[to] = data
	return nil
}
func (f *fakeTransport) Broadcast(ctx context.Context, data []byte) error {
	for _, d := range f.dest {
		if err := f.Send(ctx, d, data); err != nil {
			return err
		}
	}
	return nil
}
func (f *fakeTransport) Destinations() []wire.Destination       { return f.dest }
func (f *fakeTransport) Received() <-chan transport.InboundFrame { return nil }
func (f *fakeTransport) SetupChanged() <-chan struct{}           { return nil }

func TestStrategy_Single(t *testing.T) {
	tp := newFakeTransport("a", "b")
	s := NewSingle()
	err := s.Send(context.Background(), tp, destcache.New(time.Minute), []byte("m"), "b", wire.DUID(1), time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), tp.sent["b"])
}

func TestStrategy_LearnedFailsWithNoDestinationOnMiss(t *testing.T) {
	tp := newFakeTransport("a")
	s := NewLearned()
	err := s.Send(context.Background(), tp, destcache.New(time.Minute), []byte("m"), "a", wire.DUID(1), time.Now(), nil)
	assert.ErrorIs(t, err, peerr.ErrNoDestination)
}

func TestStrategy_LearnedUsesCacheOnHit(t *testing.T) {
	tp := newFakeTransport("a", "b")
	cache := destcache.New(time.Minute)
	now := time.Now()
	cache.RecordSuccess(wire.DUID(1), "b", now)

	s := NewLearned()
	err := s.Send(context.Background(), tp, cache, []byte("m"), "a", wire.DUID(1), now, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), tp.sent["b"])
	assert.Nil(t, tp.sent["a"])
}

func TestStrategy_FallbackUsesResolvedOnCacheMiss(t *testing.T) {
	tp := newFakeTransport("a")
	s := NewFallback()
	err := s.Send(context.Background(), tp, destcache.New(time.Minute), []byte("m"), "a", wire.DUID(1), time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), tp.sent["a"])
}

func TestStrategy_BroadcastSendsToEveryDestinationDespitePartialFailure(t *testing.T) {
	tp := newFakeTransport("a", "b", "c")
	tp.fail["b"] = errors.New("unreachable")

	var failed []wire.Destination
	var mu sync.Mutex
	s := NewBroadcast()
	err := s.Send(context.Background(), tp, destcache.New(time.Minute), []byte("m"), "", wire.DUID(1), time.Now(), func(d wire.Destination, _ error) {
		mu.Lock()
		failed = append(failed, d)
		mu.Unlock()
	})

	assert.Error(t, err)
	assert.Equal(t, []byte("m"), tp.sent["a"])
	assert.Equal(t, []byte("m"), tp.sent["c"])
	assert.Contains(t, failed, wire.Destination("b"))
}

func TestStrategy_CustomEmptyResultFails(t *testing.T) {
	tp := newFakeTransport("a")
	s := NewCustom(func(context.Context, wire.DUID) []wire.Destination { return nil })
	err := s.Send(context.Background(), tp, destcache.New(time.Minute), []byte("m"), "a", wire.DUID(1), time.Now(), nil)
	assert.ErrorIs(t, err, peerr.ErrNoDestination)
}

func TestStrategy_CustomSendsToEachResolvedDestination(t *testing.T) {
	tp := newFakeTransport("a", "b")
	s := NewCustom(func(context.Context, wire.DUID) []wire.Destination { return []wire.Destination{"a", "b"} })
	err := s.Send(context.Background(), tp, destcache.New(time.Minute), []byte("m"), "", wire.DUID(1), time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), tp.sent["a"])
	assert.Equal(t, []byte("m"), tp.sent["b"])
}
