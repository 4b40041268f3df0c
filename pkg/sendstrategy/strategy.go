// Package sendstrategy selects a MIDI destination per target device:
// single / broadcast / cache-then-resolved / cache-only / custom resolver.
// The variant set is closed, following the teacher's enum+String() idiom
// (pkg/wire/operation.go) rather than an open interface hierarchy.
package sendstrategy

import (
	"context"
	"time"

	"github.com/midi2dev/pe-engine/pkg/destcache"
	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/transport"
	"github.com/midi2dev/pe-engine/pkg/wire"
	"golang.org/x/sync/errgroup"
)

// Kind is the closed variant tag.
type Kind uint8

const (
	Single Kind = iota
	Broadcast
	Fallback
	Learned
	Custom
)

// String renders the strategy kind name.
func (k Kind) String() string {
	switch k {
	case Broadcast:
		return "Broadcast"
	case Fallback:
		return "Fallback"
	case Learned:
		return "Learned"
	case Custom:
		return "Custom"
	default:
		return "Single"
	}
}

// Resolver is a user-supplied destination enumerator for the Custom
// variant.
type Resolver func(ctx context.Context, duid wire.DUID) []wire.Destination

// Strategy is the send policy in effect for one PE Manager.
type Strategy struct {
	Kind     Kind
	Resolver Resolver // only read when Kind == Custom
}

// NewSingle selects the single-send strategy.
func NewSingle() Strategy { return Strategy{Kind: Single} }

// NewBroadcast selects the broadcast-to-everyone strategy.
func NewBroadcast() Strategy { return Strategy{Kind: Broadcast} }

// NewFallback selects the cache-then-resolved strategy.
func NewFallback() Strategy { return Strategy{Kind: Fallback} }

// NewLearned selects the cache-only strategy.
func NewLearned() Strategy { return Strategy{Kind: Learned} }

// NewCustom selects the user-resolver strategy.
func NewCustom(fn Resolver) Strategy { return Strategy{Kind: Custom, Resolver: fn} }

// OnDestinationError is invoked for each destination a fan-out send failed
// against, so the caller can log without this package depending on a
// logger interface.
type OnDestinationError func(dest wire.Destination, err error)

// Send routes msg to duid according to the strategy, using resolved as the
// "resolved destination" parameter the Fallback and Single variants read
// (normally taken from message-parsing or an explicit device handle).
func (s Strategy) Send(ctx context.Context, tp transport.Transport, cache *destcache.Cache, msg []byte, resolved wire.Destination, duid wire.DUID, now time.Time, onErr OnDestinationError) error {
	switch s.Kind {
	case Single:
		return tp.Send(ctx, resolved, msg)

	case Learned:
		dest, ok := cache.GetCached(duid, now)
		if !ok {
			return peerr.ErrNoDestination
		}
		return tp.Send(ctx, dest, msg)

	case Fallback:
		if dest, ok := cache.GetCached(duid, now); ok {
			return tp.Send(ctx, dest, msg)
		}
		return tp.Send(ctx, resolved, msg)

	case Broadcast:
		return fanOut(ctx, tp, tp.Destinations(), msg, onErr)

	case Custom:
		if s.Resolver == nil {
			return peerr.ErrNoDestination
		}
		dests := s.Resolver(ctx, duid)
		if len(dests) == 0 {
			return peerr.ErrNoDestination
		}
		return fanOut(ctx, tp, dests, msg, onErr)

	default:
		return tp.Send(ctx, resolved, msg)
	}
}

// fanOut sends msg to every destination concurrently. A single unreachable
// destination must not block delivery to the others, so per-destination
// errors are reported via onErr and only the first one is also returned.
func fanOut(ctx context.Context, tp transport.Transport, dests []wire.Destination, msg []byte, onErr OnDestinationError) error {
	if len(dests) == 0 {
		return peerr.ErrNoDestination
	}

	// Plain errgroup.Group, not WithContext: a derived context would be
	// cancelled on the first failing Send, which would prematurely abort
	// the sends still in flight to the other destinations.
	var g errgroup.Group
	for _, d := range dests {
		d := d
		g.Go(func() error {
			err := tp.Send(ctx, d, msg)
			if err != nil && onErr != nil {
				onErr(d, err)
			}
			return err
		})
	}
	return g.Wait()
}
