package responder

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/midi2dev/pe-engine/pkg/wire"
)

// Notify builds and fans a Notify out to every subscriber of resource,
// skipping any whose initiator DUID is in exclude. Concurrent fan-out via
// errgroup, same shape as sendstrategy's fanOut.
func (r *Responder) Notify(ctx context.Context, resource string, header wire.Header, body []byte, exclude ...wire.DUID) error {
	r.mu.Lock()
	if _, registered := r.resources[resource]; !registered {
		r.mu.Unlock()
		return nil
	}
	ids := append([]string(nil), r.byResource[resource]...)
	entries := make([]subscriberEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.subscriptions[id]; ok && !duidExcluded(e.initiatorDUID, exclude) {
			entries = append(entries, e)
		}
	}
	r.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			raw, err := r.cfg.Codec.BuildNotify(e.subscribeID, resource, header, body)
			if err != nil {
				r.logDrop("notify build failed for " + e.subscribeID + ": " + err.Error())
				return nil
			}
			r.sendReply(gctx, e.dest, raw)
			return nil
		})
	}
	return g.Wait()
}

func duidExcluded(duid wire.DUID, exclude []wire.DUID) bool {
	for _, d := range exclude {
		if d == duid {
			return true
		}
	}
	return false
}
