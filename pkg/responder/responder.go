package responder

import (
	"context"
	"fmt"
	"sync"

	pelog "github.com/midi2dev/pe-engine/pkg/log"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// subscriberEntry is one active subscription held against this Responder.
type subscriberEntry struct {
	subscribeID   string
	resource      string
	initiatorDUID wire.DUID
	dest          wire.Destination
}

// Responder is the PE Responder: resource registry, Inquiry dispatch, and
// subscriber notification fan-out.
type Responder struct {
	cfg Config

	mu              sync.Mutex
	resources       map[string]ResourceHandler
	subscriptions   map[string]subscriberEntry
	byResource      map[string][]string // resource -> subscribeIDs, for O(subscribers) fan-out
	nextSubscribeID uint64
	runCancel       context.CancelFunc
	stopped         bool
}

// New constructs a Responder. cfg.Transport and cfg.Codec must be set
// before Start for anything to actually flow.
func New(cfg Config) *Responder {
	if cfg.Logger == nil {
		cfg.Logger = pelog.NoopLogger{}
	}
	return &Responder{
		cfg:           cfg,
		resources:     make(map[string]ResourceHandler),
		subscriptions: make(map[string]subscriberEntry),
		byResource:    make(map[string][]string),
		stopped:       true,
	}
}

// RegisterResource adds or replaces the handler for name. Registering the
// same name twice keeps the latter registration.
func (r *Responder) RegisterResource(name string, h ResourceHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[name] = h
}

// UnregisterResource removes a resource's handler and drops every
// subscription held against it, so a subsequent Notify for name reaches no
// one (a subsequent GET/SET for it answers 404).
func (r *Responder) UnregisterResource(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resources, name)
	for _, id := range r.byResource[name] {
		delete(r.subscriptions, id)
	}
	delete(r.byResource, name)
}

// Start begins consuming the configured transport's inbound frame stream.
// Idempotent.
func (r *Responder) Start(ctx context.Context) {
	r.mu.Lock()
	if !r.stopped {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.runCancel = cancel
	r.stopped = false
	r.mu.Unlock()

	if r.cfg.Transport != nil {
		go r.consumeTransport(runCtx)
	}
}

func (r *Responder) consumeTransport(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-r.cfg.Transport.Received():
			if !ok {
				return
			}
			var source wire.Destination
			if frame.Source != nil {
				source = *frame.Source
			}
			r.HandleFrame(ctx, frame.Data, source)
		}
	}
}

// Stop cancels the background consumer and clears every subscription.
// Idempotent.
func (r *Responder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancel := r.runCancel
	r.subscriptions = make(map[string]subscriberEntry)
	r.byResource = make(map[string][]string)
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (r *Responder) nextSubID() string {
	r.mu.Lock()
	r.nextSubscribeID++
	id := r.nextSubscribeID
	r.mu.Unlock()
	return fmt.Sprintf("sub-%d", id)
}

func (r *Responder) logDrop(reason string) {
	r.cfg.Logger.Log(pelog.Event{Category: pelog.CategoryError, Error: &pelog.ErrorEventData{Layer: pelog.LayerService, Message: reason}})
}

func (r *Responder) logTransportErr(err error) {
	r.cfg.Logger.Log(pelog.Event{Category: pelog.CategoryError, Error: &pelog.ErrorEventData{Layer: pelog.LayerTransport, Message: err.Error()}})
}

// sendReply delivers a built reply frame to source if known, else
// broadcasts it — per §4.8's reply routing rule.
func (r *Responder) sendReply(ctx context.Context, source wire.Destination, raw []byte) {
	var err error
	if source != "" {
		err = r.cfg.Transport.Send(ctx, source, raw)
	} else {
		err = r.cfg.Transport.Broadcast(ctx, raw)
	}
	if err != nil {
		r.logTransportErr(err)
	}
}
