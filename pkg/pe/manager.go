package pe

import (
	"context"
	"sync"
	"time"

	"github.com/midi2dev/pe-engine/pkg/chunk"
	"github.com/midi2dev/pe-engine/pkg/destcache"
	pelog "github.com/midi2dev/pe-engine/pkg/log"
	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/txn"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// result is what a GET/SET waiter is resumed with.
type result struct {
	resp wire.Response
	err  error
}

// waiter is a pending GET/SET request's suspension point. dest is the
// destination the request was sent to, kept so a successful reply can
// record it in the Destination Cache without re-resolving anything.
type waiter struct {
	respCh chan result
	cancel context.CancelFunc
	dest   wire.Destination
}

// subResult is what a Subscribe/Unsubscribe waiter is resumed with.
type subResult struct {
	subscribeID string
	err         error
}

type subWaiterT struct {
	respCh chan subResult
	cancel context.CancelFunc
}

// Subscription is an active subscription this engine holds as Initiator.
type Subscription struct {
	SubscribeID string
	Resource    string
	Device      wire.DeviceHandle
}

// NotifyEvent is one decoded Notify delivered to the single listener
// stream.
type NotifyEvent struct {
	SubscribeID string
	Resource    string
	Source      wire.DUID
	Header      wire.Header
	Body        []byte
}

// Manager is the PE Manager: the Initiator core.
type Manager struct {
	cfg Config

	txns   *txn.Manager
	cache  *destcache.Cache
	notify *chunk.NotifyManager

	mu            sync.Mutex
	waiters       map[wire.RequestID]*waiter
	subWaiters    map[wire.RequestID]*subWaiterT
	subscriptions map[string]Subscription
	notificationCh chan NotifyEvent
	runCancel     context.CancelFunc
	stopped       bool
}

// NewManager constructs a PE Manager. cfg.Transport and cfg.MessageCodec
// must be set before Start is called for anything to actually flow.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = pelog.NoopLogger{}
	}
	return &Manager{
		cfg: cfg,
		txns: txn.NewManager(txn.Config{
			Cooldown:                  cfg.Cooldown,
			MaxInFlightPerDestination: cfg.MaxInFlightPerDestination,
			IdleChunkTimeout:          cfg.IdleChunkTimeout,
		}),
		cache:         destcache.New(cfg.DestinationCacheTTL),
		notify:        chunk.NewNotifyManager(cfg.IdleChunkTimeout),
		waiters:       make(map[wire.RequestID]*waiter),
		subWaiters:    make(map[wire.RequestID]*subWaiterT),
		subscriptions: make(map[string]Subscription),
		stopped:       true, // Start() must be called before requests are accepted
	}
}

// Start begins consuming the configured transport's inbound frame stream
// (if one was injected into Config) and the background chunk/poll timeout
// loop. Idempotent.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if !m.stopped {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCancel = cancel
	m.stopped = false
	m.mu.Unlock()

	if m.cfg.Transport != nil {
		go m.consumeTransport(runCtx)
	}
	go m.pollLoop(runCtx)
}

func (m *Manager) consumeTransport(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-m.cfg.Transport.Received():
			if !ok {
				return
			}
			m.HandleFrame(frame.Data)
		}
	}
}

func (m *Manager) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.pollTimeouts(now)
		}
	}
}

func (m *Manager) pollTimeouts(now time.Time) {
	for _, out := range m.txns.PollChunkTimeouts(now) {
		m.resolveWaiter(out.Key.RequestID, result{err: peerr.ErrTimeout})
	}
	m.notify.PollTimeouts(now) // staleness on a fire-and-forget Notify has no waiter to resume
}

// Stop is the terminal shutdown: every pending waiter (GET/SET and
// Subscribe/Unsubscribe) is resumed with peerr.ErrCancelled, the
// notification stream is finished, all subscriptions are cleared, the
// background consumer/poll loops are cancelled, and every Request ID is
// released. Idempotent. The engine may be reused after an explicit Reset.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.runCancel
	waiters := m.waiters
	subWaiters := m.subWaiters
	m.waiters = make(map[wire.RequestID]*waiter)
	m.subWaiters = make(map[wire.RequestID]*subWaiterT)
	m.subscriptions = make(map[string]Subscription)
	listenerCh := m.notificationCh
	m.notificationCh = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, w := range waiters {
		w.cancel()
		trySendResult(w.respCh, result{err: peerr.ErrCancelled})
	}
	for _, w := range subWaiters {
		w.cancel()
		trySendSubResult(w.respCh, subResult{err: peerr.ErrCancelled})
	}
	if listenerCh != nil {
		close(listenerCh)
	}
	m.txns.CancelAll(time.Now())
	m.notify.CancelAll()
}

// Reset clears the stopped flag on the Transaction Manager so the engine
// may be restarted. Callers must call Start again afterward.
func (m *Manager) Reset() {
	m.txns.Reset()
}

func trySendResult(ch chan result, r result) {
	select {
	case ch <- r:
	default:
	}
}

func trySendSubResult(ch chan subResult, r subResult) {
	select {
	case ch <- r:
	default:
	}
}

// resolveWaiter resumes the GET/SET waiter for id with res, if one is
// still pending. It is idempotent and race-safe: the map delete under the
// lock is the single point of truth for "already resolved". Returns the
// removed waiter so callers can read its dest for post-resolution
// bookkeeping (e.g. Destination Cache recording).
func (m *Manager) resolveWaiter(id wire.RequestID, res result) (*waiter, bool) {
	m.mu.Lock()
	w, ok := m.waiters[id]
	if ok {
		delete(m.waiters, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	w.cancel()
	m.txns.Cancel(id, time.Now())
	trySendResult(w.respCh, res)
	return w, true
}

// resolveSubWaiter is resolveWaiter's counterpart for Subscribe/Unsubscribe.
func (m *Manager) resolveSubWaiter(id wire.RequestID, res subResult) bool {
	m.mu.Lock()
	w, ok := m.subWaiters[id]
	if ok {
		delete(m.subWaiters, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	w.cancel()
	m.txns.Cancel(id, time.Now())
	trySendSubResult(w.respCh, res)
	return true
}

func (m *Manager) logDestinationError(dest wire.Destination, err error) {
	m.cfg.Logger.Log(pelog.Event{
		Category: pelog.CategoryError,
		Error:    &pelog.ErrorEventData{Layer: pelog.LayerTransport, Message: err.Error(), Context: string(dest)},
	})
}

func (m *Manager) logDrop(reason string) {
	m.cfg.Logger.Log(pelog.Event{
		Category: pelog.CategoryError,
		Error:    &pelog.ErrorEventData{Layer: pelog.LayerService, Message: reason},
	})
}

// doRequest is the GET/SET send path shared by Get, Set and their pagination
// variants: validate, reserve a Request ID, build the frame, register a
// waiter, run a timeout task and a send task as independent cancellable
// children, then suspend until one of them (or an inbound PE Reply/NAK)
// delivers a terminal outcome.
func (m *Manager) doRequest(ctx context.Context, p RequestParams, duid wire.DUID, dest wire.Destination) (wire.Response, error) {
	if err := validateParams(p); err != nil {
		return wire.Response{}, err
	}

	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return wire.Response{}, peerr.ErrStopped
	}

	if p.IsSet && m.cfg.Validators != nil {
		if err := m.cfg.Validators.Validate(p.Resource, p.Body); err != nil {
			return wire.Response{}, err
		}
	}

	now := time.Now()
	txnRec, err := m.txns.Begin(p.Resource, duid, now, now.Add(m.cfg.RequestTimeout))
	if err != nil {
		return wire.Response{}, err
	}

	var raw []byte
	if p.IsSet {
		raw, err = m.cfg.MessageCodec.BuildSet(wire.SetRequest{Resource: p.Resource, DUID: duid, RequestID: txnRec.ID, Body: p.Body})
	} else {
		raw, err = m.cfg.MessageCodec.BuildGet(wire.GetRequest{Resource: p.Resource, DUID: duid, RequestID: txnRec.ID, Offset: p.Offset, Limit: p.Limit})
	}
	if err != nil {
		m.txns.Cancel(txnRec.ID, time.Now())
		return wire.Response{}, &peerr.InvalidResponseError{Reason: err.Error()}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	w := &waiter{respCh: make(chan result, 1), cancel: cancel, dest: dest}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		cancel()
		m.txns.Cancel(txnRec.ID, time.Now())
		return wire.Response{}, peerr.ErrStopped
	}
	m.waiters[txnRec.ID] = w
	m.mu.Unlock()
	m.txns.MarkInFlight(txnRec.ID)

	go m.runTimeout(reqCtx, txnRec.ID, m.cfg.RequestTimeout)
	go m.runSend(reqCtx, txnRec.ID, dest, duid, raw)

	select {
	case res := <-w.respCh:
		return res.resp, res.err
	case <-ctx.Done():
		m.resolveWaiter(txnRec.ID, result{err: peerr.ErrCancelled})
		return wire.Response{}, peerr.ErrCancelled
	}
}

func (m *Manager) runTimeout(ctx context.Context, id wire.RequestID, timeout time.Duration) {
	select {
	case <-time.After(timeout):
		m.resolveWaiter(id, result{err: peerr.ErrTimeout})
	case <-ctx.Done():
	}
}

func (m *Manager) runSend(ctx context.Context, id wire.RequestID, dest wire.Destination, duid wire.DUID, raw []byte) {
	err := m.cfg.SendStrategy.Send(ctx, m.cfg.Transport, m.cache, raw, dest, duid, time.Now(), m.logDestinationError)
	if err != nil {
		m.resolveWaiter(id, result{err: &peerr.TransportError{Cause: err}})
	}
}

// Get sends a GET Inquiry for resource to duid at dest, with offset 0 and
// limit 1 (no list pagination).
func (m *Manager) Get(ctx context.Context, resource string, duid wire.DUID, dest wire.Destination) (wire.Response, error) {
	return m.doRequest(ctx, RequestParams{Resource: resource, Offset: 0, Limit: 1}, duid, dest)
}

// GetPaged sends a GET Inquiry with explicit offset/limit pagination.
func (m *Manager) GetPaged(ctx context.Context, resource string, duid wire.DUID, dest wire.Destination, offset, limit int) (wire.Response, error) {
	return m.doRequest(ctx, RequestParams{Resource: resource, Offset: offset, Limit: limit}, duid, dest)
}

// Set sends a SET Inquiry for resource with body to duid at dest.
func (m *Manager) Set(ctx context.Context, resource string, duid wire.DUID, dest wire.Destination, body []byte) (wire.Response, error) {
	return m.doRequest(ctx, RequestParams{Resource: resource, IsSet: true, Body: body, Offset: 0, Limit: 1}, duid, dest)
}
