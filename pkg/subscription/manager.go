package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/midi2dev/pe-engine/pkg/discovery"
	"github.com/midi2dev/pe-engine/pkg/pe"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// intentRecord is a Subscription Intent's mutable bookkeeping. Serialized
// under Manager.mu, same as every other component in this engine (single
// mutex per serialized actor, not a mutex per record).
type intentRecord struct {
	id       string
	resource string
	duid     wire.DUID // target DUID hint; zero means match by identity only
	identity *discovery.Identity

	state       IntentState
	subscribeID string
	activeDUID  wire.DUID
	dest        wire.Destination
	failReason  string

	cancelRetry context.CancelFunc // cancels an in-flight resubscribe attempt loop
}

// Manager is the Subscription Manager: it wraps a PE Manager and a
// device-discovery service, tracking subscription intents that outlive the
// underlying device-assigned subscription.
type Manager struct {
	cfg  Config
	pe   *pe.Manager
	disc discovery.Service

	mu            sync.Mutex
	intents       map[string]*intentRecord
	bySubscribeID map[string]string // subscribeId -> intentId
	eventCh       chan Event
	runCancel     context.CancelFunc
	stopped       bool
}

// NewManager constructs a Subscription Manager over an already-constructed
// PE Manager and discovery service.
func NewManager(cfg Config, peMgr *pe.Manager, disc discovery.Service) *Manager {
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = DefaultConfig().MaxRetryAttempts
	}
	return &Manager{
		cfg:           cfg,
		pe:            peMgr,
		disc:          disc,
		intents:       make(map[string]*intentRecord),
		bySubscribeID: make(map[string]string),
		stopped:       true,
	}
}

// Start begins consuming discovery events and PE Manager notifications.
// Idempotent.
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

	go m.consumeDiscovery(runCtx)
	go m.consumeNotifications(runCtx)
}

// Stop is the terminal shutdown: cancels every in-flight resubscribe
// attempt, clears all intents, and finishes the event stream. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.runCancel
	intents := m.intents
	m.intents = make(map[string]*intentRecord)
	m.bySubscribeID = make(map[string]string)
	ch := m.eventCh
	m.eventCh = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, rec := range intents {
		if rec.cancelRetry != nil {
			rec.cancelRetry()
		}
	}
	if ch != nil {
		close(ch)
	}
}

// Events returns a stream of Subscription Manager events. Only one listener
// is supported at a time: calling this again finishes the previous stream.
func (m *Manager) Events() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventCh != nil {
		close(m.eventCh)
	}
	ch := make(chan Event, 32)
	m.eventCh = ch
	return ch
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	ch := m.eventCh
	m.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// Subscribe registers a new Subscription Intent for resource, optionally
// scoped to duid (0 to match by identity alone) and/or a stable device
// identity. If a matching device is already known, an immediate subscribe
// attempt is made; otherwise the intent starts Pending and waits for a
// device-discovered event.
func (m *Manager) Subscribe(ctx context.Context, resource string, duid wire.DUID, identity *discovery.Identity) string {
	id := uuid.NewString()
	rec := &intentRecord{id: id, resource: resource, duid: duid, identity: identity, state: StatePending}

	m.mu.Lock()
	m.intents[id] = rec
	m.mu.Unlock()

	if dev, ok := m.matchDevice(rec); ok {
		m.trySubscribeNow(ctx, rec, dev)
	}
	return id
}

// Unsubscribe cancels any in-flight resubscribe attempt, unsubscribes from
// the device if the intent is currently Active, and removes the intent.
func (m *Manager) Unsubscribe(ctx context.Context, intentID string) error {
	m.mu.Lock()
	rec, ok := m.intents[intentID]
	if !ok {
		m.mu.Unlock()
		return ErrIntentNotFound
	}
	delete(m.intents, intentID)
	if rec.subscribeID != "" {
		delete(m.bySubscribeID, rec.subscribeID)
	}
	m.mu.Unlock()

	if rec.cancelRetry != nil {
		rec.cancelRetry()
	}
	if rec.state == StateActive {
		return m.pe.Unsubscribe(ctx, rec.resource, rec.activeDUID, rec.dest, rec.subscribeID)
	}
	return nil
}

// Intents returns a snapshot of every tracked intent.
func (m *Manager) Intents() []IntentSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]IntentSnapshot, 0, len(m.intents))
	for _, rec := range m.intents {
		out = append(out, IntentSnapshot{
			ID: rec.id, Resource: rec.resource, DUID: rec.duid, Identity: rec.identity,
			State: rec.state, SubscribeID: rec.subscribeID, ActiveDUID: rec.activeDUID,
			FailReason: rec.failReason,
		})
	}
	return out
}

func (m *Manager) matchDevice(rec *intentRecord) (discovery.DiscoveredDevice, bool) {
	for _, dev := range m.disc.Devices() {
		if rec.duid != 0 && dev.DUID == rec.duid {
			return dev, true
		}
		if rec.identity != nil && dev.Identity == *rec.identity {
			return dev, true
		}
	}
	return discovery.DiscoveredDevice{}, false
}

// trySubscribeNow performs one immediate, unretried subscribe attempt used
// for first registration when the device is already known.
func (m *Manager) trySubscribeNow(ctx context.Context, rec *intentRecord, dev discovery.DiscoveredDevice) {
	subscribeID, err := m.pe.Subscribe(ctx, rec.resource, dev.DUID, dev.Destination)
	if err != nil {
		return // stays Pending; a later device-discovered event will retry
	}
	m.markActive(rec.id, subscribeID, dev.DUID, dev.Destination, EventSubscribed)
}

func (m *Manager) markActive(intentID, subscribeID string, duid wire.DUID, dest wire.Destination, kind EventKind) {
	m.mu.Lock()
	rec, ok := m.intents[intentID]
	if !ok {
		m.mu.Unlock()
		return
	}
	rec.state = StateActive
	rec.subscribeID = subscribeID
	rec.activeDUID = duid
	rec.dest = dest
	rec.failReason = ""
	m.bySubscribeID[subscribeID] = intentID
	resource := rec.resource
	m.mu.Unlock()

	m.emit(Event{Kind: kind, IntentID: intentID, Resource: resource, DUID: duid, SubscribeID: subscribeID})
}

func (m *Manager) consumeDiscovery(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.disc.Events():
			if !ok {
				return
			}
			m.handleDiscoveryEvent(ctx, ev)
		}
	}
}

func (m *Manager) handleDiscoveryEvent(ctx context.Context, ev discovery.Event) {
	switch ev.Type {
	case discovery.DeviceDiscovered, discovery.DeviceUpdated:
		m.handleDeviceSeen(ctx, ev.Device)
	case discovery.DeviceLost:
		m.handleDeviceLost(ev.DUID)
	}
}

// handleDeviceSeen scans Pending intents for a match against the
// re-appeared device and schedules a resubscribe attempt for each.
func (m *Manager) handleDeviceSeen(ctx context.Context, dev discovery.DiscoveredDevice) {
	m.mu.Lock()
	var matched []*intentRecord
	for _, rec := range m.intents {
		if rec.state != StatePending {
			continue
		}
		if (rec.duid != 0 && dev.DUID == rec.duid) || (rec.identity != nil && dev.Identity == *rec.identity) {
			matched = append(matched, rec)
		}
	}
	m.mu.Unlock()

	for _, rec := range matched {
		retryCtx, cancel := context.WithCancel(ctx)
		m.mu.Lock()
		rec.cancelRetry = cancel
		m.mu.Unlock()
		go m.resubscribeWithRetry(retryCtx, rec.id, dev)
	}
}

// resubscribeWithRetry waits ResubscribeDelay, then attempts to re-subscribe
// up to MaxRetryAttempts times with an InterAttemptWait pause between
// attempts. Grounded on the backoff-then-retry shape of the teacher's
// pkg/connection.Manager.attemptReconnect, generalized to per-intent retry
// counts instead of unbounded backoff.
func (m *Manager) resubscribeWithRetry(ctx context.Context, intentID string, dev discovery.DiscoveredDevice) {
	select {
	case <-time.After(m.cfg.ResubscribeDelay):
	case <-ctx.Done():
		return
	}

	m.mu.Lock()
	rec, ok := m.intents[intentID]
	m.mu.Unlock()
	if !ok {
		return
	}

	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(m.cfg.InterAttemptWait):
			case <-ctx.Done():
				return
			}
		}
		subscribeID, err := m.pe.Subscribe(ctx, rec.resource, dev.DUID, dev.Destination)
		if err == nil {
			m.markActive(intentID, subscribeID, dev.DUID, dev.Destination, EventRestored)
			return
		}
		lastErr = err
	}

	m.markFailed(intentID, lastErr)
}

func (m *Manager) markFailed(intentID string, cause error) {
	reason := "resubscribe attempts exhausted"
	if cause != nil {
		reason = cause.Error()
	}
	m.mu.Lock()
	rec, ok := m.intents[intentID]
	if !ok {
		m.mu.Unlock()
		return
	}
	rec.state = StateFailed
	rec.failReason = reason
	resource := rec.resource
	duid := rec.duid
	m.mu.Unlock()

	m.emit(Event{Kind: EventFailed, IntentID: intentID, Resource: resource, DUID: duid, Reason: reason})
}

// handleDeviceLost suspends every Active intent currently backed by duid,
// returning it to Pending so a later re-appearance can restore it.
func (m *Manager) handleDeviceLost(duid wire.DUID) {
	m.mu.Lock()
	var suspended []*intentRecord
	for _, rec := range m.intents {
		if rec.state == StateActive && rec.activeDUID == duid {
			rec.state = StatePending
			if rec.subscribeID != "" {
				delete(m.bySubscribeID, rec.subscribeID)
			}
			rec.subscribeID = ""
			rec.dest = ""
			suspended = append(suspended, rec)
		}
	}
	m.mu.Unlock()

	for _, rec := range suspended {
		m.emit(Event{Kind: EventSuspended, IntentID: rec.id, Resource: rec.resource, DUID: duid, Reason: "device lost"})
	}
}

func (m *Manager) consumeNotifications(ctx context.Context) {
	ch := m.pe.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			m.handleNotify(ev)
		}
	}
}

func (m *Manager) handleNotify(ev pe.NotifyEvent) {
	m.mu.Lock()
	intentID, ok := m.bySubscribeID[ev.SubscribeID]
	m.mu.Unlock()
	if !ok {
		return
	}
	m.emit(Event{
		Kind: EventNotification, IntentID: intentID, Resource: ev.Resource, DUID: ev.Source,
		NotifyHeader: ev.Header, NotifyBody: ev.Body,
	})
}
