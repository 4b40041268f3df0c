// Package txn is the Transaction Manager: allocation and lifecycle of 7-bit
// Request IDs with cooldown, per-destination in-flight caps, and the
// Initiator-owned Chunk Assembler for GET/SET replies. Allocation follows a
// sequential scan from the last-handed-out ID, skipping IDs still in
// cooldown, grounded on the timer-bookkeeping idiom in the teacher's
// pkg/duration/timer.go.
package txn

import (
	"sync"
	"time"

	"github.com/midi2dev/pe-engine/pkg/chunk"
	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// State is a Transaction's lifecycle stage.
type State uint8

const (
	Reserved State = iota
	InFlight
	Assembling
	Complete
	TimedOut
	Cancelled
)

// Transaction is one outstanding Initiator request.
type Transaction struct {
	ID       wire.RequestID
	Resource string
	DUID     wire.DUID
	Deadline time.Time
	State    State
}

// Config carries the Transaction Manager's tunables.
type Config struct {
	Cooldown                  time.Duration
	MaxInFlightPerDestination int
	IdleChunkTimeout          time.Duration
}

// DefaultConfig returns the spec's documented defaults (cooldown 2s in
// production, 0 in tests; cap 2; chunk idle timeout 1s, within the spec'd
// 0.5-2s range).
func DefaultConfig() Config {
	return Config{
		Cooldown:                  2 * time.Second,
		MaxInFlightPerDestination: 2,
		IdleChunkTimeout:          time.Second,
	}
}

// Manager allocates and releases Request IDs and owns the Initiator-side
// Chunk Assembler for PE Replies.
type Manager struct {
	mu sync.Mutex

	cfg Config

	reserved       map[wire.RequestID]*Transaction
	cooldownUntil  map[wire.RequestID]time.Time
	inFlightByDUID map[wire.DUID]int
	lastHandedOut  wire.RequestID
	stopped        bool

	assembler *chunk.Assembler
}

// NewManager creates a Transaction Manager with the given configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:            cfg,
		reserved:       make(map[wire.RequestID]*Transaction),
		cooldownUntil:  make(map[wire.RequestID]time.Time),
		inFlightByDUID: make(map[wire.DUID]int),
		assembler:      chunk.NewAssembler(cfg.IdleChunkTimeout),
		lastHandedOut:  wire.MaxRequestID, // so the first scan starts at 0
	}
}

// Begin reserves a Request ID for a new transaction to dest, or fails with
// peerr.ErrRequestIDExhausted when either every ID is reserved/in cooldown,
// or dest's in-flight cap is already reached.
func (m *Manager) Begin(resource string, dest wire.DUID, now time.Time, deadline time.Time) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, peerr.ErrStopped
	}
	if m.inFlightByDUID[dest] >= m.cfg.MaxInFlightPerDestination {
		return nil, peerr.ErrRequestIDExhausted
	}

	start := int(m.lastHandedOut) + 1
	for i := 0; i <= int(wire.MaxRequestID); i++ {
		candidate := wire.RequestID((start + i) % (int(wire.MaxRequestID) + 1))
		if _, reserved := m.reserved[candidate]; reserved {
			continue
		}
		if until, inCooldown := m.cooldownUntil[candidate]; inCooldown && now.Before(until) {
			continue
		}

		txnRec := &Transaction{
			ID:       candidate,
			Resource: resource,
			DUID:     dest,
			Deadline: deadline,
			State:    Reserved,
		}
		m.reserved[candidate] = txnRec
		m.inFlightByDUID[dest]++
		m.lastHandedOut = candidate
		delete(m.cooldownUntil, candidate)
		return txnRec, nil
	}

	return nil, peerr.ErrRequestIDExhausted
}

// MarkInFlight transitions a reserved transaction to InFlight once its send
// task has been scheduled.
func (m *Manager) MarkInFlight(id wire.RequestID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.reserved[id]; ok {
		t.State = InFlight
	}
}

// ProcessChunk delegates to the Initiator-owned Chunk Assembler for the
// transaction's source DUID. Returns chunk.Outcome{Kind: UnknownRequestID}
// if id has no active transaction.
func (m *Manager) ProcessChunk(id wire.RequestID, c wire.Chunk, now time.Time) chunk.Outcome {
	m.mu.Lock()
	t, ok := m.reserved[id]
	if ok {
		t.State = Assembling
	}
	m.mu.Unlock()

	if !ok {
		return chunk.Outcome{Kind: chunk.UnknownRequestID, Key: chunk.Key{RequestID: id}}
	}
	return m.assembler.Add(chunk.Key{Source: t.DUID, RequestID: id}, c, now)
}

// Cancel releases id and starts its cooldown from now. It is idempotent:
// cancelling an already-terminal or unknown ID is a no-op.
func (m *Manager) Cancel(id wire.RequestID, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release(id, now)
}

// release is Cancel's internal, lock-already-held implementation.
func (m *Manager) release(id wire.RequestID, now time.Time) {
	t, ok := m.reserved[id]
	if !ok {
		return
	}
	delete(m.reserved, id)
	m.inFlightByDUID[t.DUID]--
	if m.inFlightByDUID[t.DUID] <= 0 {
		delete(m.inFlightByDUID, t.DUID)
	}
	m.cooldownUntil[id] = now.Add(m.cfg.Cooldown)
	m.assembler.Cancel(chunk.Key{Source: t.DUID, RequestID: id})
}

// CancelAll is the terminal stop: every reserved ID is released and the
// manager refuses new Begin calls until Reset.
func (m *Manager) CancelAll(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.reserved {
		m.release(id, now)
	}
	m.assembler.CancelAll()
	m.stopped = true
}

// Reset clears the stopped flag and all bookkeeping so the manager may be
// reused after CancelAll.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = false
	m.reserved = make(map[wire.RequestID]*Transaction)
	m.cooldownUntil = make(map[wire.RequestID]time.Time)
	m.inFlightByDUID = make(map[wire.DUID]int)
}

// PollChunkTimeouts prunes any stale Initiator-owned assemblies.
func (m *Manager) PollChunkTimeouts(now time.Time) []chunk.Outcome {
	return m.assembler.PollTimeouts(now)
}

// Stats reports current allocator occupancy for observability. The engine
// embedding this package may export these via its own metrics without this
// package taking a metrics dependency itself.
type Stats struct {
	Reserved       int
	InFlightByDUID map[wire.DUID]int
	InCooldown     int
}

// Stats returns a point-in-time snapshot.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	inFlight := make(map[wire.DUID]int, len(m.inFlightByDUID))
	for k, v := range m.inFlightByDUID {
		inFlight[k] = v
	}
	return Stats{
		Reserved:       len(m.reserved),
		InFlightByDUID: inFlight,
		InCooldown:     len(m.cooldownUntil),
	}
}
