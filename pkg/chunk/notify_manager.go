package chunk

import (
	"sync"
	"time"

	"github.com/midi2dev/pe-engine/pkg/wire"
)

// NotifyManager holds one Assembler per source DUID, since Notify Request
// IDs are assigned by the sending device rather than allocated by the
// Transaction Manager.
type NotifyManager struct {
	mu          sync.Mutex
	idleTimeout time.Duration
	bySource    map[wire.DUID]*Assembler
}

// NewNotifyManager creates a NotifyManager whose per-source assemblers use
// idleTimeout.
func NewNotifyManager(idleTimeout time.Duration) *NotifyManager {
	return &NotifyManager{
		idleTimeout: idleTimeout,
		bySource:    make(map[wire.DUID]*Assembler),
	}
}

// ProcessChunk delegates to the assembler for source, creating one on first
// use.
func (n *NotifyManager) ProcessChunk(source wire.DUID, requestID wire.RequestID, c wire.Chunk, now time.Time) Outcome {
	n.mu.Lock()
	asm, ok := n.bySource[source]
	if !ok {
		asm = NewAssembler(n.idleTimeout)
		n.bySource[source] = asm
	}
	n.mu.Unlock()

	return asm.Add(Key{Source: source, RequestID: requestID}, c, now)
}

// PollTimeouts walks every source's assembler and prunes stale assemblies,
// returning every timed-out entry across all sources.
func (n *NotifyManager) PollTimeouts(now time.Time) []Outcome {
	n.mu.Lock()
	sources := make([]*Assembler, 0, len(n.bySource))
	for _, asm := range n.bySource {
		sources = append(sources, asm)
	}
	n.mu.Unlock()

	var all []Outcome
	for _, asm := range sources {
		all = append(all, asm.PollTimeouts(now)...)
	}
	return all
}

// CancelAll drops every pending assembly for every source.
func (n *NotifyManager) CancelAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bySource = make(map[wire.DUID]*Assembler)
}
