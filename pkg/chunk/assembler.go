package chunk

import (
	"sort"
	"sync"
	"time"

	"github.com/midi2dev/pe-engine/pkg/wire"
)

// assembly is the in-progress state of one (source, Request ID) stream.
type assembly struct {
	numChunks   uint8
	header      []byte
	parts       map[uint8][]byte
	resource    string
	subscribeID string
	deadline    time.Time
}

// Assembler buffers any number of concurrent assemblies keyed by Key. It is
// safe for concurrent use.
type Assembler struct {
	mu          sync.Mutex
	idleTimeout time.Duration
	assemblies  map[Key]*assembly
}

// NewAssembler creates an Assembler whose assemblies are considered stale
// after idleTimeout of no new chunk arriving (refreshed on every arrival).
func NewAssembler(idleTimeout time.Duration) *Assembler {
	return &Assembler{
		idleTimeout: idleTimeout,
		assemblies:  make(map[Key]*assembly),
	}
}

// Add feeds one chunk into the assembly for key, returning the resulting
// Outcome. now is injected so tests can control staleness deterministically.
func (a *Assembler) Add(key Key, c wire.Chunk, now time.Time) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c.NumChunks == 0 || c.ThisChunk < 1 || c.ThisChunk > c.NumChunks {
		// Out-of-range index: drop the chunk, leave any existing assembly as-is.
		return Outcome{Kind: Incomplete, Key: key}
	}

	asm, ok := a.assemblies[key]
	if !ok {
		if c.ThisChunk != 1 {
			return Outcome{Kind: UnknownRequestID, Key: key}
		}
		asm = &assembly{
			numChunks:   c.NumChunks,
			parts:       make(map[uint8][]byte),
			resource:    c.Resource,
			subscribeID: c.SubscribeID,
		}
		a.assemblies[key] = asm
	} else if c.NumChunks != asm.numChunks {
		// Protocol error: numChunks changed mid-stream. Discard; the next
		// chunk for this key (if thisChunk > 1) will see no assembly and
		// report UnknownRequestID, matching the spec'd behavior.
		delete(a.assemblies, key)
		return Outcome{Kind: Incomplete, Key: key}
	}

	if _, dup := asm.parts[c.ThisChunk]; !dup {
		asm.parts[c.ThisChunk] = append([]byte(nil), c.PropertyBytes...)
		if c.ThisChunk == 1 {
			asm.header = append([]byte(nil), c.HeaderBytes...)
			if c.Resource != "" {
				asm.resource = c.Resource
			}
			if c.SubscribeID != "" {
				asm.subscribeID = c.SubscribeID
			}
		}
	}
	asm.deadline = now.Add(a.idleTimeout)

	if len(asm.parts) < int(asm.numChunks) {
		return Outcome{Kind: Incomplete, Key: key}
	}

	body := concatenateInOrder(asm.parts, asm.numChunks)
	out := Outcome{
		Kind:        Complete,
		Key:         key,
		Header:      asm.header,
		Body:        body,
		Received:    len(asm.parts),
		Expected:    int(asm.numChunks),
		Resource:    asm.resource,
		SubscribeID: asm.subscribeID,
	}
	delete(a.assemblies, key)
	return out
}

// PollTimeouts prunes every assembly idle longer than its timeout as of now,
// returning a Timeout outcome for each.
func (a *Assembler) PollTimeouts(now time.Time) []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	var stale []Key
	for k, asm := range a.assemblies {
		if now.After(asm.deadline) {
			stale = append(stale, k)
		}
	}
	// Deterministic order for callers/tests.
	sort.Slice(stale, func(i, j int) bool {
		if stale[i].Source != stale[j].Source {
			return stale[i].Source < stale[j].Source
		}
		return stale[i].RequestID < stale[j].RequestID
	})

	outcomes := make([]Outcome, 0, len(stale))
	for _, k := range stale {
		asm := a.assemblies[k]
		outcomes = append(outcomes, Outcome{
			Kind:     Timeout,
			Key:      k,
			Received: len(asm.parts),
			Expected: int(asm.numChunks),
			Resource: asm.resource,
		})
		delete(a.assemblies, k)
	}
	return outcomes
}

// Cancel discards the assembly for key, if any.
func (a *Assembler) Cancel(key Key) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.assemblies, key)
}

// CancelAll discards every pending assembly.
func (a *Assembler) CancelAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assemblies = make(map[Key]*assembly)
}

// Pending reports how many assemblies are currently in progress.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.assemblies)
}

func concatenateInOrder(parts map[uint8][]byte, numChunks uint8) []byte {
	var out []byte
	for i := uint8(1); i <= numChunks; i++ {
		out = append(out, parts[i]...)
	}
	return out
}
