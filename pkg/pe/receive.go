package pe

import (
	"time"

	"github.com/midi2dev/pe-engine/pkg/chunk"
	pelog "github.com/midi2dev/pe-engine/pkg/log"
	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// HandleFrame is the receive-path entry point: parse, filter by
// destination, dispatch on reply kind. Safe to call directly for a
// caller-driven "handleReceivedExternal" mode that multiplexes several
// engines over one transport, instead of relying on Start's own consumer
// goroutine.
func (m *Manager) HandleFrame(raw []byte) {
	pf, err := m.cfg.MessageCodec.Parse(raw)
	if err != nil {
		m.cfg.Logger.Log(pelog.Event{Category: pelog.CategoryError, Error: &pelog.ErrorEventData{Layer: pelog.LayerWire, Message: err.Error()}})
		return
	}
	if m.cfg.OwnDUID != 0 && !pf.DestDUID.IsBroadcast() && pf.DestDUID != m.cfg.OwnDUID {
		return
	}

	switch pf.Kind {
	case wire.ReplyNAK:
		m.handleNAK(pf)
	case wire.ReplySubscribeReply:
		m.handleSubscribeReply(pf)
	case wire.ReplyNotify:
		m.handleNotify(pf)
	case wire.ReplyPEReply:
		m.handlePEReply(pf)
	default:
		m.logDrop("unrecognized frame kind")
	}
}

// handleNAK implements the spec's NAK routing heuristic: NAK frames carry
// no Request ID, so if exactly one GET/SET waiter is pending it is assumed
// to be the target; otherwise the frame is logged and dropped, leaving the
// ambiguous waiter(s) to resolve by their own timeout.
func (m *Manager) handleNAK(pf wire.ParsedFrame) {
	m.mu.Lock()
	var only wire.RequestID
	count := 0
	for id := range m.waiters {
		only = id
		count++
	}
	m.mu.Unlock()

	if count != 1 {
		m.logDrop("NAK with no unambiguous pending waiter")
		return
	}
	m.resolveWaiter(only, result{err: &peerr.NAKError{
		Detail:     pf.NAK.Detail.String(),
		DetailCode: pf.NAK.DetailCode,
		Text:       pf.NAK.Text,
	}})
}

func (m *Manager) handleSubscribeReply(pf wire.ParsedFrame) {
	if !pf.HasRequestID {
		m.logDrop("subscribe reply missing request id")
		return
	}
	if !pf.Success {
		m.resolveSubWaiter(pf.RequestID, subResult{err: &peerr.DeviceError{Status: int(pf.NAK.StatusCode), Message: pf.NAK.Text}})
		return
	}
	m.resolveSubWaiter(pf.RequestID, subResult{subscribeID: pf.SubscribeID})
	if pf.SubscribeID == "" {
		return
	}
	m.mu.Lock()
	m.subscriptions[pf.SubscribeID] = Subscription{
		SubscribeID: pf.SubscribeID,
		Resource:    pf.Chunk.Resource,
		Device:      wire.DeviceHandle{DUID: pf.SourceDUID},
	}
	m.mu.Unlock()
}

// handleNotify dispatches directly for a single-chunk Notify, else
// delegates to the Notify Assembly Manager.
func (m *Manager) handleNotify(pf wire.ParsedFrame) {
	var out chunk.Outcome
	if pf.Chunk.NumChunks <= 1 {
		out = chunk.Outcome{
			Kind:        chunk.Complete,
			Header:      pf.Chunk.HeaderBytes,
			Body:        pf.Chunk.PropertyBytes,
			Resource:    pf.Chunk.Resource,
			SubscribeID: pf.Chunk.SubscribeID,
		}
	} else {
		out = m.notify.ProcessChunk(pf.SourceDUID, pf.RequestID, pf.Chunk, time.Now())
	}
	if out.Kind != chunk.Complete {
		return
	}

	header, err := wire.ParseHeader(out.Header)
	if err != nil {
		m.logDrop("notify header parse failed: " + err.Error())
		return
	}
	m.dispatchNotify(NotifyEvent{
		SubscribeID: out.SubscribeID,
		Resource:    out.Resource,
		Source:      pf.SourceDUID,
		Header:      header,
		Body:        m.decodeBody(header, out.Body),
	})
}

// handlePEReply feeds the chunk into the Initiator-owned assembler and, on
// completion, parses the header, decodes the body and resumes the waiter.
// On a successful (status < 400) reply it also records the (DUID,
// destination) pair in the Destination Cache.
func (m *Manager) handlePEReply(pf wire.ParsedFrame) {
	if !pf.HasRequestID {
		m.logDrop("PE reply missing request id")
		return
	}
	out := m.txns.ProcessChunk(pf.RequestID, pf.Chunk, time.Now())
	switch out.Kind {
	case chunk.UnknownRequestID:
		m.logDrop("PE reply for unknown or non-pending request id")
	case chunk.Incomplete, chunk.Timeout:
		// more chunks expected, or already reaped by the poll loop.
	case chunk.Complete:
		header, err := wire.ParseHeader(out.Header)
		if err != nil {
			m.resolveWaiter(pf.RequestID, result{err: &peerr.InvalidResponseError{Reason: err.Error()}})
			return
		}
		body := m.decodeBody(header, out.Body)
		resp := wire.Response{Status: header.Status, Header: header, RawBody: out.Body, DecodedBody: body}

		if header.Status >= 400 {
			m.resolveWaiter(pf.RequestID, result{resp: resp, err: &peerr.DeviceError{Status: header.Status, Message: header.Message}})
			return
		}
		w, resolved := m.resolveWaiter(pf.RequestID, result{resp: resp})
		if resolved {
			m.cache.RecordSuccess(pf.SourceDUID, w.dest, time.Now())
		}
	}
}

// decodeBody applies the Mcoded7 fallback rule from spec §3: decode when
// the header declares it, or when the raw body doesn't look like JSON and
// decoding succeeds (non-compliant device workaround).
func (m *Manager) decodeBody(h wire.Header, raw []byte) []byte {
	if m.cfg.Mcoded7 == nil {
		return raw
	}
	if h.IsMcoded7() {
		if dec, err := m.cfg.Mcoded7.Decode(raw); err == nil {
			return dec
		}
		return raw
	}
	if !wire.LooksLikeJSON(raw) {
		if dec, err := m.cfg.Mcoded7.Decode(raw); err == nil {
			return dec
		}
	}
	return raw
}

// Notifications returns a stream of decoded Notify events. Only one
// listener is supported at a time: calling this again finishes the
// previous stream (closes its channel) before returning a fresh one.
func (m *Manager) Notifications() <-chan NotifyEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notificationCh != nil {
		close(m.notificationCh)
	}
	ch := make(chan NotifyEvent, 32)
	m.notificationCh = ch
	return ch
}

func (m *Manager) dispatchNotify(ev NotifyEvent) {
	m.mu.Lock()
	ch := m.notificationCh
	m.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
		m.logDrop("notification stream full, dropping event for " + ev.Resource)
	}
}
