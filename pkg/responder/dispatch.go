package responder

import (
	"context"

	"github.com/midi2dev/pe-engine/pkg/wire"
)

// HandleFrame parses and dispatches one inbound Inquiry frame. source is
// the transport endpoint it arrived from, if known; an empty source means
// the reply falls back to Transport.Broadcast. Grounded on the teacher's
// pkg/interaction.Server.HandleRequest dispatch switch.
func (r *Responder) HandleFrame(ctx context.Context, data []byte, source wire.Destination) {
	pi, err := r.cfg.Codec.ParseInquiry(data)
	if err != nil {
		r.logDrop("inquiry parse failed: " + err.Error())
		return
	}
	if r.cfg.OwnDUID != 0 && !pi.DestDUID.IsBroadcast() && pi.DestDUID != r.cfg.OwnDUID {
		return
	}

	switch pi.Kind {
	case wire.InquiryCapability:
		r.handleCapability(ctx, pi, source)
	case wire.InquiryGet:
		r.handleGet(ctx, pi, source)
	case wire.InquirySet:
		r.handleSet(ctx, pi, source)
	case wire.InquirySubscribeStart:
		r.handleSubscribeStart(ctx, pi, source)
	case wire.InquirySubscribeEnd:
		r.handleSubscribeEnd(ctx, pi, source)
	default:
		r.logDrop("unrecognized inquiry kind")
	}
}

func (r *Responder) handleCapability(ctx context.Context, pi wire.ParsedInquiry, source wire.Destination) {
	raw, err := r.cfg.Codec.BuildGetReply(pi.RequestID, wire.Header{Status: 200}, nil)
	if err != nil {
		r.logDrop("capability reply build failed: " + err.Error())
		return
	}
	r.sendReply(ctx, source, raw)
}

func (r *Responder) handleGet(ctx context.Context, pi wire.ParsedInquiry, source wire.Destination) {
	r.mu.Lock()
	h, ok := r.resources[pi.Resource]
	r.mu.Unlock()

	if !ok {
		r.replyGetStatus(ctx, pi, source, 404, "resource not found")
		return
	}
	if h.Get == nil {
		r.replyGetStatus(ctx, pi, source, 404, "resource not readable")
		return
	}

	body, mcoded7, err := h.Get(pi.Offset, pi.Limit)
	if err != nil {
		r.replyGetStatus(ctx, pi, source, 500, err.Error())
		return
	}

	header := wire.Header{Status: 200, Resource: pi.Resource}
	if mcoded7 {
		header.MutualEncoding = "Mcoded7"
	}
	raw, err := r.cfg.Codec.BuildGetReply(pi.RequestID, header, body)
	if err != nil {
		r.logDrop("get reply build failed: " + err.Error())
		return
	}
	r.sendReply(ctx, source, raw)
}

func (r *Responder) replyGetStatus(ctx context.Context, pi wire.ParsedInquiry, source wire.Destination, status int, message string) {
	raw, err := r.cfg.Codec.BuildGetReply(pi.RequestID, wire.Header{Status: status, Message: message, Resource: pi.Resource}, nil)
	if err != nil {
		r.logDrop("get error reply build failed: " + err.Error())
		return
	}
	r.sendReply(ctx, source, raw)
}

func (r *Responder) handleSet(ctx context.Context, pi wire.ParsedInquiry, source wire.Destination) {
	r.mu.Lock()
	h, ok := r.resources[pi.Resource]
	r.mu.Unlock()

	status, message := 200, ""
	switch {
	case !ok:
		status, message = 404, "resource not found"
	case h.Set == nil:
		status, message = 405, "resource is read-only"
	default:
		if err := h.Set(pi.Body); err != nil {
			status, message = 500, err.Error()
		}
	}

	raw, err := r.cfg.Codec.BuildSetReply(pi.RequestID, wire.Header{Status: status, Message: message, Resource: pi.Resource})
	if err != nil {
		r.logDrop("set reply build failed: " + err.Error())
		return
	}
	r.sendReply(ctx, source, raw)
}

func (r *Responder) handleSubscribeStart(ctx context.Context, pi wire.ParsedInquiry, source wire.Destination) {
	r.mu.Lock()
	h, ok := r.resources[pi.Resource]
	r.mu.Unlock()

	var status int
	var message, subscribeID string
	switch {
	case !ok:
		status, message = 404, "resource not found"
	case !h.SupportsSubscription:
		status, message = 405, "resource does not support subscription"
	default:
		subscribeID = r.nextSubID()
		r.mu.Lock()
		entry := subscriberEntry{subscribeID: subscribeID, resource: pi.Resource, initiatorDUID: pi.SourceDUID, dest: source}
		r.subscriptions[subscribeID] = entry
		r.byResource[pi.Resource] = append(r.byResource[pi.Resource], subscribeID)
		r.mu.Unlock()
		status = 200
	}

	raw, err := r.cfg.Codec.BuildSubscribeReply(pi.RequestID, wire.Header{Status: status, Message: message, Resource: pi.Resource}, subscribeID)
	if err != nil {
		r.logDrop("subscribe reply build failed: " + err.Error())
		return
	}
	r.sendReply(ctx, source, raw)
}

func (r *Responder) handleSubscribeEnd(ctx context.Context, pi wire.ParsedInquiry, source wire.Destination) {
	r.mu.Lock()
	entry, ok := r.subscriptions[pi.SubscribeID]
	if ok {
		delete(r.subscriptions, pi.SubscribeID)
		r.removeFromIndex(entry.resource, pi.SubscribeID)
	}
	r.mu.Unlock()

	status, message := 200, ""
	if !ok {
		status, message = 404, "unknown subscription"
	}
	raw, err := r.cfg.Codec.BuildSubscribeReply(pi.RequestID, wire.Header{Status: status, Message: message, Resource: pi.Resource}, pi.SubscribeID)
	if err != nil {
		r.logDrop("unsubscribe reply build failed: " + err.Error())
		return
	}
	r.sendReply(ctx, source, raw)
}

// removeFromIndex must be called with r.mu held.
func (r *Responder) removeFromIndex(resource, subscribeID string) {
	ids := r.byResource[resource]
	for i, id := range ids {
		if id == subscribeID {
			r.byResource[resource] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byResource[resource]) == 0 {
		delete(r.byResource, resource)
	}
}
