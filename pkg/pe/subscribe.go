package pe

import (
	"context"
	"time"

	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// doSubRequest is the shared send path for Subscribe and Unsubscribe: both
// reserve a Request ID from the same allocator GET/SET uses and suspend on
// a SubscribeReply, differing only in which frame build is invoked.
func (m *Manager) doSubRequest(ctx context.Context, resource string, duid wire.DUID, dest wire.Destination, build func(id wire.RequestID) ([]byte, error)) (subResult, error) {
	if resource == "" {
		return subResult{}, &peerr.ValidationError{Kind: peerr.ValidationEmptyResource}
	}

	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return subResult{}, peerr.ErrStopped
	}

	now := time.Now()
	txnRec, err := m.txns.Begin(resource, duid, now, now.Add(m.cfg.RequestTimeout))
	if err != nil {
		return subResult{}, err
	}

	raw, err := build(txnRec.ID)
	if err != nil {
		m.txns.Cancel(txnRec.ID, time.Now())
		return subResult{}, &peerr.InvalidResponseError{Reason: err.Error()}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	w := &subWaiterT{respCh: make(chan subResult, 1), cancel: cancel}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		cancel()
		m.txns.Cancel(txnRec.ID, time.Now())
		return subResult{}, peerr.ErrStopped
	}
	m.subWaiters[txnRec.ID] = w
	m.mu.Unlock()
	m.txns.MarkInFlight(txnRec.ID)

	go m.runSubTimeout(reqCtx, txnRec.ID, m.cfg.RequestTimeout)
	go m.runSubSend(reqCtx, txnRec.ID, dest, duid, raw)

	select {
	case res := <-w.respCh:
		return res, res.err
	case <-ctx.Done():
		m.resolveSubWaiter(txnRec.ID, subResult{err: peerr.ErrCancelled})
		return subResult{}, peerr.ErrCancelled
	}
}

func (m *Manager) runSubTimeout(ctx context.Context, id wire.RequestID, timeout time.Duration) {
	select {
	case <-time.After(timeout):
		m.resolveSubWaiter(id, subResult{err: peerr.ErrTimeout})
	case <-ctx.Done():
	}
}

func (m *Manager) runSubSend(ctx context.Context, id wire.RequestID, dest wire.Destination, duid wire.DUID, raw []byte) {
	err := m.cfg.SendStrategy.Send(ctx, m.cfg.Transport, m.cache, raw, dest, duid, time.Now(), m.logDestinationError)
	if err != nil {
		m.resolveSubWaiter(id, subResult{err: &peerr.TransportError{Cause: err}})
	}
}

// Subscribe sends a Subscribe(start) Inquiry for resource to duid at dest,
// returning the device-assigned subscribeId on success.
func (m *Manager) Subscribe(ctx context.Context, resource string, duid wire.DUID, dest wire.Destination) (string, error) {
	res, err := m.doSubRequest(ctx, resource, duid, dest, func(id wire.RequestID) ([]byte, error) {
		return m.cfg.MessageCodec.BuildSubscribe(wire.SubscribeRequest{Resource: resource, DUID: duid, RequestID: id})
	})
	if err != nil {
		return "", err
	}
	return res.subscribeID, nil
}

// Unsubscribe sends a Subscribe(end) Inquiry and, on success, removes the
// tracked Subscription.
func (m *Manager) Unsubscribe(ctx context.Context, resource string, duid wire.DUID, dest wire.Destination, subscribeID string) error {
	_, err := m.doSubRequest(ctx, resource, duid, dest, func(id wire.RequestID) ([]byte, error) {
		return m.cfg.MessageCodec.BuildUnsubscribe(wire.UnsubscribeRequest{Resource: resource, DUID: duid, RequestID: id, SubscribeID: subscribeID})
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.subscriptions, subscribeID)
	m.mu.Unlock()
	return nil
}

// Subscriptions returns a snapshot of currently tracked subscriptions.
func (m *Manager) Subscriptions() []Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		out = append(out, s)
	}
	return out
}
