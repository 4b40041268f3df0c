package pe

import (
	"context"
	"errors"
	"time"

	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// IsRetryable classifies an error returned from a public PE Manager
// operation per spec §4.6/§7: timeouts, transport errors, possibly-corrupt
// responses, and NAK(busy)/NAK(too-many-requests) are retryable; device
// errors are retryable only at status >= 500. Cancellation, ID exhaustion,
// validation failures and everything else is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, peerr.ErrTimeout) {
		return true
	}
	if errors.Is(err, peerr.ErrCancelled) || errors.Is(err, peerr.ErrRequestIDExhausted) || errors.Is(err, peerr.ErrNoDestination) || errors.Is(err, peerr.ErrStopped) {
		return false
	}

	var te *peerr.TransportError
	if errors.As(err, &te) {
		return true
	}
	var ir *peerr.InvalidResponseError
	if errors.As(err, &ir) {
		return true
	}
	var nak *peerr.NAKError
	if errors.As(err, &nak) {
		return nak.Detail == wire.NAKBusy.String() || nak.Detail == wire.NAKTooManyRequests.String()
	}
	var de *peerr.DeviceError
	if errors.As(err, &de) {
		return de.Status >= 500
	}
	return false
}

// SuggestedRetryDelay returns the spec's documented delay for a retryable
// error, or 0 if none applies.
func SuggestedRetryDelay(err error) time.Duration {
	if errors.Is(err, peerr.ErrTimeout) {
		return 100 * time.Millisecond
	}
	var te *peerr.TransportError
	if errors.As(err, &te) {
		return 200 * time.Millisecond
	}
	var nak *peerr.NAKError
	if errors.As(err, &nak) {
		switch nak.Detail {
		case wire.NAKBusy.String():
			return 500 * time.Millisecond
		case wire.NAKTooManyRequests.String():
			return time.Second
		}
	}
	return 0
}

// Retrier is opt-in sugar driving IsRetryable/SuggestedRetryDelay into an
// actual retry loop, grounded on the backoff shape of the teacher's
// pkg/connection.Backoff. It is never wired into send/Subscribe itself.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewRetrier creates a Retrier with maxAttempts (default 3 if <= 0) and a
// fallback delay used when SuggestedRetryDelay has no opinion.
func NewRetrier(maxAttempts int) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Retrier{MaxAttempts: maxAttempts, BaseDelay: 200 * time.Millisecond}
}

// Do runs fn up to MaxAttempts times, honoring IsRetryable/SuggestedRetryDelay
// between attempts, and returns the last error if all attempts fail.
func (r *Retrier) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
		delay := SuggestedRetryDelay(err)
		if delay == 0 {
			delay = r.BaseDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
