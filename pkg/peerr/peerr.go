// Package peerr is the engine's closed error taxonomy. Every branch of
// spec §7 has a named sentinel or struct here, following the StatusError
// pattern in the teacher's pkg/interaction/client.go rather than a generic
// "internal error" catch-all.
package peerr

import (
	"errors"
	"fmt"
)

// Sentinel errors with no useful payload beyond their identity.
var (
	ErrTimeout            = errors.New("pe: timeout")
	ErrCancelled          = errors.New("pe: cancelled")
	ErrRequestIDExhausted = errors.New("pe: request id exhausted")
	ErrNoDestination      = errors.New("pe: no destination")
	ErrStopped            = errors.New("pe: engine stopped")
)

// DeviceError is a remote status >= 400 returned in a PE Reply.
type DeviceError struct {
	Status  int
	Message string
}

func (e *DeviceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("pe: device error (status %d)", e.Status)
	}
	return fmt.Sprintf("pe: device error (status %d): %s", e.Status, e.Message)
}

// DeviceNotFoundError means the destination resolver could not find a route
// to DUID.
type DeviceNotFoundError struct {
	DUID uint32
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("pe: device not found (duid %07X)", e.DUID)
}

// InvalidResponseError means the header could not be parsed, or the decoded
// body did not match the expected structure.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("pe: invalid response: %s", e.Reason)
}

// TransportError wraps an underlying send failure.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("pe: transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ValidationKind is the closed set of pre-send structural validation
// failures.
type ValidationKind uint8

const (
	ValidationEmptyResource ValidationKind = iota
	ValidationMissingBody
	ValidationChannelOutOfRange
	ValidationOffsetOutOfRange
	ValidationLimitOutOfRange
)

func (k ValidationKind) String() string {
	switch k {
	case ValidationEmptyResource:
		return "empty resource"
	case ValidationMissingBody:
		return "missing body"
	case ValidationChannelOutOfRange:
		return "channel out of range"
	case ValidationOffsetOutOfRange:
		return "offset out of range"
	case ValidationLimitOutOfRange:
		return "limit out of range"
	default:
		return "unknown"
	}
}

// ValidationError is a pre-send structural check failure (spec §4.6
// validate()). It is raised before any Request ID is reserved.
type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pe: validation failed: %s", e.Kind)
}

// PayloadValidationError is a pre-SET payload/schema check failure (spec
// §4.9).
type PayloadValidationError struct {
	Resource string
	Reason   string
}

func (e *PayloadValidationError) Error() string {
	return fmt.Sprintf("pe: payload validation failed for %q: %s", e.Resource, e.Reason)
}

// NAKError is a remote protocol-level negative acknowledgement.
type NAKError struct {
	Detail     string
	DetailCode byte
	Text       string
}

func (e *NAKError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("pe: NAK (%s): %s", e.Detail, e.Text)
	}
	return fmt.Sprintf("pe: NAK (%s)", e.Detail)
}
