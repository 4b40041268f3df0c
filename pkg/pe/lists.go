package pe

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// GetJSON performs a Get and decodes the response body into out. A device
// error status (>= 400) is returned as-is without decoding the body, so
// callers inspecting via errors.As(&peerr.DeviceError{}) still see it.
func (m *Manager) GetJSON(ctx context.Context, resource string, duid wire.DUID, dest wire.Destination, out any) error {
	resp, err := m.Get(ctx, resource, duid, dest)
	if err != nil {
		return err
	}
	if len(resp.DecodedBody) == 0 {
		return nil
	}
	return json.Unmarshal(resp.DecodedBody, out)
}

// SetJSON marshals body and performs a Set.
func (m *Manager) SetJSON(ctx context.Context, resource string, duid wire.DUID, dest wire.Destination, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return &peerr.InvalidResponseError{Reason: err.Error()}
	}
	_, err = m.Set(ctx, resource, duid, dest, raw)
	return err
}

// GetDeviceInfo decodes the DeviceInfo resource into out.
func (m *Manager) GetDeviceInfo(ctx context.Context, duid wire.DUID, dest wire.Destination, out any) error {
	return m.GetJSON(ctx, "DeviceInfo", duid, dest, out)
}

// GetChannelList decodes the ChannelList resource into out.
func (m *Manager) GetChannelList(ctx context.Context, duid wire.DUID, dest wire.Destination, out any) error {
	return m.GetJSON(ctx, "ChannelList", duid, dest, out)
}

// GetControllerList decodes the ControllerList resource into out.
func (m *Manager) GetControllerList(ctx context.Context, duid wire.DUID, dest wire.Destination, out any) error {
	return m.GetJSON(ctx, "ControllerList", duid, dest, out)
}

// GetProgramList decodes the ProgramList resource into out.
func (m *Manager) GetProgramList(ctx context.Context, duid wire.DUID, dest wire.Destination, out any) error {
	return m.GetJSON(ctx, "ProgramList", duid, dest, out)
}

const (
	resourceListMaxRetries = 5
	resourceListRetryDelay = 100 * time.Millisecond
)

// GetResourceList decodes the ResourceList resource into out, auto-retrying
// on timeout or decode errors (and on the other errors IsRetryable reports)
// with a short inter-attempt delay — BLE MIDI
// frequently loses chunks, so this is the one place the core retries
// internally rather than leaving retry policy entirely to the caller.
func (m *Manager) GetResourceList(ctx context.Context, duid wire.DUID, dest wire.Destination, out any) error {
	var lastErr error
	for attempt := 0; attempt < resourceListMaxRetries; attempt++ {
		err := m.GetJSON(ctx, "ResourceList", duid, dest, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryableForList(err) {
			return err
		}
		select {
		case <-time.After(resourceListRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func isRetryableForList(err error) bool {
	if err == nil {
		return false
	}
	if IsRetryable(err) {
		return true
	}
	// A JSON decode error isn't one of peerr's named types but is still
	// worth retrying, since a transient chunk loss looks like garbage JSON.
	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	return errors.As(err, &se) || errors.As(err, &ute)
}

// FallbackDiagnostics reports which resource path GetListWithFallback
// actually used.
type FallbackDiagnostics struct {
	Path               string // "extended" | "fallbackToStandard"
	AttemptedResources []string
	ExtendedWasEmpty   bool
}

// GetListWithFallback tries the extended resource name first; if it errors
// or decodes to an empty list, it falls back to the standard resource name.
func (m *Manager) GetListWithFallback(ctx context.Context, extended, standard string, duid wire.DUID, dest wire.Destination, out any) (FallbackDiagnostics, error) {
	diag := FallbackDiagnostics{AttemptedResources: []string{extended}}

	err := m.GetJSON(ctx, extended, duid, dest, out)
	if err == nil && !isEmptyList(out) {
		diag.Path = "extended"
		return diag, nil
	}
	if err == nil {
		diag.ExtendedWasEmpty = true
	}

	diag.AttemptedResources = append(diag.AttemptedResources, standard)
	diag.Path = "fallbackToStandard"
	if err2 := m.GetJSON(ctx, standard, duid, dest, out); err2 != nil {
		return diag, err2
	}
	return diag, nil
}

// GetChannelListWithDiagnostics tries "X-ChannelList" before falling back
// to "ChannelList".
func (m *Manager) GetChannelListWithDiagnostics(ctx context.Context, duid wire.DUID, dest wire.Destination, out any) (FallbackDiagnostics, error) {
	return m.GetListWithFallback(ctx, "X-ChannelList", "ChannelList", duid, dest, out)
}

func isEmptyList(out any) bool {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() == 0
	default:
		return false
	}
}
