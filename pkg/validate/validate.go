// Package validate is the pre-SET payload validation pipeline: a size
// limit, an optional registered per-resource validator, and a generic
// JSON-well-formedness fallback. Concrete resource schemas (DeviceInfo,
// ResourceList, ...) are out of scope; this package only runs whatever
// validator the embedder registered.
package validate

import (
	"encoding/json"
	"sync"

	"github.com/midi2dev/pe-engine/pkg/peerr"
)

// DefaultMaxPayloadBytes is the default size ceiling for a SET body.
// Devices with SysEx-constrained transports may configure a lower limit.
const DefaultMaxPayloadBytes = 1 << 20 // 1 MiB

// Func validates a resource's raw body, returning an error whose text
// becomes the failure reason.
type Func func(body []byte) error

// Registry runs the validation pipeline for SET bodies.
type Registry struct {
	mu             sync.RWMutex
	maxPayloadBytes int
	byResource     map[string]Func
}

// NewRegistry creates a Registry with the given size ceiling. A
// maxPayloadBytes <= 0 uses DefaultMaxPayloadBytes.
func NewRegistry(maxPayloadBytes int) *Registry {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Registry{
		maxPayloadBytes: maxPayloadBytes,
		byResource:      make(map[string]Func),
	}
}

// RegisterValidator installs fn as the validator for resource, replacing
// any previously registered validator for the same name.
func (r *Registry) RegisterValidator(resource string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byResource[resource] = fn
}

// Validate runs the pipeline: size check, registered validator (if any),
// else a generic JSON-well-formedness check.
func (r *Registry) Validate(resource string, body []byte) error {
	if len(body) > r.maxPayloadBytes {
		return &peerr.PayloadValidationError{Resource: resource, Reason: "payload exceeds size limit"}
	}

	r.mu.RLock()
	fn, ok := r.byResource[resource]
	r.mu.RUnlock()

	if ok {
		if err := fn(body); err != nil {
			return &peerr.PayloadValidationError{Resource: resource, Reason: err.Error()}
		}
		return nil
	}

	if len(body) > 0 && !json.Valid(body) {
		return &peerr.PayloadValidationError{Resource: resource, Reason: "body is not well-formed JSON"}
	}
	return nil
}
