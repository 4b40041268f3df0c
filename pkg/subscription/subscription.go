package subscription

import (
	"errors"
	"time"

	"github.com/midi2dev/pe-engine/pkg/discovery"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// Subscription Manager errors.
var (
	ErrIntentNotFound = errors.New("subscription intent not found")
)

// IntentState is the lifecycle state of a Subscription Intent.
type IntentState uint8

const (
	StatePending IntentState = iota
	StateActive
	StateFailed
)

// String renders the intent state name.
func (s IntentState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateActive:
		return "Active"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IntentSnapshot is a read-only view of one Subscription Intent.
type IntentSnapshot struct {
	ID          string
	Resource    string
	DUID        wire.DUID
	Identity    *discovery.Identity
	State       IntentState
	SubscribeID string // set once State == StateActive
	ActiveDUID  wire.DUID
	FailReason  string
}

// EventKind distinguishes the kinds of Subscription Manager events.
type EventKind uint8

const (
	EventSubscribed EventKind = iota
	EventSuspended
	EventRestored
	EventFailed
	EventNotification
)

// String renders the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventSubscribed:
		return "Subscribed"
	case EventSuspended:
		return "Suspended"
	case EventRestored:
		return "Restored"
	case EventFailed:
		return "Failed"
	case EventNotification:
		return "Notification"
	default:
		return "Unknown"
	}
}

// Event is one Subscription Manager event, yielded to the single listener
// stream returned by Manager.Events.
type Event struct {
	Kind     EventKind
	IntentID string
	Resource string
	DUID     wire.DUID

	SubscribeID string // EventSubscribed, EventRestored
	Reason      string // EventSuspended, EventFailed

	NotifyHeader wire.Header // EventNotification
	NotifyBody   []byte      // EventNotification
}

// Config holds Subscription Manager tuning parameters.
type Config struct {
	// ResubscribeDelay is how long to wait after a device re-appears
	// before attempting to re-subscribe, to let its own state settle.
	ResubscribeDelay time.Duration

	// MaxRetryAttempts bounds how many re-subscribe attempts are made
	// for one device re-appearance before the intent is marked Failed.
	MaxRetryAttempts int

	// InterAttemptWait separates consecutive re-subscribe attempts.
	InterAttemptWait time.Duration
}

// DefaultConfig returns the spec-documented defaults.
func DefaultConfig() Config {
	return Config{
		ResubscribeDelay: 500 * time.Millisecond,
		MaxRetryAttempts: 3,
		InterAttemptWait: time.Second,
	}
}
