// Package discovery declares the device discovery interface the
// Subscription Manager consumes: discovered (MUID, destination) pairs plus
// a stable device identity used to match a re-appeared device to its
// previous DUID. The concrete discovery transport (MIDI-CI Discovery
// Inquiry/Reply on the bus) is an external collaborator.
package discovery

import "github.com/midi2dev/pe-engine/pkg/wire"

// Identity is a stable device identity triple, stable across DUID changes
// (a device keeps its manufacturer/family/model IDs even after it
// disconnects and reappears with a new DUID).
type Identity struct {
	ManufacturerID uint32
	FamilyID       uint16
	ModelID        uint16
}

// DiscoveredDevice is one device currently known to the discovery service.
type DiscoveredDevice struct {
	DUID        wire.DUID
	Destination wire.Destination
	Identity    Identity
}

// EventType distinguishes the kinds of discovery events.
type EventType uint8

const (
	DeviceDiscovered EventType = iota
	DeviceLost
	DeviceUpdated
)

// String renders the event type name.
func (t EventType) String() string {
	switch t {
	case DeviceDiscovered:
		return "DeviceDiscovered"
	case DeviceLost:
		return "DeviceLost"
	case DeviceUpdated:
		return "DeviceUpdated"
	default:
		return "Unknown"
	}
}

// Event is one discovery event.
type Event struct {
	Type   EventType
	Device DiscoveredDevice // zero value for DeviceLost except DUID
	DUID   wire.DUID
}

// Service is the device discovery surface the Subscription Manager
// consumes.
type Service interface {
	Devices() []DiscoveredDevice
	Destination(duid wire.DUID) (wire.Destination, bool)
	Events() <-chan Event
}
