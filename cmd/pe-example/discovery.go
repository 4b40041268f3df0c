package main

import (
	"github.com/midi2dev/pe-engine/pkg/discovery"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// staticDiscovery is a discovery.Service holding one always-present device,
// standing in for the real MIDI-CI Discovery Inquiry/Reply exchange this
// engine only consumes as an interface.
type staticDiscovery struct {
	device discovery.DiscoveredDevice
	events chan discovery.Event
}

func newStaticDiscovery(device discovery.DiscoveredDevice) *staticDiscovery {
	return &staticDiscovery{device: device, events: make(chan discovery.Event, 4)}
}

func (d *staticDiscovery) Devices() []discovery.DiscoveredDevice {
	return []discovery.DiscoveredDevice{d.device}
}

func (d *staticDiscovery) Destination(duid wire.DUID) (wire.Destination, bool) {
	if duid != d.device.DUID {
		return "", false
	}
	return d.device.Destination, true
}

func (d *staticDiscovery) Events() <-chan discovery.Event { return d.events }

// announce pushes the device as freshly discovered, which is what the
// Subscription Manager reacts to when resolving a pending intent.
func (d *staticDiscovery) announce() {
	d.events <- discovery.Event{Type: discovery.DeviceDiscovered, Device: d.device, DUID: d.device.DUID}
}
