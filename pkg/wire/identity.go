package wire

import "fmt"

// DUID is a 28-bit device unique ID on the MIDI-CI bus.
type DUID uint32

// BroadcastDUID is the distinguished value meaning "every device".
const BroadcastDUID DUID = 0x0FFFFFFF

// DUIDMask keeps DUID values within the 28-bit range MIDI-CI uses.
const DUIDMask DUID = 0x0FFFFFFF

// IsBroadcast reports whether d is the broadcast DUID.
func (d DUID) IsBroadcast() bool {
	return d == BroadcastDUID
}

// String renders the DUID in the hex form used in MIDI-CI logs.
func (d DUID) String() string {
	return fmt.Sprintf("%07X", uint32(d&DUIDMask))
}

// Destination is an opaque, session-scoped handle naming a send endpoint on
// the local MIDI bus. It is never persisted across process restarts.
type Destination string

// RequestID is a 7-bit correlation token between an Inquiry and its Reply.
type RequestID uint8

// MaxRequestID is the highest value a RequestID may hold.
const MaxRequestID RequestID = 127

// Valid reports whether id is within the 7-bit range.
func (id RequestID) Valid() bool {
	return id <= MaxRequestID
}

// DeviceHandle names a device at the destination it is reachable at right
// now. If a device re-appears with a new destination, a new handle
// supersedes the old one; handles are not self-updating.
type DeviceHandle struct {
	DUID        DUID
	Destination Destination
	Name        string
}
