package pe

import (
	"time"

	pelog "github.com/midi2dev/pe-engine/pkg/log"
	"github.com/midi2dev/pe-engine/pkg/mcoded7"
	"github.com/midi2dev/pe-engine/pkg/sendstrategy"
	"github.com/midi2dev/pe-engine/pkg/transport"
	"github.com/midi2dev/pe-engine/pkg/validate"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

// Config carries every tunable and every external collaborator the PE
// Manager needs. All fields are injected at construction; there is no
// global state.
type Config struct {
	// OwnDUID is this engine's own device ID. A zero value disables the
	// destination-match check on inbound frames (useful in tests driving a
	// single engine against canned frames).
	OwnDUID wire.DUID

	RequestTimeout            time.Duration
	Cooldown                  time.Duration
	MaxInFlightPerDestination int
	DestinationCacheTTL       time.Duration
	IdleChunkTimeout          time.Duration

	SendStrategy sendstrategy.Strategy
	Logger       pelog.Logger

	Transport    transport.Transport
	MessageCodec wire.MessageCodec
	Mcoded7      mcoded7.Codec
	Validators   *validate.Registry
}

// DefaultConfig returns the spec's documented defaults. Callers must still
// supply Transport, MessageCodec and, for Mcoded7-encoded resources,
// Mcoded7.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:            2500 * time.Millisecond,
		Cooldown:                  2 * time.Second,
		MaxInFlightPerDestination: 2,
		DestinationCacheTTL:       5 * time.Minute,
		IdleChunkTimeout:          time.Second,
		SendStrategy:              sendstrategy.NewSingle(),
		Logger:                    pelog.NoopLogger{},
	}
}
