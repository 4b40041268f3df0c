// Command pe-example demonstrates a PE engine Initiator and Responder
// talking across a loopback transport, in one process.
//
// It walks through:
//   - a GET against a read-only resource
//   - a SET against a writable resource
//   - a Subscribe through the Subscription Manager, followed by a Notify
//     pushed from the Responder side
//
// Usage:
//
//	go run ./cmd/pe-example
//	go run ./cmd/pe-example -protocol-log /tmp/pe-example.cbor
//
// Flags:
//
//	-protocol-log string  File path for protocol event logging (CBOR format)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/midi2dev/pe-engine/pkg/discovery"
	pelog "github.com/midi2dev/pe-engine/pkg/log"
	"github.com/midi2dev/pe-engine/pkg/pe"
	"github.com/midi2dev/pe-engine/pkg/responder"
	"github.com/midi2dev/pe-engine/pkg/subscription"
	"github.com/midi2dev/pe-engine/pkg/wire"
)

const (
	initiatorDUID wire.DUID = 0x01
	deviceDUID    wire.DUID = 0x02

	initiatorDest wire.Destination = "initiator"
	deviceDest    wire.Destination = "device"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("PE Engine Example")
	log.Println("=================")

	protocolLogPath := flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.Parse()

	logger, closeLogger := buildLogger(*protocolLogPath)
	defer closeLogger()

	initiatorTp := newLoopbackTransport(initiatorDest)
	deviceTp := newLoopbackTransport(deviceDest)
	link(initiatorTp, deviceTp)

	device := newDevice(deviceTp, logger)
	initiator := newInitiator(initiatorTp, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device.resp.Start(ctx)
	initiator.mgr.Start(ctx)
	defer initiator.mgr.Stop()
	defer device.resp.Stop()

	disc := newStaticDiscovery(discovery.DiscoveredDevice{
		DUID:        deviceDUID,
		Destination: deviceDest,
		Identity:    discovery.Identity{ManufacturerID: 1, FamilyID: 1, ModelID: 1},
	})
	subMgr := subscription.NewManager(subscription.DefaultConfig(), initiator.mgr, disc)
	subMgr.Start(ctx)
	defer subMgr.Stop()

	runDemo(ctx, initiator.mgr, device.resp, subMgr, disc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-time.After(2 * time.Second):
	}
	log.Println("Shutting down...")
}

// buildLogger always logs to the console via slog, and additionally
// CBOR-encodes every event to path when one is given. The returned func
// closes the file logger, if any, and is safe to defer unconditionally.
func buildLogger(path string) (pelog.Logger, func()) {
	console := pelog.NewSlogAdapter(slog.Default())
	if path == "" {
		return console, func() {}
	}

	fileLogger, err := pelog.NewFileLogger(path)
	if err != nil {
		log.Fatalf("open protocol log: %v", err)
	}
	return pelog.NewMultiLogger(console, fileLogger), func() { fileLogger.Close() }
}

func runDemo(ctx context.Context, mgr *pe.Manager, resp *responder.Responder, subMgr *subscription.Manager, disc *staticDiscovery) {
	log.Println("--- GET DeviceInfo ---")
	getCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	res, err := mgr.Get(getCtx, "DeviceInfo", deviceDUID, deviceDest)
	if err != nil {
		log.Fatalf("GET failed: %v", err)
	}
	fmt.Printf("GET DeviceInfo -> status %d, body %s\n", res.Status, res.DecodedBody)

	log.Println("--- SET X-Name ---")
	setCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	res, err = mgr.Set(setCtx, "X-Name", deviceDUID, deviceDest, []byte(`{"name":"Workstation Synth"}`))
	if err != nil {
		log.Fatalf("SET failed: %v", err)
	}
	fmt.Printf("SET X-Name -> status %d\n", res.Status)

	log.Println("--- Subscribe ChannelList ---")
	events := subMgr.Events()
	disc.announce()
	id := subMgr.Subscribe(ctx, "ChannelList", deviceDUID, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case ev := <-events:
				fmt.Printf("subscription event: %s (intent %s)\n", ev.Kind, ev.IntentID)
				if ev.Kind == subscription.EventSubscribed && ev.IntentID == id {
					return
				}
			case <-deadline:
				return
			}
		}
	}()
	wg.Wait()

	log.Println("--- Notify from device side ---")
	if err := resp.Notify(ctx, "ChannelList", wire.Header{Status: 200}, []byte(`[{"ch":1,"name":"Lead"}]`)); err != nil {
		log.Printf("notify failed: %v", err)
	}

	deadline := time.After(time.Second)
	select {
	case ev := <-events:
		if ev.Kind == subscription.EventNotification {
			fmt.Printf("received notification on %s: %s\n", ev.Resource, ev.NotifyBody)
		}
	case <-deadline:
		log.Println("no notification observed within timeout")
	}
}
