package main

import (
	pelog "github.com/midi2dev/pe-engine/pkg/log"
	"github.com/midi2dev/pe-engine/pkg/pe"
	"github.com/midi2dev/pe-engine/pkg/responder"
)

type initiatorSide struct {
	mgr *pe.Manager
}

func newInitiator(tp *loopbackTransport, logger pelog.Logger) initiatorSide {
	cfg := pe.DefaultConfig()
	cfg.OwnDUID = initiatorDUID
	cfg.Transport = tp
	cfg.MessageCodec = demoCodec{ownDUID: initiatorDUID, peer: deviceDUID}
	cfg.Logger = logger
	return initiatorSide{mgr: pe.NewManager(cfg)}
}

type deviceSide struct {
	resp *responder.Responder
}

var channelList = []byte(`[{"ch":0,"name":"Grand Piano"}]`)

func newDevice(tp *loopbackTransport, logger pelog.Logger) deviceSide {
	cfg := responder.DefaultConfig()
	cfg.OwnDUID = deviceDUID
	cfg.Transport = tp
	cfg.Codec = demoReplyCodec{ownDUID: deviceDUID}
	cfg.Logger = logger
	resp := responder.New(cfg)

	resp.RegisterResource("DeviceInfo", responder.ResourceHandler{
		Get: func(offset, limit int) ([]byte, bool, error) {
			return []byte(`{"vendor":"midi2dev","product":"pe-example"}`), false, nil
		},
	})
	resp.RegisterResource("X-Name", responder.ResourceHandler{
		Get: func(offset, limit int) ([]byte, bool, error) { return []byte(`{"name":""}`), false, nil },
		Set: func(body []byte) error { return nil },
	})
	resp.RegisterResource("ChannelList", responder.ResourceHandler{
		Get:                  func(offset, limit int) ([]byte, bool, error) { return channelList, false, nil },
		SupportsSubscription: true,
	})

	return deviceSide{resp: resp}
}
