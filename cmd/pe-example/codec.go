package main

import (
	"encoding/json"
	"fmt"

	"github.com/midi2dev/pe-engine/pkg/wire"
)

// jsonFrame is the wire shape this example's demo codec puts on its
// loopback transport. It is deliberately NOT the real MIDI-CI SysEx/Mcoded7
// framing (that byte-exact encoding is an external collaborator this
// module only consumes through wire.MessageCodec/wire.ReplyCodec) — just
// enough structure for two in-process demoCodec/demoReplyCodec pairs to
// round-trip a GET/SET/Subscribe/Notify exchange.
type jsonFrame struct {
	Kind        string         `json:"kind"`
	SourceDUID  wire.DUID      `json:"sourceDuid"`
	DestDUID    wire.DUID      `json:"destDuid"`
	RequestID   wire.RequestID `json:"requestId"`
	Resource    string         `json:"resource,omitempty"`
	Offset      int            `json:"offset,omitempty"`
	Limit       int            `json:"limit,omitempty"`
	Body        []byte         `json:"body,omitempty"`
	Header      wire.Header    `json:"header,omitempty"`
	SubscribeID string         `json:"subscribeId,omitempty"`
	Success     bool           `json:"success,omitempty"`
}

// demoCodec is the Initiator-side wire.MessageCodec for this example.
type demoCodec struct {
	ownDUID wire.DUID
	peer    wire.DUID
}

func (c demoCodec) BuildGet(req wire.GetRequest) ([]byte, error) {
	return json.Marshal(jsonFrame{Kind: "get", SourceDUID: c.ownDUID, DestDUID: c.peer, RequestID: req.RequestID, Resource: req.Resource, Offset: req.Offset, Limit: req.Limit})
}

func (c demoCodec) BuildSet(req wire.SetRequest) ([]byte, error) {
	return json.Marshal(jsonFrame{Kind: "set", SourceDUID: c.ownDUID, DestDUID: c.peer, RequestID: req.RequestID, Resource: req.Resource, Body: req.Body})
}

func (c demoCodec) BuildSubscribe(req wire.SubscribeRequest) ([]byte, error) {
	return json.Marshal(jsonFrame{Kind: "subscribeStart", SourceDUID: c.ownDUID, DestDUID: c.peer, RequestID: req.RequestID, Resource: req.Resource})
}

func (c demoCodec) BuildUnsubscribe(req wire.UnsubscribeRequest) ([]byte, error) {
	return json.Marshal(jsonFrame{Kind: "subscribeEnd", SourceDUID: c.ownDUID, DestDUID: c.peer, RequestID: req.RequestID, Resource: req.Resource, SubscribeID: req.SubscribeID})
}

func (c demoCodec) Parse(frame []byte) (wire.ParsedFrame, error) {
	var f jsonFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return wire.ParsedFrame{}, err
	}
	switch f.Kind {
	case "reply":
		headerBytes, err := json.Marshal(f.Header)
		if err != nil {
			return wire.ParsedFrame{}, err
		}
		return wire.ParsedFrame{
			Kind:         wire.ReplyPEReply,
			SourceDUID:   f.SourceDUID,
			DestDUID:     f.DestDUID,
			RequestID:    f.RequestID,
			HasRequestID: true,
			Chunk:        wire.Chunk{ThisChunk: 1, NumChunks: 1, HeaderBytes: headerBytes, PropertyBytes: f.Body},
		}, nil
	case "subscribeReply":
		return wire.ParsedFrame{
			Kind:         wire.ReplySubscribeReply,
			SourceDUID:   f.SourceDUID,
			DestDUID:     f.DestDUID,
			RequestID:    f.RequestID,
			HasRequestID: true,
			SubscribeID:  f.SubscribeID,
			Success:      f.Success,
			Chunk:        wire.Chunk{Resource: f.Resource},
		}, nil
	case "notify":
		headerBytes, err := json.Marshal(f.Header)
		if err != nil {
			return wire.ParsedFrame{}, err
		}
		return wire.ParsedFrame{
			Kind:       wire.ReplyNotify,
			SourceDUID: f.SourceDUID,
			DestDUID:   f.DestDUID,
			Chunk: wire.Chunk{
				ThisChunk:     1,
				NumChunks:     1,
				HeaderBytes:   headerBytes,
				PropertyBytes: f.Body,
				SubscribeID:   f.SubscribeID,
				Resource:      f.Resource,
			},
		}, nil
	default:
		return wire.ParsedFrame{}, fmt.Errorf("demo codec: unrecognized frame kind %q", f.Kind)
	}
}

// demoReplyCodec is the Responder-side wire.ReplyCodec for this example.
type demoReplyCodec struct {
	ownDUID wire.DUID
}

func (c demoReplyCodec) ParseInquiry(frame []byte) (wire.ParsedInquiry, error) {
	var f jsonFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return wire.ParsedInquiry{}, err
	}
	pi := wire.ParsedInquiry{SourceDUID: f.SourceDUID, DestDUID: f.DestDUID, RequestID: f.RequestID, Resource: f.Resource, Offset: f.Offset, Limit: f.Limit, SubscribeID: f.SubscribeID}
	switch f.Kind {
	case "get":
		pi.Kind = wire.InquiryGet
	case "set":
		pi.Kind = wire.InquirySet
		pi.Body = f.Body
	case "subscribeStart":
		pi.Kind = wire.InquirySubscribeStart
	case "subscribeEnd":
		pi.Kind = wire.InquirySubscribeEnd
	default:
		return wire.ParsedInquiry{}, fmt.Errorf("demo codec: unrecognized inquiry kind %q", f.Kind)
	}
	return pi, nil
}

func (c demoReplyCodec) BuildGetReply(requestID wire.RequestID, header wire.Header, body []byte) ([]byte, error) {
	return json.Marshal(jsonFrame{Kind: "reply", SourceDUID: c.ownDUID, RequestID: requestID, Header: header, Body: body})
}

func (c demoReplyCodec) BuildSetReply(requestID wire.RequestID, header wire.Header) ([]byte, error) {
	return json.Marshal(jsonFrame{Kind: "reply", SourceDUID: c.ownDUID, RequestID: requestID, Header: header})
}

func (c demoReplyCodec) BuildSubscribeReply(requestID wire.RequestID, header wire.Header, subscribeID string) ([]byte, error) {
	return json.Marshal(jsonFrame{Kind: "subscribeReply", SourceDUID: c.ownDUID, RequestID: requestID, Header: header, SubscribeID: subscribeID, Success: header.Status < 400})
}

func (c demoReplyCodec) BuildNotify(subscribeID, resource string, header wire.Header, body []byte) ([]byte, error) {
	return json.Marshal(jsonFrame{Kind: "notify", SourceDUID: c.ownDUID, SubscribeID: subscribeID, Resource: resource, Header: header, Body: body})
}
