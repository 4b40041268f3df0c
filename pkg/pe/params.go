package pe

import "github.com/midi2dev/pe-engine/pkg/peerr"

// RequestParams is the pre-send structural description of a GET or SET,
// validated by validateParams before any Request ID is reserved.
type RequestParams struct {
	Resource string
	IsSet    bool
	Body     []byte
	Channel  *int
	Offset   int
	Limit    int
}

// validateParams is pure: resource non-empty, SET requires a body, channel
// (if present) in [0,255], offset >= 0, limit >= 1.
func validateParams(p RequestParams) error {
	if p.Resource == "" {
		return &peerr.ValidationError{Kind: peerr.ValidationEmptyResource}
	}
	if p.IsSet && len(p.Body) == 0 {
		return &peerr.ValidationError{Kind: peerr.ValidationMissingBody}
	}
	if p.Channel != nil && (*p.Channel < 0 || *p.Channel > 255) {
		return &peerr.ValidationError{Kind: peerr.ValidationChannelOutOfRange}
	}
	if p.Offset < 0 {
		return &peerr.ValidationError{Kind: peerr.ValidationOffsetOutOfRange}
	}
	if p.Limit < 1 {
		return &peerr.ValidationError{Kind: peerr.ValidationLimitOutOfRange}
	}
	return nil
}
