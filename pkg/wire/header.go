package wire

import (
	"encoding/json"
	"strings"
)

// Header is the PE header, a JSON object carried in chunk 1 of every PE
// Reply and Notify. Fields are optional except where spec'd otherwise; a
// missing header or missing Status implies 200.
type Header struct {
	Status         int    `json:"status,omitempty"`
	Message        string `json:"message,omitempty"`
	Resource       string `json:"resource,omitempty"`
	ResID          string `json:"resId,omitempty"`
	Offset         int    `json:"offset,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	TotalCount     int    `json:"totalCount,omitempty"`
	MediaType      string `json:"mediaType,omitempty"`
	MutualEncoding string `json:"mutualEncoding,omitempty"`
}

// DefaultHeader is what an empty or absent header implies: status 200.
func DefaultHeader() Header {
	return Header{Status: 200}
}

// ParseHeader decodes a PE header from JSON bytes. Empty input yields the
// default header (status 200 implicit) rather than an error.
func ParseHeader(data []byte) (Header, error) {
	if len(data) == 0 {
		return DefaultHeader(), nil
	}
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return Header{}, err
	}
	if h.Status == 0 {
		h.Status = 200
	}
	return h, nil
}

// IsMcoded7 reports whether the header declares an Mcoded7-encoded body:
// true iff MutualEncoding or MediaType equals "mcoded7", case-insensitively.
func (h Header) IsMcoded7() bool {
	return strings.EqualFold(h.MutualEncoding, "mcoded7") || strings.EqualFold(h.MediaType, "mcoded7")
}

// LooksLikeJSON reports whether body appears to start a JSON object or
// array, used by the Mcoded7 fallback decode rule in Response.
func LooksLikeJSON(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}
