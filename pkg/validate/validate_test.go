package validate

import (
	"errors"
	"testing"

	"github.com/midi2dev/pe-engine/pkg/peerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SizeLimit(t *testing.T) {
	r := NewRegistry(4)
	err := r.Validate("DeviceInfo", []byte(`{"a":1}`))
	require.Error(t, err)
	var pv *peerr.PayloadValidationError
	require.ErrorAs(t, err, &pv)
}

func TestRegistry_GenericJSONFallback(t *testing.T) {
	r := NewRegistry(0)
	assert.NoError(t, r.Validate("DeviceInfo", []byte(`{"a":1}`)))
	assert.Error(t, r.Validate("DeviceInfo", []byte(`not json`)))
	assert.NoError(t, r.Validate("DeviceInfo", nil))
}

func TestRegistry_RegisteredValidatorOverridesFallback(t *testing.T) {
	r := NewRegistry(0)
	r.RegisterValidator("ChannelList", func(body []byte) error {
		if len(body) == 0 {
			return errors.New("body required")
		}
		return nil
	})

	err := r.Validate("ChannelList", nil)
	require.Error(t, err)

	assert.NoError(t, r.Validate("ChannelList", []byte("not json but accepted by custom validator")))
}

func TestRegistry_IsPure(t *testing.T) {
	r := NewRegistry(0)
	body := []byte(`{"a":1}`)
	err1 := r.Validate("DeviceInfo", body)
	err2 := r.Validate("DeviceInfo", body)
	assert.Equal(t, err1, err2)
}
