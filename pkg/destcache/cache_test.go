package destcache

import (
	"testing"
	"time"

	"github.com/midi2dev/pe-engine/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetCachedHonorsTTL(t *testing.T) {
	c := New(time.Minute)
	start := time.Now()

	c.RecordSuccess(wire.DUID(1), "port-a", start)

	dest, ok := c.GetCached(wire.DUID(1), start.Add(30*time.Second))
	require.True(t, ok)
	assert.Equal(t, wire.Destination("port-a"), dest)

	_, ok = c.GetCached(wire.DUID(1), start.Add(2*time.Minute))
	assert.False(t, ok)
}

func TestCache_RecordSuccessDifferentDestinationResetsCount(t *testing.T) {
	c := New(time.Minute)
	start := time.Now()

	c.RecordSuccess(wire.DUID(1), "port-a", start)
	c.RecordSuccess(wire.DUID(1), "port-a", start)

	c.RecordSuccess(wire.DUID(1), "port-b", start)
	entry := c.entries[wire.DUID(1)]
	assert.Equal(t, wire.Destination("port-b"), entry.Destination)
	assert.Equal(t, 1, entry.SuccessCount)
}

func TestCache_InvalidateAndPruneStale(t *testing.T) {
	c := New(time.Minute)
	start := time.Now()

	c.RecordSuccess(wire.DUID(1), "port-a", start)
	c.Invalidate(wire.DUID(1))
	_, ok := c.GetCached(wire.DUID(1), start)
	assert.False(t, ok)

	c.RecordSuccess(wire.DUID(2), "port-b", start)
	c.PruneStale(start.Add(2 * time.Minute))
	_, ok = c.GetCached(wire.DUID(2), start.Add(2*time.Minute))
	assert.False(t, ok)
}
