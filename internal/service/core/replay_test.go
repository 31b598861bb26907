package core

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReplayGuard(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	g := NewMemoryReplayGuard()
	g.now = func() time.Time { return now }

	seen, err := g.Seen(ctx, "pk", "n1", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = g.Seen(ctx, "pk", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = g.Seen(ctx, "other", "n1", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	now = now.Add(time.Minute)
	seen, err = g.Seen(ctx, "pk", "n1", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen, "entry expires after its ttl")
}

func TestReplayTTL(t *testing.T) {
	fresh := replayTTL(uint64(time.Now().Unix()))
	assert.InDelta(t, 300, fresh.Seconds(), 2)

	assert.Equal(t, time.Second, replayTTL(1))

	future := replayTTL(uint64(time.Now().Add(time.Hour).Unix()))
	assert.Equal(t, maxReplayTTL, future)

	assert.Equal(t, maxReplayTTL, replayTTL(math.MaxUint64))
	assert.Equal(t, maxReplayTTL, replayTTL(math.MaxInt64))
}
