package login

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReplayStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReplayStore(time.Minute)
	now := fixedNow
	store.now = func() time.Time { return now }

	seen, err := store.Seen(ctx, "p256:04aa")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.Seen(ctx, "p256:04aa")
	require.NoError(t, err)
	assert.True(t, seen, "second presentation should be detected")

	seen, err = store.Seen(ctx, "p256:04bb")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, 2, store.Size())

	now = now.Add(2 * time.Minute)
	store.Cleanup()
	assert.Equal(t, 0, store.Size())

	seen, err = store.Seen(ctx, "p256:04aa")
	require.NoError(t, err)
	assert.False(t, seen, "expired entries are forgotten")
}

func TestMemoryReplayStoreSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReplayStore(time.Second)
	now := fixedNow
	store.now = func() time.Time { return now }

	for i := 0; i < sweepEvery-1; i++ {
		_, err := store.Seen(ctx, fmt.Sprintf("k%d", i))
		require.NoError(t, err)
	}
	now = now.Add(time.Hour)
	_, err := store.Seen(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Size())
}

func TestMemoryReplayStoreDefaults(t *testing.T) {
	assert.Equal(t, DefaultReplayWindow, NewMemoryReplayStore(0).ttl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryReplayStore(time.Minute).Seen(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoginReplay(t *testing.T) {
	replay := NewMemoryReplayStore(time.Hour)
	f := newFixture(t, Config{Replay: replay})
	ctx := context.Background()
	req := f.request(t, f.kp, f.clientID, email)

	_, err := f.svc.Login(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, replay.Size())

	resp, err := f.svc.Login(ctx, req)
	require.ErrorIs(t, err, ErrProofReplayed)
	assert.Nil(t, resp)
	assert.Equal(t, ErrUnauthorized, Unauthorized(err))
	assert.Equal(t, 1.0, f.attempts(ResultRejected))

	// A fresh proof over the same payload is accepted.
	_, err = f.svc.Login(ctx, f.request(t, f.kp, f.clientID, email))
	require.NoError(t, err)
	assert.Equal(t, 2.0, f.attempts(ResultSuccess))
}
