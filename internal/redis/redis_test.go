package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/discovery"
	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// testClient connects to TEST_REDIS_ADDR or skips.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func TestSessionStoreRoundTrip(t *testing.T) {
	rdb := testClient(t)
	store := NewSessionStore(rdb, time.Minute)
	ctx := context.Background()

	s := discovery.NewSession("abc", time.Now().UTC().Truncate(time.Second))
	s, err := s.BeginScan(s.UpdatedAt)
	require.NoError(t, err)
	s = s.ScanFinished([]model.DiscoveredCandidate{{Address: "192.0.2.5", Port: 554}}, s.UpdatedAt)
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	ttl, err := rdb.TTL(ctx, sessionKeyPrefix+"abc").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "abc"), apperr.ErrNotFound)
}

func TestSnapshotCacheMirrorsStateChanges(t *testing.T) {
	rdb := testClient(t)
	cache := NewSnapshotCache(rdb)
	ctx := context.Background()

	snap := model.Snapshot{
		State:     model.PlaybackState{Source: model.CameraSource{Name: "door"}},
		Cameras:   []model.CameraRecord{{Name: "door", URL: "rtsp://door"}},
		Connected: true,
	}
	cache.handle(ctx, events.Event{Type: events.PlaybackStateChanged, Data: events.StateChange{Snapshot: snap}})

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}
