package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// SnapshotKey holds the latest published snapshot as JSON.
const SnapshotKey = "ekran:snapshot"

// SnapshotCache mirrors every published snapshot into Redis for readers
// outside this process, such as a kiosk dashboard.
type SnapshotCache struct {
	rdb *redis.Client
}

func NewSnapshotCache(rdb *redis.Client) *SnapshotCache {
	return &SnapshotCache{rdb: rdb}
}

// Run consumes hub events until ctx is cancelled.
func (c *SnapshotCache) Run(ctx context.Context, hub *events.Hub) error {
	ch := make(chan events.Event, 16)
	if err := hub.Subscribe("redis-snapshot", ch); err != nil {
		return err
	}
	defer hub.Unsubscribe("redis-snapshot")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			c.handle(ctx, ev)
		}
	}
}

func (c *SnapshotCache) handle(ctx context.Context, ev events.Event) {
	var snap model.Snapshot
	switch data := ev.Data.(type) {
	case events.StateChange:
		snap = data.Snapshot
	case events.Disconnect:
		snap = data.LastKnown
	default:
		return
	}
	if err := Set(ctx, c.rdb, SnapshotKey, snap, 0); err != nil {
		log.Warn().Err(err).Msg("failed to cache snapshot")
	}
}

// Load returns the cached snapshot.
func (c *SnapshotCache) Load(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	err := GetUnmarshalledJSON(ctx, c.rdb, SnapshotKey, &snap)
	return snap, err
}
