package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/discovery"
)

// SessionTTL bounds how long an abandoned discovery session lingers.
const SessionTTL = 15 * time.Minute

const sessionKeyPrefix = "ekran:discovery:"

// SessionStore keeps discovery sessions in Redis so that any API instance
// can continue a flow another one started.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ discovery.SessionStore = (*SessionStore)(nil)

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, id string) (discovery.Session, error) {
	var sess discovery.Session
	if err := GetUnmarshalledJSON(ctx, s.rdb, sessionKeyPrefix+id, &sess); err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return discovery.Session{}, apperr.New(apperr.NotFound, "discovery session %q not found", id)
		}
		return discovery.Session{}, err
	}
	return sess, nil
}

// Put writes the session and refreshes its TTL.
func (s *SessionStore) Put(ctx context.Context, sess discovery.Session) error {
	return Set(ctx, s.rdb, sessionKeyPrefix+sess.ID, sess, s.ttl)
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "discovery session %q not found", id)
	}
	return nil
}
