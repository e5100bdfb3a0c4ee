package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
)

var Rdb *redis.Client

// InitRedis connects the shared client and checks that the server answers.
func InitRedis(redisAddress string, redisUsername string, redisPassword string) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr:     redisAddress,
		Username: redisUsername,
		Password: redisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", redisAddress, err)
	}
	log.Info().Str("addr", redisAddress).Msg("connected to redis")
	return nil
}

// Set stores value as JSON under key.
func Set(ctx context.Context, rdb *redis.Client, key string, value any, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := rdb.Set(ctx, key, raw, expiration).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to write to redis")
		return err
	}
	return nil
}

// GetUnmarshalledJSON decodes the JSON stored under key into dest. A missing
// key is NotFound.
func GetUnmarshalledJSON(ctx context.Context, rdb *redis.Client, key string, dest any) error {
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return apperr.New(apperr.NotFound, "%s not found", key)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
