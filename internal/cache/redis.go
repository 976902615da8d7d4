package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OsiaDev/core/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCache persists telemetry in Redis so last-known positions survive
// gateway restarts. Values are JSON under "<prefix>:<vehicleId>:telemetry".
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewRedisCache connects a telemetry cache to the given Redis address. A
// zero ttl keeps entries until they are overwritten.
func NewRedisCache(addr, password string, db int, keyPrefix string, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "umas:drone"
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// Ping verifies the Redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Get returns the last snapshot stored for the vehicle, if any. A missing
// key is a miss, not an error; an undecodable legacy value is logged and
// treated as a miss so one bad entry cannot poison the pipeline.
func (r *RedisCache) Get(ctx context.Context, vehicleID string) (models.TelemetrySnapshot, bool, error) {
	raw, err := r.client.Get(ctx, r.key(vehicleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.TelemetrySnapshot{}, false, nil
	}
	if err != nil {
		return models.TelemetrySnapshot{}, false, fmt.Errorf("redis get %s: %w", vehicleID, err)
	}

	var snapshot models.TelemetrySnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		r.logger.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("Discarding undecodable cached telemetry")
		return models.TelemetrySnapshot{}, false, nil
	}
	return snapshot, true, nil
}

// Set stores the snapshot, replacing any previous entry for the vehicle.
func (r *RedisCache) Set(ctx context.Context, vehicleID string, snapshot models.TelemetrySnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal telemetry for %s: %w", vehicleID, err)
	}
	if err := r.client.Set(ctx, r.key(vehicleID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", vehicleID, err)
	}
	return nil
}

func (r *RedisCache) key(vehicleID string) string {
	return fmt.Sprintf("%s:%s:telemetry", r.keyPrefix, vehicleID)
}
