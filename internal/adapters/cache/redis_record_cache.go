package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/platform/obs"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "trip:session:"

// RedisRecordCache is a Redis-backed cache of trip records keyed by session id.
type RedisRecordCache struct {
	Client *redis.Client
	// Zero keeps entries until Redis evicts them.
	TTL time.Duration
}

func NewRedisRecordCache(client *redis.Client, ttl time.Duration) *RedisRecordCache {
	return &RedisRecordCache{Client: client, TTL: ttl}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis client: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis client: ping: %w", err)
	}

	return client, nil
}

type cachedTrip struct {
	SessionID string    `json:"session_id"`
	VehicleID string    `json:"vehicle_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	TotalCost float64   `json:"total_cost"`
}

// Fetch a cached record. A miss is (zero, false, nil).
func (c *RedisRecordCache) Get(ctx context.Context, sessionID string) (_ domain.TripRecord, _ bool, err error) {
	defer obs.Time(ctx, "records.cache.Get")(&err)

	if c.Client == nil {
		return domain.TripRecord{}, false, errors.New("record cache: redis client is nil")
	}

	if strings.TrimSpace(sessionID) == "" {
		return domain.TripRecord{}, false, nil
	}

	raw, err := c.Client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TripRecord{}, false, nil
	}
	if err != nil {
		return domain.TripRecord{}, false, fmt.Errorf("get record cache: %w", err)
	}

	var v cachedTrip
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.TripRecord{}, false, fmt.Errorf("get record cache: decode %q: %w", sessionID, err)
	}

	return domain.TripRecord{
		SessionID: v.SessionID,
		VehicleID: v.VehicleID,
		StartTime: v.StartTime.UTC(),
		EndTime:   v.EndTime.UTC(),
		TotalCost: v.TotalCost,
	}, true, nil
}

// Store a record under its session id.
func (c *RedisRecordCache) Put(ctx context.Context, rec domain.TripRecord) (err error) {
	defer obs.Time(ctx, "records.cache.Put")(&err)

	if c.Client == nil {
		return errors.New("record cache: redis client is nil")
	}

	if strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("put record cache: session id must not be empty")
	}

	raw, err := json.Marshal(cachedTrip{
		SessionID: rec.SessionID,
		VehicleID: rec.VehicleID,
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
		TotalCost: rec.TotalCost,
	})
	if err != nil {
		return fmt.Errorf("put record cache: encode %q: %w", rec.SessionID, err)
	}

	if err := c.Client.Set(ctx, sessionKeyPrefix+rec.SessionID, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("put record cache: %w", err)
	}

	return nil
}
