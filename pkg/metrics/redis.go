package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisMetricsKey = "compass:metrics"

// redisBackend stores records in a sorted set scored by capture time.
type redisBackend struct {
	client *redis.Client
}

// storedRecord adds a unique id so identical records stay distinct members.
type storedRecord struct {
	ID string `json:"id"`
	Record
}

func newRedisBackend(rawURL string) (*redisBackend, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisBackend{client: client}, nil
}

func (b *redisBackend) Append(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(storedRecord{ID: uuid.New().String(), Record: rec})
	if err != nil {
		return fmt.Errorf("failed to marshal metrics record: %w", err)
	}

	return b.client.ZAdd(ctx, redisMetricsKey, redis.Z{
		Score:  float64(rec.Timestamp.UnixNano()),
		Member: payload,
	}).Err()
}

func (b *redisBackend) Recent(ctx context.Context, limit int) ([]Record, error) {
	members, err := b.client.ZRevRange(ctx, redisMetricsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics records: %w", err)
	}

	records := make([]Record, 0, len(members))
	for _, member := range members {
		var stored storedRecord
		if err := json.Unmarshal([]byte(member), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics record: %w", err)
		}
		records = append(records, stored.Record)
	}
	return records, nil
}

func (b *redisBackend) Trim(ctx context.Context, keep int) error {
	// Drop everything below the newest keep entries by rank.
	return b.client.ZRemRangeByRank(ctx, redisMetricsKey, 0, int64(-(keep + 1))).Err()
}

func (b *redisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}
