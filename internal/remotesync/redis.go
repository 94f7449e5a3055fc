package remotesync

import (
	"context"
	"fmt"

	"backend-groupride/internal/ride"
	"backend-groupride/internal/shared/clock"

	"github.com/redis/go-redis/v9"
)

const DefaultQueueKey = "rides:upload"

// RedisQueue pushes rides onto a Redis list drained by a cloud worker.
type RedisQueue struct {
	rdb      *redis.Client
	key      string
	deviceID string
	clock    clock.Clock
}

func NewRedisQueue(rdb *redis.Client, key, deviceID string, clk clock.Clock) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &RedisQueue{rdb: rdb, key: key, deviceID: deviceID, clock: clk}
}

func (q *RedisQueue) UploadRecord(ctx context.Context, rec ride.Record) error {
	body, err := encodeMessage(q.deviceID, rec, q.clock.Now())
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("failed to queue ride %s: %w", rec.ID, err)
	}
	return nil
}
