package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marwilc/graph-p2p-backend/internal/models"
)

// RedisBackend stores each direction's raw collection as one JSON array
// under a fixed key, mirroring the browser-local storage layout the
// original tracker used.
type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func seriesKey(direction models.TradeDirection) string {
	if direction == models.Sell {
		return "p2p:prices:sell"
	}
	return "p2p:prices:buy"
}

func (b *RedisBackend) All(ctx context.Context, direction models.TradeDirection) ([]models.PricePoint, error) {
	data, err := b.rdb.Get(ctx, seriesKey(direction)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", seriesKey(direction), err)
	}

	var points []models.PricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		// Corrupt history reads as empty; it will be rewritten on the
		// next merge.
		fmt.Printf("[STORE] Discarding corrupt series at %s: %v\n", seriesKey(direction), err)
		return nil, nil
	}
	return points, nil
}

func (b *RedisBackend) Append(ctx context.Context, point models.PricePoint) error {
	points, err := b.All(ctx, point.TradeDirection)
	if err != nil {
		return err
	}
	points = append(points, point)
	return b.write(ctx, point.TradeDirection, points)
}

func (b *RedisBackend) Prune(ctx context.Context, direction models.TradeDirection, cutoff time.Time) (int, error) {
	points, err := b.All(ctx, direction)
	if err != nil {
		return 0, err
	}

	kept := points[:0]
	for _, p := range points {
		if !p.Timestamp.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	pruned := len(points) - len(kept)
	if pruned == 0 {
		return 0, nil
	}
	return pruned, b.write(ctx, direction, kept)
}

func (b *RedisBackend) write(ctx context.Context, direction models.TradeDirection, points []models.PricePoint) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("marshal series: %w", err)
	}
	if err := b.rdb.Set(ctx, seriesKey(direction), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", seriesKey(direction), err)
	}
	return nil
}
