package store

import (
	"context"
	"sync"
	"time"

	"github.com/marwilc/graph-p2p-backend/internal/models"
)

// MemoryBackend keeps the raw collections in process memory. Used for
// testing and as the fallback when no durable backend is configured.
type MemoryBackend struct {
	mu     sync.RWMutex
	series map[models.TradeDirection][]models.PricePoint
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		series: make(map[models.TradeDirection][]models.PricePoint),
	}
}

func (b *MemoryBackend) All(_ context.Context, direction models.TradeDirection) ([]models.PricePoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	points := b.series[direction]
	out := make([]models.PricePoint, len(points))
	copy(out, points)
	return out, nil
}

func (b *MemoryBackend) Append(_ context.Context, point models.PricePoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.series[point.TradeDirection] = append(b.series[point.TradeDirection], point)
	return nil
}

func (b *MemoryBackend) Prune(_ context.Context, direction models.TradeDirection, cutoff time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	points := b.series[direction]
	kept := points[:0]
	for _, p := range points {
		if !p.Timestamp.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	pruned := len(points) - len(kept)
	b.series[direction] = kept
	return pruned, nil
}
