// Package store persists the per-direction price time series. Backends
// include Redis (keyed JSON collections), PostgreSQL and in-memory (for
// testing). The raw collection keeps every merged PricePoint; the
// one-per-day view is derived at read time, not pre-collapsed at write
// time.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/marwilc/graph-p2p-backend/internal/models"
)

// Backend is the raw-collection persistence interface. BUY and SELL
// series live under disjoint keys and are never mixed.
type Backend interface {
	// All returns the raw (non-deduplicated) points for one direction.
	// A missing or corrupt collection reads as empty, not as an error.
	All(ctx context.Context, direction models.TradeDirection) ([]models.PricePoint, error)

	// Append adds one point to the raw collection.
	Append(ctx context.Context, point models.PricePoint) error

	// Prune drops points whose timestamp is before cutoff and reports
	// how many were removed.
	Prune(ctx context.Context, direction models.TradeDirection, cutoff time.Time) (int, error)
}

const DefaultRetention = 30 * 24 * time.Hour

// TimeSeries implements the merge/load contract on top of a Backend.
type TimeSeries struct {
	backend   Backend
	retention time.Duration
	now       func() time.Time
}

func NewTimeSeries(backend Backend, retention time.Duration) *TimeSeries {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &TimeSeries{
		backend:   backend,
		retention: retention,
		now:       time.Now,
	}
}

// Merge appends point to the raw collection for its direction, then
// prunes entries that have aged out of the retention window. The pruned
// count is returned for logging and metering.
func (ts *TimeSeries) Merge(ctx context.Context, point models.PricePoint) (int, error) {
	if err := ts.backend.Append(ctx, point); err != nil {
		return 0, err
	}
	cutoff := ts.now().Add(-ts.retention)
	return ts.backend.Prune(ctx, point.TradeDirection, cutoff)
}

// Load materializes the daily view for one direction: per calendar date
// the entry with the latest timestamp wins, and the result is sorted
// ascending by date with no duplicates.
func (ts *TimeSeries) Load(ctx context.Context, direction models.TradeDirection) ([]models.DailyPrice, error) {
	points, err := ts.backend.All(ctx, direction)
	if err != nil {
		return nil, err
	}
	return Materialize(points), nil
}

// Materialize collapses raw points into the one-per-day ascending view.
func Materialize(points []models.PricePoint) []models.DailyPrice {
	latest := make(map[string]models.PricePoint, len(points))
	for _, p := range points {
		if cur, ok := latest[p.Date]; !ok || p.Timestamp.After(cur.Timestamp) {
			latest[p.Date] = p
		}
	}

	out := make([]models.DailyPrice, 0, len(latest))
	for date, p := range latest {
		out = append(out, models.DailyPrice{Date: date, Price: p.Price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
