package store

import (
	"context"
	"testing"
	"time"

	"github.com/marwilc/graph-p2p-backend/internal/models"
	"github.com/marwilc/graph-p2p-backend/internal/testutil"
)

func TestRedisBackend_RoundTrip(t *testing.T) {
	rdb := testutil.SetupRedis(t)
	ctx := context.Background()

	b := NewRedisBackend(rdb)
	t.Cleanup(func() {
		rdb.Del(ctx, "p2p:prices:buy", "p2p:prices:sell")
	})
	rdb.Del(ctx, "p2p:prices:buy", "p2p:prices:sell")

	p1 := point(models.Buy, now.Add(-time.Hour), 40)
	p2 := point(models.Buy, now, 41)
	if err := b.Append(ctx, p1); err != nil {
		t.Fatal(err)
	}
	if err := b.Append(ctx, p2); err != nil {
		t.Fatal(err)
	}

	raw, err := b.All(ctx, models.Buy)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 points, got %d", len(raw))
	}
	if !raw[0].Timestamp.Equal(p1.Timestamp) {
		t.Fatalf("timestamp did not round-trip: %v", raw[0].Timestamp)
	}

	pruned, err := b.Prune(ctx, models.Buy, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", pruned)
	}

	// SELL key untouched.
	sell, err := b.All(ctx, models.Sell)
	if err != nil {
		t.Fatal(err)
	}
	if len(sell) != 0 {
		t.Fatalf("SELL series should be empty, got %d", len(sell))
	}
}

func TestRedisBackend_CorruptPayloadReadsEmpty(t *testing.T) {
	rdb := testutil.SetupRedis(t)
	ctx := context.Background()

	b := NewRedisBackend(rdb)
	t.Cleanup(func() { rdb.Del(ctx, "p2p:prices:buy") })

	if err := rdb.Set(ctx, "p2p:prices:buy", "{not json", 0).Err(); err != nil {
		t.Fatal(err)
	}

	raw, err := b.All(ctx, models.Buy)
	if err != nil {
		t.Fatalf("corruption must not surface as an error: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("corrupt payload should read as empty, got %d", len(raw))
	}

	// The next append rewrites the key cleanly.
	if err := b.Append(ctx, point(models.Buy, now, 10)); err != nil {
		t.Fatal(err)
	}
	raw, _ = b.All(ctx, models.Buy)
	if len(raw) != 1 {
		t.Fatalf("expected 1 point after rewrite, got %d", len(raw))
	}
}

func TestPostgresBackend_RoundTrip(t *testing.T) {
	pool := testutil.SetupPool(t)
	ctx := context.Background()

	b := NewPostgresBackend(pool)
	if err := b.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, "TRUNCATE price_points")
	})
	pool.Exec(ctx, "TRUNCATE price_points")

	p1 := point(models.Sell, now.AddDate(0, 0, -31), 30)
	p2 := point(models.Sell, now, 31)
	if err := b.Append(ctx, p1); err != nil {
		t.Fatal(err)
	}
	if err := b.Append(ctx, p2); err != nil {
		t.Fatal(err)
	}

	raw, err := b.All(ctx, models.Sell)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 points, got %d", len(raw))
	}
	if raw[0].Date != p1.Date || raw[0].TradeDirection != models.Sell {
		t.Fatalf("row did not round-trip: %+v", raw[0])
	}

	pruned, err := b.Prune(ctx, models.Sell, now.Add(-DefaultRetention))
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", pruned)
	}

	daily := Materialize(mustAll(t, b, models.Sell))
	if len(daily) != 1 || daily[0].Price != 31 {
		t.Fatalf("unexpected materialized view: %+v", daily)
	}
}

func mustAll(t *testing.T, b Backend, dir models.TradeDirection) []models.PricePoint {
	t.Helper()
	raw, err := b.All(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
