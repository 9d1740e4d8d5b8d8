// Package poller owns the refresh cadence for the active (tradeDirection,
// paymentMethods) binding: it schedules fetch cycles, guarantees at most
// one in-flight fetch, merges successful observations into the time
// series, and exposes a read-only view to consumers.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marwilc/graph-p2p-backend/internal/metrics"
	"github.com/marwilc/graph-p2p-backend/internal/models"
	"github.com/marwilc/graph-p2p-backend/internal/pricing"
	"github.com/marwilc/graph-p2p-backend/internal/store"
)

// Fetcher is the listing acquisition dependency.
type Fetcher interface {
	FetchListings(ctx context.Context, direction models.TradeDirection, payTypes []string) ([]pricing.Listing, error)
}

// MergeHook is called after a point has been merged, with the refreshed
// materialized series. Used for price-move alerts.
type MergeHook func(point models.PricePoint, daily []models.DailyPrice)

type Config struct {
	Fetcher      Fetcher
	Series       *store.TimeSeries
	Interval     time.Duration // default 8s
	FetchTimeout time.Duration // default 15s
	Now          func() time.Time
	OnMerge      MergeHook
}

// Snapshot is the consumer-facing view of the poller state.
type Snapshot struct {
	TradeDirection models.TradeDirection `json:"tradeDirection"`
	PaymentMethods []string              `json:"paymentMethods"`
	CurrentPrice   *float64              `json:"currentPrice"`
	DailyPrices    []models.DailyPrice   `json:"dailyPrices"`
	Fetching       bool                  `json:"fetching"`
	LastError      string                `json:"lastError,omitempty"`
}

type Poller struct {
	fetcher      Fetcher
	series       *store.TimeSeries
	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	onMerge      MergeHook

	mu         sync.Mutex
	direction  models.TradeDirection
	payTypes   []string
	generation uint64 // fences cycles from a previous binding
	fetching   bool   // re-entrancy guard for the current binding
	running    bool
	stopCh     chan struct{}
	current    *float64
	daily      []models.DailyPrice
	lastErr    string
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 8 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Poller{
		fetcher:      cfg.Fetcher,
		series:       cfg.Series,
		interval:     cfg.Interval,
		fetchTimeout: cfg.FetchTimeout,
		now:          cfg.Now,
		onMerge:      cfg.OnMerge,
	}
}

// Bind points the poller at a new (direction, payTypes) parameter set:
// any previous ticker is cancelled, the re-entrancy guard is reset, the
// persisted series for the new direction is loaded into the exposed view,
// one fetch cycle fires immediately, and the periodic ticker starts. A
// cycle still in flight for the old binding is fenced off by the
// generation bump and can no longer mutate state.
func (p *Poller) Bind(direction models.TradeDirection, payTypes []string) {
	pt := make([]string, len(payTypes))
	copy(pt, payTypes)

	p.mu.Lock()
	if p.running {
		close(p.stopCh)
	}
	p.generation++
	gen := p.generation
	p.direction = direction
	p.payTypes = pt
	p.fetching = false
	p.lastErr = ""
	p.current = nil
	p.daily = nil
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.running = true
	p.mu.Unlock()

	fmt.Printf("[POLLER] Bound to %s (payTypes=%v), polling every %s\n", direction, pt, p.interval)

	p.loadSeries(gen, direction)
	go p.cycle(context.Background(), gen, direction, pt)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				// Guard inside cycle makes overlapping ticks no-ops.
				go p.cycle(context.Background(), gen, direction, pt)
			}
		}
	}()
}

// RefreshNow runs one fetch cycle outside the normal schedule. It is a
// no-op while a cycle is already in flight.
func (p *Poller) RefreshNow(ctx context.Context) error {
	p.mu.Lock()
	gen := p.generation
	direction := p.direction
	payTypes := p.payTypes
	running := p.running
	p.mu.Unlock()

	if !running {
		return fmt.Errorf("poller is not bound")
	}
	fmt.Println("[POLLER] Manual refresh triggered")
	return p.cycle(ctx, gen, direction, payTypes)
}

// Stop halts the ticker. No further cycles fire, and any in-flight cycle
// is fenced off from mutating state.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
	p.generation++
	p.fetching = false
	fmt.Println("[POLLER] Stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Snapshot returns a copy of the exposed state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		TradeDirection: p.direction,
		PaymentMethods: append([]string(nil), p.payTypes...),
		Fetching:       p.fetching,
		LastError:      p.lastErr,
		DailyPrices:    append([]models.DailyPrice(nil), p.daily...),
	}
	if p.current != nil {
		v := *p.current
		snap.CurrentPrice = &v
	}
	return snap
}

func (p *Poller) loadSeries(gen uint64, direction models.TradeDirection) {
	ctx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
	defer cancel()

	daily, err := p.series.Load(ctx, direction)
	if err != nil {
		// Unreadable history is treated as empty, never surfaced.
		fmt.Printf("[POLLER] Could not load %s history: %v\n", direction, err)
		return
	}

	p.mu.Lock()
	if gen == p.generation {
		p.daily = daily
	}
	p.mu.Unlock()
}

// cycle runs one complete acquisition→aggregation→merge attempt for the
// binding captured in its arguments. The generation check keeps a
// late-arriving completion from a stale binding out of the new binding's
// state; the direction it would merge under travels in the closure, never
// read back from shared state.
func (p *Poller) cycle(parent context.Context, gen uint64, direction models.TradeDirection, payTypes []string) error {
	p.mu.Lock()
	if gen != p.generation || p.fetching {
		p.mu.Unlock()
		metrics.FetchCyclesTotal.WithLabelValues(string(direction), "skipped").Inc()
		return nil
	}
	p.fetching = true
	p.mu.Unlock()

	start := p.now()
	ctx, cancel := context.WithTimeout(parent, p.fetchTimeout)
	defer cancel()

	listings, err := p.fetcher.FetchListings(ctx, direction, payTypes)
	if err != nil {
		return p.fail(gen, direction, "upstream_error", start, err)
	}

	point, err := pricing.Aggregate(listings, direction, p.now())
	if err != nil {
		return p.fail(gen, direction, "aggregate_error", start, err)
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return nil
	}
	todayPrice, haveToday := todayEntry(p.daily, point.Date)
	p.mu.Unlock()

	// Same price already recorded today means the visible series would
	// not change; skip the merge and only refresh the current price.
	var refreshed []models.DailyPrice
	merged := false
	if !haveToday || todayPrice != point.Price {
		pruned, err := p.series.Merge(ctx, *point)
		if err != nil {
			// A write failure does not invalidate the fetched price; log
			// it and carry on with the previous visible series.
			fmt.Printf("[POLLER] Merge failed for %s: %v\n", direction, err)
			metrics.FetchCyclesTotal.WithLabelValues(string(direction), "store_error").Inc()
		} else {
			merged = true
			metrics.MergesTotal.WithLabelValues(string(direction)).Inc()
			if pruned > 0 {
				metrics.PrunedPointsTotal.WithLabelValues(string(direction)).Add(float64(pruned))
				fmt.Printf("[POLLER] Pruned %d expired point(s) from %s series\n", pruned, direction)
			}
			if daily, err := p.series.Load(ctx, direction); err == nil {
				refreshed = daily
			} else {
				fmt.Printf("[POLLER] Reload after merge failed: %v\n", err)
			}
		}
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return nil
	}
	price := point.Price
	p.current = &price
	p.lastErr = ""
	p.fetching = false
	if refreshed != nil {
		p.daily = refreshed
	}
	p.mu.Unlock()

	metrics.ObserveFetch(string(direction), "success", p.now().Sub(start))
	metrics.CurrentPrice.WithLabelValues(string(direction)).Set(point.Price)
	fmt.Printf("[POLLER] %s price %.4f (merged=%v)\n", direction, point.Price, merged)

	if merged && p.onMerge != nil && refreshed != nil {
		p.onMerge(*point, refreshed)
	}
	return nil
}

// fail records a cycle failure without disturbing the previously exposed
// price or series.
func (p *Poller) fail(gen uint64, direction models.TradeDirection, outcome string, start time.Time, err error) error {
	fmt.Printf("[POLLER] Fetch cycle failed for %s: %v\n", direction, err)

	p.mu.Lock()
	if gen == p.generation {
		p.lastErr = err.Error()
		p.fetching = false
	}
	p.mu.Unlock()

	metrics.ObserveFetch(string(direction), outcome, p.now().Sub(start))
	return err
}

func todayEntry(daily []models.DailyPrice, date string) (float64, bool) {
	for _, d := range daily {
		if d.Date == date {
			return d.Price, true
		}
	}
	return 0, false
}
