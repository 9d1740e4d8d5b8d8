package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marwilc/graph-p2p-backend/internal/models"
)

// ErrNoValidPrice means no organic listing carried a parseable positive
// price, so no representative price can be computed for this cycle.
var ErrNoValidPrice = errors.New("no valid price among organic listings")

// organicSample is how many top-ranked organic listings feed the average.
const organicSample = 3

// Listing is one order-book entry as seen by the aggregator. Sponsored is
// true when the upstream ranking flagged the ad as boosted/privileged.
type Listing struct {
	Price     string
	Sponsored bool
}

// Organic returns the non-sponsored listings, preserving the upstream
// order (best price first by construction of the upstream ranking).
func Organic(listings []Listing) []Listing {
	var out []Listing
	for _, l := range listings {
		if !l.Sponsored {
			out = append(out, l)
		}
	}
	return out
}

// Aggregate turns an ordered listing array into a single PricePoint:
// sponsored ads are excluded, the first three organic listings are
// sampled, prices that fail to parse or are <= 0 are discarded, and the
// unweighted mean of the survivors becomes the aggregated price. Having
// fewer than three organic listings is fine; only zero valid prices is an
// error. The rule is fixed, not configurable.
func Aggregate(listings []Listing, direction models.TradeDirection, now time.Time) (*models.PricePoint, error) {
	sample := Organic(listings)
	if len(sample) > organicSample {
		sample = sample[:organicSample]
	}

	sum := decimal.Zero
	valid := 0
	for _, l := range sample {
		price, err := decimal.NewFromString(l.Price)
		if err != nil || !price.IsPositive() {
			continue
		}
		sum = sum.Add(price)
		valid++
	}

	if valid == 0 {
		return nil, ErrNoValidPrice
	}

	mean := sum.Div(decimal.NewFromInt(int64(valid)))

	return &models.PricePoint{
		Date:           models.Day(now),
		Price:          mean.InexactFloat64(),
		Timestamp:      now,
		TradeDirection: direction,
	}, nil
}
