package models

import (
	"errors"
	"fmt"
	"time"
)

// DayFormat is the calendar-day layout used throughout the series
// (YYYY-MM-DD, UTC).
const DayFormat = "2006-01-02"

var ErrInvalidTradeDirection = errors.New("tradeDirection must be BUY or SELL")

// TradeDirection is the side of the USDT/VES conversion being priced.
type TradeDirection string

const (
	Buy  TradeDirection = "BUY"
	Sell TradeDirection = "SELL"
)

func ParseTradeDirection(s string) (TradeDirection, error) {
	switch TradeDirection(s) {
	case Buy, Sell:
		return TradeDirection(s), nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidTradeDirection, s)
	}
}

func (d TradeDirection) Valid() bool {
	return d == Buy || d == Sell
}

// PricePoint is one aggregated price observation. Immutable once created.
type PricePoint struct {
	Date           string         `json:"date"`
	Price          float64        `json:"price"`
	Timestamp      time.Time      `json:"timestamp"`
	TradeDirection TradeDirection `json:"tradeDirection"`
}

// DailyPrice is the materialized one-entry-per-day view of a series.
type DailyPrice struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Day returns the UTC calendar day of t in DayFormat.
func Day(t time.Time) string {
	return t.UTC().Format(DayFormat)
}
