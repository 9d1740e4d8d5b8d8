package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/marwilc/graph-p2p-backend/internal/httputil"
	"github.com/marwilc/graph-p2p-backend/internal/models"
)

// Alerter posts a chat-webhook message when the merged daily price moves
// more than a threshold against the previous day. Fire-and-forget: a
// failed alert never disturbs the acquisition path.
type Alerter struct {
	webhookURL   string
	botName      string
	thresholdPct float64
	httpClient   *http.Client
	retry        httputil.RetryConfig
}

func NewAlerter(webhookURL, botName string, thresholdPct float64) *Alerter {
	if botName == "" {
		botName = "GraphP2PTracker"
	}
	if thresholdPct <= 0 {
		thresholdPct = 5
	}
	return &Alerter{
		webhookURL:   webhookURL,
		botName:      botName,
		thresholdPct: thresholdPct,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		retry:        httputil.DefaultRetry,
	}
}

func (a *Alerter) Enabled() bool {
	return a.webhookURL != ""
}

// PriceMerged inspects the refreshed series and alerts when the merged
// day's price deviates from the previous day's by more than the
// configured percentage.
func (a *Alerter) PriceMerged(point models.PricePoint, daily []models.DailyPrice) {
	if !a.Enabled() {
		return
	}

	prev, ok := previousDay(daily, point.Date)
	if !ok || prev.Price <= 0 {
		return
	}

	changePct := (point.Price - prev.Price) / prev.Price * 100
	if math.Abs(changePct) < a.thresholdPct {
		return
	}

	direction := "up"
	if changePct < 0 {
		direction = "down"
	}
	a.send(fmt.Sprintf("%s %s/VES moved %s %.2f%% vs %s: %.4f -> %.4f",
		point.TradeDirection, "USDT", direction, math.Abs(changePct),
		prev.Date, prev.Price, point.Price))
}

func (a *Alerter) send(msg string) {
	formatted := fmt.Sprintf("[%s] %s", a.botName, msg)
	fmt.Printf("[ALERT] %s\n", formatted)

	payload, err := json.Marshal(a.formatPayload(formatted))
	if err != nil {
		fmt.Printf("[ALERT] marshal: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, a.httpClient, a.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		fmt.Printf("[ALERT] Failed to send webhook after retries: %v\n", err)
		return
	}
	resp.Body.Close()
}

func (a *Alerter) formatPayload(msg string) map[string]string {
	if strings.Contains(a.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": a.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": a.botName,
	}
}

// previousDay returns the last entry strictly before date. The series is
// sorted ascending, so scan from the end.
func previousDay(daily []models.DailyPrice, date string) (models.DailyPrice, bool) {
	for i := len(daily) - 1; i >= 0; i-- {
		if daily[i].Date < date {
			return daily[i], true
		}
	}
	return models.DailyPrice{}, false
}
