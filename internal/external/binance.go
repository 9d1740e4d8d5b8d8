package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marwilc/graph-p2p-backend/internal/models"
	"github.com/marwilc/graph-p2p-backend/internal/pricing"
)

const defaultSearchURL = "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search"

// P2PClient fetches order-book listings from the Binance C2C search
// endpoint for one asset/fiat pair.
type P2PClient struct {
	searchURL  string
	fiat       string
	asset      string
	rows       int
	httpClient *http.Client
}

type P2POptions struct {
	SearchURL string // override for tests
	Fiat      string
	Asset     string
	Rows      int
	Timeout   time.Duration
}

func NewP2PClient(opts P2POptions) *P2PClient {
	if opts.SearchURL == "" {
		opts.SearchURL = defaultSearchURL
	}
	if opts.Fiat == "" {
		opts.Fiat = "VES"
	}
	if opts.Asset == "" {
		opts.Asset = "USDT"
	}
	if opts.Rows <= 0 {
		opts.Rows = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &P2PClient{
		searchURL:  opts.SearchURL,
		fiat:       opts.Fiat,
		asset:      opts.Asset,
		rows:       opts.Rows,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// searchRequest is the fixed query shape the endpoint expects: first page,
// fixed row count, merchant/pagination flags pinned to their defaults.
type searchRequest struct {
	Fiat                      string   `json:"fiat"`
	Page                      int      `json:"page"`
	Rows                      int      `json:"rows"`
	TradeType                 string   `json:"tradeType"`
	Asset                     string   `json:"asset"`
	Countries                 []string `json:"countries"`
	AdditionalKycVerifyFilter int      `json:"additionalKycVerifyFilter"`
	Classifies                []string `json:"classifies"`
	FilterType                string   `json:"filterType"`
	Followed                  bool     `json:"followed"`
	PayTypes                  []string `json:"payTypes"`
	Periods                   []string `json:"periods"`
	ProMerchantAds            bool     `json:"proMerchantAds"`
	PublisherType             *string  `json:"publisherType"`
	ShieldMerchantAds         bool     `json:"shieldMerchantAds"`
	TradedWith                bool     `json:"tradedWith"`
}

type searchResponse struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Data    []adEntry       `json:"data"`
}

type adEntry struct {
	Adv struct {
		Price string `json:"price"`
	} `json:"adv"`
	// Non-null means the ad is sponsored/boosted by the upstream ranking.
	PrivilegeType *int `json:"privilegeType"`
}

// FetchListings issues one search request and validates the envelope.
// Failures are returned, never fatal: the caller treats them as "no price
// available this cycle". There is no retry; the poll cadence self-heals.
func (c *P2PClient) FetchListings(ctx context.Context, direction models.TradeDirection, payTypes []string) ([]pricing.Listing, error) {
	if payTypes == nil {
		payTypes = []string{}
	}

	body, err := json.Marshal(searchRequest{
		Fiat:       c.fiat,
		Page:       1,
		Rows:       c.rows,
		TradeType:  string(direction),
		Asset:      c.asset,
		Countries:  []string{},
		Classifies: []string{"mass", "profession", "fiat_trade"},
		FilterType: "tradable",
		PayTypes:   payTypes,
		Periods:    []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var envelope searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}

	if !successCode(envelope.Code) {
		return nil, fmt.Errorf("%w: code %s (%s)", ErrInvalidResponse, envelope.Code, envelope.Message)
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("%w: empty listings array", ErrInvalidResponse)
	}

	listings := make([]pricing.Listing, len(envelope.Data))
	for i, ad := range envelope.Data {
		listings[i] = pricing.Listing{
			Price:     ad.Adv.Price,
			Sponsored: ad.PrivilegeType != nil,
		}
	}
	return listings, nil
}

// successCode accepts the two distinct success sentinels the endpoint
// uses: the string "000000" and the number 0. An absent code field is
// also treated as success; only an explicit non-success code fails.
func successCode(raw json.RawMessage) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	switch string(raw) {
	case `"000000"`, "0":
		return true
	}
	return false
}
