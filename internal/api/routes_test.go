package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marwilc/graph-p2p-backend/internal/api"
	"github.com/marwilc/graph-p2p-backend/internal/models"
	"github.com/marwilc/graph-p2p-backend/internal/poller"
	"github.com/marwilc/graph-p2p-backend/internal/pricing"
	"github.com/marwilc/graph-p2p-backend/internal/store"
)

type stubFetcher struct {
	listings []pricing.Listing
	err      error
}

func (f *stubFetcher) FetchListings(ctx context.Context, direction models.TradeDirection, payTypes []string) ([]pricing.Listing, error) {
	return f.listings, f.err
}

func newTestServer(f poller.Fetcher, apiKey string) *api.Server {
	series := store.NewTimeSeries(store.NewMemoryBackend(), store.DefaultRetention)
	p := poller.New(poller.Config{
		Fetcher:  f,
		Series:   series,
		Interval: time.Hour,
	})
	return api.NewServer(f, p, 0, apiKey, "*")
}

func doRequest(t *testing.T, s *api.Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestPriceFacade_Success(t *testing.T) {
	f := &stubFetcher{listings: []pricing.Listing{{Price: "36.2"}, {Price: "36.4"}}}
	s := newTestServer(f, "")

	rr := doRequest(t, s, http.MethodGet, "/price?tradeDirection=SELL&paymentMethods=Banesco,PagoMovil", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var point models.PricePoint
	if err := json.Unmarshal(rr.Body.Bytes(), &point); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if point.Price != 36.3 {
		t.Fatalf("expected 36.3, got %v", point.Price)
	}
	if point.TradeDirection != models.Sell {
		t.Fatalf("expected SELL, got %s", point.TradeDirection)
	}
	if point.Date != models.Day(point.Timestamp) {
		t.Fatalf("date %s inconsistent with timestamp %v", point.Date, point.Timestamp)
	}
}

func TestPriceFacade_DefaultsToBuy(t *testing.T) {
	f := &stubFetcher{listings: []pricing.Listing{{Price: "36.2"}}}
	s := newTestServer(f, "")

	rr := doRequest(t, s, http.MethodGet, "/price", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var point models.PricePoint
	json.Unmarshal(rr.Body.Bytes(), &point)
	if point.TradeDirection != models.Buy {
		t.Fatalf("expected BUY default, got %s", point.TradeDirection)
	}
}

func TestPriceFacade_InvalidDirection(t *testing.T) {
	s := newTestServer(&stubFetcher{}, "")

	rr := doRequest(t, s, http.MethodGet, "/price?tradeDirection=HOLD", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPriceFacade_UpstreamFailure(t *testing.T) {
	s := newTestServer(&stubFetcher{err: errors.New("down")}, "")

	rr := doRequest(t, s, http.MethodGet, "/price", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestPriceFacade_NoValidPrices(t *testing.T) {
	s := newTestServer(&stubFetcher{listings: []pricing.Listing{{Price: "junk"}}}, "")

	rr := doRequest(t, s, http.MethodGet, "/price", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestBindingAndSeriesEndpoints(t *testing.T) {
	f := &stubFetcher{listings: []pricing.Listing{{Price: "10.5"}, {Price: "11.0"}}}
	s := newTestServer(f, "")

	rr := doRequest(t, s, http.MethodPut, "/v1/binding", `{"tradeDirection":"SELL","paymentMethods":["Banesco"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// The snapshot reflects the new binding immediately.
	var snap poller.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TradeDirection != models.Sell || len(snap.PaymentMethods) != 1 {
		t.Fatalf("unexpected binding: %+v", snap)
	}

	rr = doRequest(t, s, http.MethodPost, "/v1/refresh", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", rr.Code)
	}

	// Bind fires its first cycle asynchronously; poll until it lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rr = doRequest(t, s, http.MethodGet, "/v1/series", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("series: expected 200, got %d", rr.Code)
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode series: %v", err)
		}
		if snap.CurrentPrice != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the first cycle to complete")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if *snap.CurrentPrice != 10.75 {
		t.Fatalf("expected refreshed price 10.75, got %v", *snap.CurrentPrice)
	}
}

func TestBinding_InvalidDirection(t *testing.T) {
	s := newTestServer(&stubFetcher{}, "")

	rr := doRequest(t, s, http.MethodPut, "/v1/binding", `{"tradeDirection":"SIDEWAYS"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(&stubFetcher{listings: []pricing.Listing{{Price: "1"}}}, "secret123")

	// Health and metrics bypass auth.
	if rr := doRequest(t, s, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Fatalf("/health should bypass auth, got %d", rr.Code)
	}
	if rr := doRequest(t, s, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Fatalf("/metrics should bypass auth, got %d", rr.Code)
	}

	// Everything else needs the Bearer token.
	if rr := doRequest(t, s, http.MethodGet, "/v1/series", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/series", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/series", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct token, got %d", rr.Code)
	}
}

func TestCorsPreflight(t *testing.T) {
	s := newTestServer(&stubFetcher{}, "secret123")

	rr := doRequest(t, s, http.MethodOptions, "/v1/series", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing CORS headers")
	}
}
