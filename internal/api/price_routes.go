package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marwilc/graph-p2p-backend/internal/models"
	"github.com/marwilc/graph-p2p-backend/internal/pricing"
)

// handlePrice is the acquisition facade: one stateless
// fetch→aggregate round trip, mirroring what a poll cycle does minus the
// merge. Invalid tradeDirection is the only synchronous rejection.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dirParam := q.Get("tradeDirection")
	if dirParam == "" {
		dirParam = string(models.Buy)
	}
	direction, err := models.ParseTradeDirection(dirParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payTypes := splitCSV(q.Get("paymentMethods"))

	listings, err := s.fetcher.FetchListings(r.Context(), direction, payTypes)
	if err != nil {
		fmt.Printf("[API] Listing fetch failed: %v\n", err)
		writeError(w, http.StatusInternalServerError, "could not obtain a price from the listing service")
		return
	}

	point, err := pricing.Aggregate(listings, direction, time.Now())
	if err != nil {
		fmt.Printf("[API] Aggregation failed: %v\n", err)
		writeError(w, http.StatusInternalServerError, "could not obtain a price from the listing service")
		return
	}

	writeJSON(w, http.StatusOK, point)
}

// handleSeries exposes the poller's read-only view.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poll.Snapshot())
}

// handleRefresh triggers one manual fetch cycle. A cycle already in
// flight makes this a no-op; either way the current snapshot is returned.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.poll.RefreshNow(r.Context()); err != nil {
		fmt.Printf("[API] Manual refresh failed: %v\n", err)
	}
	writeJSON(w, http.StatusOK, s.poll.Snapshot())
}

type bindingRequest struct {
	TradeDirection string   `json:"tradeDirection"`
	PaymentMethods []string `json:"paymentMethods"`
}

// handleBinding rebinds the poller to a new parameter set.
func (s *Server) handleBinding(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	direction, err := models.ParseTradeDirection(req.TradeDirection)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.poll.Bind(direction, req.PaymentMethods)
	writeJSON(w, http.StatusOK, s.poll.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "graph-p2p-backend"})
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
