package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kartnagrale/auctionhouse/internal/engine"
	"github.com/kartnagrale/auctionhouse/internal/httpmw"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// BidHandler serves place_bid, buy_now and bid_history (§6).
type BidHandler struct {
	Engine *engine.Engine
	Store  store.Store
}

type placeBidRequest struct {
	Amount decimal.Decimal  `json:"amount"`
	MaxBid *decimal.Decimal `json:"max_bid,omitempty"`
}

type bidResultResponse struct {
	ResultCode     string      `json:"result_code"`
	Lot            interface{} `json:"lot"`
	ProxyTriggered bool        `json:"proxy_triggered,omitempty"`
	OutbidOccurred bool        `json:"outbid_occurred,omitempty"`
	Floor          *string     `json:"floor,omitempty"`
}

// PlaceBid handles POST /lots/{lotID}/bids.
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := httpmw.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}
	lotID := chi.URLParam(r, "lotID")

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "malformed request body")
		return
	}

	result, err := h.Engine.PlaceBid(r.Context(), lotID, bidderID, req.Amount, req.MaxBid)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeResult(w, result)
}

// BuyNow handles POST /lots/{lotID}/buy-now.
func (h *BidHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := httpmw.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}
	lotID := chi.URLParam(r, "lotID")

	result, err := h.Engine.BuyNow(r.Context(), lotID, bidderID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeResult(w, result)
}

func writeResult(w http.ResponseWriter, result engine.Result) {
	resp := bidResultResponse{
		ResultCode:     result.Code,
		Lot:            engine.Snapshot(result.Lot),
		ProxyTriggered: result.ProxyTriggered,
		OutbidOccurred: result.OutbidOccurred,
	}
	if result.Floor != nil {
		s := result.Floor.StringFixed(2)
		resp.Floor = &s
	}
	writeJSON(w, engineStatus(result.Code), resp)
}

func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "lot not found")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
	}
}

type bidHistoryEntry struct {
	Amount    string  `json:"amount"`
	BidderID  *string `json:"bidder_id,omitempty"`
	Type      string  `json:"type"`
	IsWinning bool    `json:"is_winning"`
	CreatedAt int64   `json:"created_at"`
}

// BidHistory handles GET /lots/{lotID}/bids. Bidder identity is
// redacted unless the requester is the bidder themself or an admin
// (§6 bid_history).
func (h *BidHandler) BidHistory(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	bids, err := h.Store.BidHistory(r.Context(), lotID, limit, nil)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	requesterID, _ := httpmw.UserID(r.Context())
	isAdmin := httpmw.IsAdmin(r.Context())

	out := make([]bidHistoryEntry, 0, len(bids))
	for _, b := range bids {
		entry := bidHistoryEntry{
			Amount:    b.Amount.StringFixed(2),
			Type:      string(b.Type),
			IsWinning: b.IsWinning,
			CreatedAt: b.CreatedAt.Unix(),
		}
		if isAdmin || b.BidderID == requesterID {
			id := b.BidderID
			entry.BidderID = &id
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}
