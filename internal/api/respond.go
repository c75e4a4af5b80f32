// Package api is the thin HTTP adapter (§4.9) from chi routes to the
// engine/closer/invoicer/importer/watchlist operations. It contains no
// business logic beyond request parsing and result_code → status
// mapping (§7).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/kartnagrale/auctionhouse/internal/logger"
)

// errorResponse is the stable JSON error shape every handler returns
// on failure: a result_code string plus a human message that may
// change (§6 "Always return a stable result_code string").
type errorResponse struct {
	ResultCode string `json:"result_code"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.HTTP().Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{ResultCode: code, Message: message})
}

// engineStatus maps a place_bid/buy_now result code to its HTTP status
// per §7's taxonomy.
func engineStatus(code string) int {
	switch code {
	case "accepted":
		return http.StatusOK
	case "OUTBID_BY_PROXY":
		return http.StatusConflict
	case "TRANSIENT_CONFLICT":
		return http.StatusServiceUnavailable
	case "INVALID_AMOUNT", "INVALID_MAX_BID":
		return http.StatusBadRequest
	case "BID_TOO_LOW", "SELF_OUTBID", "AUCTION_CLOSED", "MAX_BID_TIED", "LOT_NOT_ACTIVE", "NO_BUY_NOW":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
