package engine

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/kartnagrale/auctionhouse/internal/domain"
)

// lotSnapshot is the lot payload of hub events. The hub sends it inside
// a hub.Message envelope (a message type plus this payload); no event
// timestamp is included.
type lotSnapshot struct {
	ID              string          `json:"id"`
	AuctionID       string          `json:"auction_id"`
	LotNumber       int             `json:"lot_number"`
	Status          domain.LotStatus `json:"status"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	CurrentBidderID *string         `json:"current_bidder_id,omitempty"`
	BidCount        int             `json:"bid_count"`
	ReserveMet      bool            `json:"reserve_met"`
	CurrentCloseAt  int64           `json:"current_close_at"`
	ExtensionCount  int             `json:"extension_count"`
}

// snapshotJSON renders a lot into the subscription event payload shape.
func snapshotJSON(lot domain.Lot) json.RawMessage {
	s := lotSnapshot{
		ID: lot.ID, AuctionID: lot.AuctionID, LotNumber: lot.LotNumber, Status: lot.Status,
		CurrentBid: lot.CurrentBid, CurrentBidderID: lot.CurrentBidderID, BidCount: lot.BidCount,
		ReserveMet: lot.ReserveMet, CurrentCloseAt: lot.CurrentCloseAt.Unix(), ExtensionCount: lot.ExtensionCount,
	}
	b, _ := json.Marshal(s)
	return b
}

// Snapshot exposes the subscription snapshot payload for callers
// outside this package (the API surface's subscribe handler).
func Snapshot(lot domain.Lot) json.RawMessage { return snapshotJSON(lot) }
