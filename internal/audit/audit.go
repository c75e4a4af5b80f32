// Package audit builds the append-only AuditEvent rows the engine
// writes inside the same transaction as every bid decision (I-A1).
// It does not touch the database itself — callers pass the resulting
// domain.AuditEvent to a store.LotTx.InsertAudit within the active
// transaction so a failed audit insert aborts the whole decision.
package audit

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/kartnagrale/auctionhouse/internal/domain"
)

// Snapshot is the JSON shape recorded alongside every event, enough to
// reconstruct what the engine saw without re-querying other tables.
type Snapshot struct {
	LotStatus      domain.LotStatus `json:"lot_status"`
	CurrentBid     decimal.Decimal  `json:"current_bid"`
	CurrentCloseAt string           `json:"current_close_at"`
	ExtensionCount int              `json:"extension_count"`
	BidCount       int              `json:"bid_count"`
}

func snapshotOf(lot domain.Lot) []byte {
	b, _ := json.Marshal(Snapshot{
		LotStatus:      lot.Status,
		CurrentBid:     lot.CurrentBid,
		CurrentCloseAt: lot.CurrentCloseAt.Format("2006-01-02T15:04:05.000Z07:00"),
		ExtensionCount: lot.ExtensionCount,
		BidCount:       lot.BidCount,
	})
	return b
}

// BidPlaced records a successful manual or proxy bid.
func BidPlaced(lot domain.Lot, bidderID string, previous, amount decimal.Decimal, kind domain.AuditKind) domain.AuditEvent {
	return domain.AuditEvent{
		Kind:           kind,
		LotID:          lot.ID,
		AuctionID:      lot.AuctionID,
		BidderID:       &bidderID,
		PreviousAmount: &previous,
		NewAmount:      &amount,
		ResultCode:     "accepted",
		Snapshot:       snapshotOf(lot),
	}
}

// BidRejected records a rejected bid attempt with the §7 result code.
func BidRejected(lot domain.Lot, bidderID string, attempted decimal.Decimal, code, message string) domain.AuditEvent {
	return domain.AuditEvent{
		Kind:          domain.EventBidRejected,
		LotID:         lot.ID,
		AuctionID:     lot.AuctionID,
		BidderID:      &bidderID,
		NewAmount:     &attempted,
		ResultCode:    code,
		ResultMessage: message,
		Snapshot:      snapshotOf(lot),
	}
}

// ProxyTriggered records the engine placing an automatic counter-bid
// on behalf of a standing max-bid (§4.1 cases B/C).
func ProxyTriggered(lot domain.Lot, bidderID string, previous, amount decimal.Decimal) domain.AuditEvent {
	return domain.AuditEvent{
		Kind:           domain.EventProxyTriggered,
		LotID:          lot.ID,
		AuctionID:      lot.AuctionID,
		BidderID:       &bidderID,
		PreviousAmount: &previous,
		NewAmount:      &amount,
		ResultCode:     "proxy_triggered",
		Snapshot:       snapshotOf(lot),
	}
}

// OutbidOccurred records the previous leader losing the lead.
func OutbidOccurred(lot domain.Lot, outbidBidderID string, previous, newAmount decimal.Decimal) domain.AuditEvent {
	return domain.AuditEvent{
		Kind:           domain.EventOutbidOccurred,
		LotID:          lot.ID,
		AuctionID:      lot.AuctionID,
		BidderID:       &outbidBidderID,
		PreviousAmount: &previous,
		NewAmount:      &newAmount,
		ResultCode:     "outbid",
		Snapshot:       snapshotOf(lot),
	}
}

// SoftCloseTriggered records an extension of a lot's close time (§4.3).
func SoftCloseTriggered(lot domain.Lot) domain.AuditEvent {
	return domain.AuditEvent{
		Kind:       domain.EventSoftCloseTrig,
		LotID:      lot.ID,
		AuctionID:  lot.AuctionID,
		ResultCode: "extended",
		Snapshot:   snapshotOf(lot),
	}
}

// ReserveMet records the moment a lot's reserve price is first satisfied.
func ReserveMet(lot domain.Lot, amount decimal.Decimal) domain.AuditEvent {
	return domain.AuditEvent{
		Kind:       domain.EventReserveMet,
		LotID:      lot.ID,
		AuctionID:  lot.AuctionID,
		NewAmount:  &amount,
		ResultCode: "reserve_met",
		Snapshot:   snapshotOf(lot),
	}
}

// LotClosed records the final disposition of a lot (§4.5).
func LotClosed(lot domain.Lot) domain.AuditEvent {
	return domain.AuditEvent{
		Kind:       domain.EventLotClosed,
		LotID:      lot.ID,
		AuctionID:  lot.AuctionID,
		BidderID:   lot.CurrentBidderID,
		ResultCode: string(lot.Status),
		Snapshot:   snapshotOf(lot),
	}
}

// BuyNowExecuted records a buy-now purchase closing a lot immediately (§4.4).
func BuyNowExecuted(lot domain.Lot, bidderID string, amount decimal.Decimal) domain.AuditEvent {
	return domain.AuditEvent{
		Kind:       domain.EventBuyNowExecuted,
		LotID:      lot.ID,
		AuctionID:  lot.AuctionID,
		BidderID:   &bidderID,
		NewAmount:  &amount,
		ResultCode: "buy_now",
		Snapshot:   snapshotOf(lot),
	}
}
