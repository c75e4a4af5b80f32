// Package closer implements the Closer (§4.5): the idempotent,
// crash-safe procedure that finalizes a lot once its close time has
// passed, and CloseAuction, which marks an auction closed once every
// lot in it has finished. Nothing in this package generates invoices;
// that is the separate generate_invoices operation.
package closer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kartnagrale/auctionhouse/internal/audit"
	"github.com/kartnagrale/auctionhouse/internal/clock"
	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/hub"
	"github.com/kartnagrale/auctionhouse/internal/logger"
	"github.com/kartnagrale/auctionhouse/internal/metrics"
	"github.com/kartnagrale/auctionhouse/internal/notifier"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// Closer closes individual lots and sweeps auctions whose lots have
// all finished.
type Closer struct {
	Store    store.Store
	Clock    clock.Clock
	Hub      *hub.Hub
	Notifier notifier.Notifier
	Metrics  *metrics.Metrics
}

// New builds a Closer.
func New(s store.Store, c clock.Clock, h *hub.Hub, n notifier.Notifier, m *metrics.Metrics) *Closer {
	if n == nil {
		n = notifier.Noop{}
	}
	return &Closer{Store: s, Clock: c, Hub: h, Notifier: n, Metrics: m}
}

// CloseLot is §4.5 steps 1-5, run inside the lot's transaction so it
// serializes against any in-flight place_bid/buy_now on the same lot.
// Calling it on an already-closed lot is a no-op (idempotence, §8).
func (c *Closer) CloseLot(ctx context.Context, lotID string) (domain.Lot, error) {
	var result domain.Lot
	err := c.Store.WithLotTx(ctx, lotID, func(ctx context.Context, tx store.LotTx) error {
		lot := tx.Lot()
		if lot.Status != domain.LotActive {
			result = lot
			return nil // idempotent no-op: already closed, sold, unsold or withdrawn
		}

		reserveOK := lot.ReservePrice == nil || lot.ReserveMet
		if lot.CurrentBidderID != nil && reserveOK {
			lot.Status = domain.LotSold
		} else {
			lot.Status = domain.LotUnsold
		}
		now := c.Clock.Now()
		lot.ClosedAt = &now

		bids, err := tx.ListBids(ctx)
		if err != nil {
			return fmt.Errorf("list bids: %w", err)
		}
		for _, b := range bids {
			status := domain.BidStatusLost
			if b.IsWinning && lot.Status == domain.LotSold {
				status = domain.BidStatusWon
			}
			if err := tx.SetBidLifecycleStatus(ctx, b.ID, status); err != nil {
				return fmt.Errorf("set bid lifecycle status: %w", err)
			}
		}

		if err := tx.UpdateLot(ctx, lot); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
		if err := tx.InsertAudit(ctx, audit.LotClosed(lot)); err != nil {
			return fmt.Errorf("insert lot_closed audit: %w", err)
		}

		result = lot
		return nil
	})
	if err != nil {
		return domain.Lot{}, err
	}
	if c.Metrics != nil {
		c.Metrics.LotsClosedTotal.WithLabelValues(string(result.Status)).Inc()
	}
	if c.Hub != nil {
		c.Hub.BroadcastToLot(lotID, hub.Message{Type: hub.TypeLotClosed, Payload: mustSnapshot(result)})
	}
	bidderID := ""
	if result.CurrentBidderID != nil {
		bidderID = *result.CurrentBidderID
	}
	if err := c.Notifier.Publish(ctx, notifier.Event{
		Kind: "lot_closed", AuctionID: result.AuctionID, LotID: lotID, BidderID: bidderID,
		Payload: mustSnapshot(result),
	}); err != nil {
		logger.Closer().Warn().Err(err).Str("lot_id", lotID).Msg("notifier publish failed")
	}
	return result, nil
}

// SweepDueLots finds every active lot whose current_close_at has
// passed and closes each, returning the closed lots. Errors on
// individual lots are logged and skipped so one bad lot can't block
// the rest of the sweep.
func (c *Closer) SweepDueLots(ctx context.Context) ([]domain.Lot, error) {
	due, err := c.Store.LotsPastClose(ctx, c.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("lots past close: %w", err)
	}
	var closed []domain.Lot
	for _, lot := range due {
		l, err := c.CloseLot(ctx, lot.ID)
		if err != nil {
			logger.Closer().Error().Err(err).Str("lot_id", lot.ID).Msg("close lot failed during sweep")
			continue
		}
		closed = append(closed, l)
	}
	return closed, nil
}

// CloseAuction transitions an auction to closed once every lot has
// left the pending/active states. It is safe to call before that is
// true; it reports whether the auction actually closed.
func (c *Closer) CloseAuction(ctx context.Context, auctionID string) (bool, error) {
	allClosed, err := c.Store.AllLotsClosed(ctx, auctionID)
	if err != nil {
		return false, fmt.Errorf("all lots closed: %w", err)
	}
	if !allClosed {
		return false, nil
	}
	if err := c.Store.SetAuctionStatus(ctx, auctionID, domain.AuctionClosed); err != nil {
		return false, fmt.Errorf("set auction status: %w", err)
	}
	return true, nil
}

// ForceCloseAuction is the admin-triggered close_auction operation
// (§6): close every active lot (CloseLot leaves pending lots as they
// are), then close the auction regardless of reserve state.
func (c *Closer) ForceCloseAuction(ctx context.Context, auctionID string) error {
	lots, err := c.Store.ListLotsForAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("list lots: %w", err)
	}
	for _, lot := range lots {
		if lot.Status == domain.LotActive || lot.Status == domain.LotPending {
			if _, err := c.CloseLot(ctx, lot.ID); err != nil {
				return fmt.Errorf("close lot %s: %w", lot.ID, err)
			}
		}
	}
	return c.Store.SetAuctionStatus(ctx, auctionID, domain.AuctionClosed)
}

func mustSnapshot(lot domain.Lot) []byte {
	type snap struct {
		ID     string           `json:"id"`
		Status domain.LotStatus `json:"status"`
		Closed *time.Time       `json:"closed_at,omitempty"`
	}
	b, _ := json.Marshal(snap{ID: lot.ID, Status: lot.Status, Closed: lot.ClosedAt})
	return b
}
