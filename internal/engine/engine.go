// Package engine implements the Bidding engine (§4.3/§4.4): the
// transactional decision procedure that validates and applies bids,
// resolves competing proxy max-bids, and triggers soft-close
// extensions. It is the heart of the system the rest of this repo
// exists to serve.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kartnagrale/auctionhouse/internal/audit"
	"github.com/kartnagrale/auctionhouse/internal/clock"
	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/hub"
	"github.com/kartnagrale/auctionhouse/internal/logger"
	"github.com/kartnagrale/auctionhouse/internal/metrics"
	"github.com/kartnagrale/auctionhouse/internal/notifier"
	"github.com/kartnagrale/auctionhouse/internal/rules"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// Result is the outcome of a place_bid/buy_now call (§6).
type Result struct {
	Code           string
	Lot            domain.Lot
	ProxyTriggered bool
	OutbidOccurred bool
	Floor          *decimal.Decimal
}

// backoffs implements §5's retry ladder: up to 3 retries on Aborted
// with 1ms, 5ms, 25ms delays before giving up with TRANSIENT_CONFLICT.
var backoffs = []time.Duration{time.Millisecond, 5 * time.Millisecond, 25 * time.Millisecond}

// Engine wires the Store, Clock, Subscription hub and Notifier
// collaborators together (§6 lists these interfaces; this repo's
// concrete implementations are store.PgStore, clock.SystemClock,
// hub.Hub and notifier.AMQPNotifier or notifier.Noop).
type Engine struct {
	Store    store.Store
	Clock    clock.Clock
	Hub      *hub.Hub
	Notifier notifier.Notifier
	Metrics  *metrics.Metrics
}

// New builds an Engine from its collaborators.
func New(s store.Store, c clock.Clock, h *hub.Hub, n notifier.Notifier, m *metrics.Metrics) *Engine {
	if n == nil {
		n = notifier.Noop{}
	}
	return &Engine{Store: s, Clock: c, Hub: h, Notifier: n, Metrics: m}
}

// PlaceBid is §4.3. It retries the whole decision on store.ErrAborted
// (per-lot serialization conflicts) per §5's backoff ladder.
func (e *Engine) PlaceBid(ctx context.Context, lotID, bidderID string, amount decimal.Decimal, maxBid *decimal.Decimal) (Result, error) {
	for attempt := 0; ; attempt++ {
		result, err := e.placeBidAttempt(ctx, lotID, bidderID, amount, maxBid)
		if err == nil {
			e.afterPlaceBid(ctx, lotID, bidderID, result)
			return result, nil
		}
		if !errors.Is(err, store.ErrAborted) {
			return Result{}, err
		}
		if e.Metrics != nil {
			e.Metrics.BidRetries.Inc()
		}
		if attempt >= len(backoffs) {
			logger.Lot(lotID).Warn().Int("attempts", attempt+1).Msg("place_bid exhausted retries")
			return Result{Code: "TRANSIENT_CONFLICT", Lot: domain.Lot{ID: lotID}}, nil
		}
		select {
		case <-time.After(backoffs[attempt]):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

func (e *Engine) afterPlaceBid(ctx context.Context, lotID, bidderID string, result Result) {
	if e.Metrics != nil {
		e.Metrics.BidsTotal.WithLabelValues(result.Code).Inc()
		if result.ProxyTriggered {
			e.Metrics.ProxyTriggers.Inc()
		}
	}
	if e.Hub != nil {
		switch result.Code {
		case "accepted", "OUTBID_BY_PROXY":
			e.Hub.BroadcastToLot(lotID, hub.Message{Type: hub.TypeBidPlaced, Payload: snapshotJSON(result.Lot)})
		}
	}

	var kind string
	switch result.Code {
	case "accepted":
		kind = "bid_placed"
	case "OUTBID_BY_PROXY":
		kind = "outbid"
	default:
		return
	}
	if err := e.Notifier.Publish(ctx, notifier.Event{
		Kind: kind, AuctionID: result.Lot.AuctionID, LotID: lotID, BidderID: bidderID,
		Payload: snapshotJSON(result.Lot),
	}); err != nil {
		logger.Lot(lotID).Warn().Err(err).Msg("notifier publish failed")
	}
}

// placeBidAttempt runs one attempt of the full decision inside a
// single lot transaction. It returns a non-nil error only for
// infrastructure failures (store.ErrNotFound, store.ErrAborted, or an
// unexpected write failure) — policy rejections are reported through
// Result, not error, since they still commit a bid_rejected audit.
func (e *Engine) placeBidAttempt(ctx context.Context, lotID, bidderID string, amount decimal.Decimal, maxBid *decimal.Decimal) (Result, error) {
	var result Result
	err := e.Store.WithLotTx(ctx, lotID, func(ctx context.Context, tx store.LotTx) error {
		lot := tx.Lot()
		auction := tx.Auction()
		now := e.Clock.Now()

		reject := func(code, message string, floor *decimal.Decimal) error {
			if err := tx.InsertAudit(ctx, audit.BidRejected(lot, bidderID, amount, code, message)); err != nil {
				return fmt.Errorf("insert rejection audit: %w", err)
			}
			result = Result{Code: code, Lot: lot, Floor: floor}
			return nil
		}

		// Precondition 1: amount/max_bid shape.
		if amount.Sign() <= 0 {
			return reject("INVALID_AMOUNT", "amount must be positive", nil)
		}
		if maxBid != nil && maxBid.LessThan(amount) {
			return reject("INVALID_MAX_BID", "max_bid must be >= amount", nil)
		}
		// Precondition 2: lot active.
		if lot.Status != domain.LotActive {
			return reject("LOT_NOT_ACTIVE", "lot is not active", nil)
		}
		// Precondition 3: before close.
		if !now.Before(lot.CurrentCloseAt) {
			return reject("AUCTION_CLOSED", "lot has reached its close time", nil)
		}

		tiers := rules.IncrementTiersFromDomain(lot.EffectiveIncrementRules(auction.IncrementRules))

		// Precondition 4: floor.
		floor := rules.MinNextBid(lot.CurrentBid, lot.StartingBid, tiers)
		if amount.LessThan(floor) {
			f := floor
			return reject("BID_TOO_LOW", fmt.Sprintf("bid must be >= %s", floor.StringFixed(2)), &f)
		}
		// Precondition 5: not already winning.
		if lot.CurrentBidderID != nil && *lot.CurrentBidderID == bidderID {
			return reject("SELF_OUTBID", "you are already the high bidder", nil)
		}

		var hMax *domain.Bid
		if lot.CurrentBidderID != nil {
			var err error
			hMax, err = tx.ActiveMaxBid(ctx, *lot.CurrentBidderID)
			if err != nil {
				return fmt.Errorf("load incumbent max bid: %w", err)
			}
		}

		step := rules.Increment(lot.CurrentBid, tiers)

		switch {
		case hMax == nil || hMax.MaxBid == nil:
			return e.resolveCaseA(ctx, tx, &lot, bidderID, amount, maxBid, now, &result)

		case maxBid != nil && maxBid.Equal(*hMax.MaxBid):
			return reject("MAX_BID_TIED", "max_bid ties the incumbent's max_bid", nil)

		case maxBid != nil && maxBid.GreaterThan(*hMax.MaxBid):
			return e.resolveCaseB(ctx, tx, &lot, *hMax, bidderID, amount, maxBid, step, now, &result)

		default:
			return e.resolveCaseC(ctx, tx, &lot, *hMax, bidderID, amount, maxBid, step, now, &result)
		}
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// resolveCaseA: no active incumbent max-bid. Accept outright (§4.3 case A).
func (e *Engine) resolveCaseA(ctx context.Context, tx store.LotTx, lot *domain.Lot, bidderID string, amount decimal.Decimal, maxBid *decimal.Decimal, now time.Time, result *Result) error {
	previousBid := lot.CurrentBid
	previousBidderID := lot.CurrentBidderID

	if previousBidderID != nil {
		if winning, err := tx.WinningBid(ctx); err != nil {
			return fmt.Errorf("load winning bid: %w", err)
		} else if winning != nil {
			if err := tx.MarkOutbid(ctx, winning.ID, now); err != nil {
				return fmt.Errorf("mark outbid: %w", err)
			}
			if err := tx.InsertAudit(ctx, audit.OutbidOccurred(*lot, winning.BidderID, previousBid, amount)); err != nil {
				return fmt.Errorf("insert outbid audit: %w", err)
			}
			result.OutbidOccurred = true
		}
	}

	active := maxBid != nil
	if _, err := tx.InsertBid(ctx, domain.Bid{
		LotID: lot.ID, BidderID: bidderID, Amount: amount, Type: domain.BidManual,
		MaxBid: maxBid, MaxBidActive: active, IsWinning: true,
		PreviousAmount: previousBid, PreviousBidderID: previousBidderID,
	}); err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}

	lot.CurrentBid = amount
	lot.CurrentBidderID = &bidderID
	lot.BidCount++
	applyReserveMet(lot)

	if err := e.applySoftClose(ctx, tx, lot, now); err != nil {
		return err
	}
	if err := tx.UpdateLot(ctx, *lot); err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if err := tx.InsertAudit(ctx, audit.BidPlaced(*lot, bidderID, previousBid, amount, domain.EventBidPlaced)); err != nil {
		return fmt.Errorf("insert bid_placed audit: %w", err)
	}

	*result = Result{Code: "accepted", Lot: *lot, OutbidOccurred: result.OutbidOccurred}
	return nil
}

// resolveCaseB: new max_bid beats the incumbent's — new bidder takes
// the lead at min(max_bid, H_max+step); incumbent's cap is exhausted
// (§4.3 case B).
func (e *Engine) resolveCaseB(ctx context.Context, tx store.LotTx, lot *domain.Lot, incumbent domain.Bid, bidderID string, amount decimal.Decimal, maxBid *decimal.Decimal, step decimal.Decimal, now time.Time, result *Result) error {
	previousBid := lot.CurrentBid
	previousBidderID := lot.CurrentBidderID

	newCurrent := incumbent.MaxBid.Add(step)
	if maxBid.LessThan(newCurrent) {
		newCurrent = *maxBid
	}

	if err := tx.MarkOutbid(ctx, incumbent.ID, now); err != nil {
		return fmt.Errorf("mark incumbent outbid: %w", err)
	}
	if err := tx.SetMaxBidActive(ctx, incumbent.ID, false); err != nil {
		return fmt.Errorf("exhaust incumbent max bid: %w", err)
	}

	if _, err := tx.InsertBid(ctx, domain.Bid{
		LotID: lot.ID, BidderID: incumbent.BidderID, Amount: *incumbent.MaxBid, Type: domain.BidProxy,
		IsWinning: false, PreviousAmount: previousBid, PreviousBidderID: previousBidderID,
	}); err != nil {
		return fmt.Errorf("insert defender proxy bid: %w", err)
	}
	if err := tx.InsertAudit(ctx, audit.ProxyTriggered(*lot, incumbent.BidderID, previousBid, *incumbent.MaxBid)); err != nil {
		return fmt.Errorf("insert proxy_triggered audit: %w", err)
	}

	if _, err := tx.InsertBid(ctx, domain.Bid{
		LotID: lot.ID, BidderID: bidderID, Amount: newCurrent, Type: domain.BidManual,
		MaxBid: maxBid, MaxBidActive: true, IsWinning: true,
		PreviousAmount: previousBid, PreviousBidderID: previousBidderID,
	}); err != nil {
		return fmt.Errorf("insert new leader bid: %w", err)
	}

	lot.CurrentBid = newCurrent
	lot.CurrentBidderID = &bidderID
	lot.BidCount += 2
	applyReserveMet(lot)

	if err := e.applySoftClose(ctx, tx, lot, now); err != nil {
		return err
	}
	if err := tx.UpdateLot(ctx, *lot); err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if err := tx.InsertAudit(ctx, audit.BidPlaced(*lot, bidderID, previousBid, newCurrent, domain.EventBidPlaced)); err != nil {
		return fmt.Errorf("insert bid_placed audit: %w", err)
	}

	*result = Result{Code: "accepted", Lot: *lot, ProxyTriggered: true, OutbidOccurred: true}
	return nil
}

// resolveCaseC: incumbent's max_bid still beats (or ties above) the
// new bidder's; the incumbent's proxy defends and the new bidder
// loses (§4.3 case C).
func (e *Engine) resolveCaseC(ctx context.Context, tx store.LotTx, lot *domain.Lot, incumbent domain.Bid, bidderID string, amount decimal.Decimal, maxBid *decimal.Decimal, step decimal.Decimal, now time.Time, result *Result) error {
	previousBid := lot.CurrentBid
	previousBidderID := lot.CurrentBidderID

	challenge := amount
	if maxBid != nil {
		challenge = *maxBid
	}
	defended := challenge.Add(step)
	if incumbent.MaxBid.LessThan(defended) {
		defended = *incumbent.MaxBid
	}

	// Retire the incumbent's prior winning row and prior active max-bid
	// row before inserting the new ones, so at most one of each ever
	// exists at a time (I-L5, I-B3) — same order as cases A and B.
	winning, err := tx.WinningBid(ctx)
	if err != nil {
		return fmt.Errorf("load winning bid: %w", err)
	}
	if winning != nil {
		if err := tx.MarkOutbid(ctx, winning.ID, now); err != nil {
			return fmt.Errorf("retire superseded winning bid: %w", err)
		}
	}
	if err := tx.SetMaxBidActive(ctx, incumbent.ID, false); err != nil {
		return fmt.Errorf("retire incumbent's prior active max bid: %w", err)
	}

	if _, err := tx.InsertBid(ctx, domain.Bid{
		LotID: lot.ID, BidderID: bidderID, Amount: challenge, Type: domain.BidManual,
		MaxBid: maxBid, MaxBidActive: maxBid != nil, IsWinning: false,
		PreviousAmount: previousBid, PreviousBidderID: previousBidderID,
	}); err != nil {
		return fmt.Errorf("insert challenger bid: %w", err)
	}

	if _, err := tx.InsertBid(ctx, domain.Bid{
		LotID: lot.ID, BidderID: incumbent.BidderID, Amount: defended, Type: domain.BidProxy,
		MaxBid: incumbent.MaxBid, MaxBidActive: true, IsWinning: true,
		PreviousAmount: previousBid, PreviousBidderID: previousBidderID,
	}); err != nil {
		return fmt.Errorf("insert defending proxy bid: %w", err)
	}

	if err := tx.InsertAudit(ctx, audit.ProxyTriggered(*lot, incumbent.BidderID, previousBid, defended)); err != nil {
		return fmt.Errorf("insert proxy_triggered audit: %w", err)
	}

	lot.CurrentBid = defended
	lot.BidCount += 2
	applyReserveMet(lot)

	if err := e.applySoftClose(ctx, tx, lot, now); err != nil {
		return err
	}
	if err := tx.UpdateLot(ctx, *lot); err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if err := tx.InsertAudit(ctx, audit.BidPlaced(*lot, bidderID, previousBid, challenge, domain.EventBidPlaced)); err != nil {
		return fmt.Errorf("insert bid_placed audit: %w", err)
	}

	*result = Result{Code: "OUTBID_BY_PROXY", Lot: *lot, ProxyTriggered: true}
	return nil
}

// applySoftClose extends current_close_at when a qualifying bid lands
// inside the trigger window (§4.3 "Soft close check").
func (e *Engine) applySoftClose(ctx context.Context, tx store.LotTx, lot *domain.Lot, now time.Time) error {
	auction := tx.Auction()
	if !auction.SoftCloseEnabled {
		return nil
	}
	remaining := lot.CurrentCloseAt.Sub(now)
	if remaining > auction.TriggerWindow {
		return nil
	}
	lot.CurrentCloseAt = now.Add(auction.Extension)
	lot.ExtensionCount++
	if err := tx.InsertAudit(ctx, audit.SoftCloseTriggered(*lot)); err != nil {
		return fmt.Errorf("insert soft_close_triggered audit: %w", err)
	}
	if e.Metrics != nil {
		e.Metrics.SoftCloseExtends.Inc()
	}
	return nil
}

// applyReserveMet flips reserve_met true the first time current_bid
// reaches the reserve; it never reverts (I-L3).
func applyReserveMet(lot *domain.Lot) {
	if lot.ReservePrice == nil {
		lot.ReserveMet = true // no reserve configured: trivially met
		return
	}
	if lot.ReserveMet {
		return // I-L3: never reverts
	}
	if !lot.CurrentBid.LessThan(*lot.ReservePrice) {
		lot.ReserveMet = true
	}
}

// BuyNow is §4.4: immediate purchase at buy_now_price, closing the lot.
func (e *Engine) BuyNow(ctx context.Context, lotID, bidderID string) (Result, error) {
	var result Result
	err := e.Store.WithLotTx(ctx, lotID, func(ctx context.Context, tx store.LotTx) error {
		lot := tx.Lot()
		now := e.Clock.Now()

		reject := func(code, message string) error {
			if err := tx.InsertAudit(ctx, audit.BidRejected(lot, bidderID, decimal.Zero, code, message)); err != nil {
				return fmt.Errorf("insert rejection audit: %w", err)
			}
			result = Result{Code: code, Lot: lot}
			return nil
		}

		if lot.Status != domain.LotActive {
			return reject("LOT_NOT_ACTIVE", "lot is not active")
		}
		if !now.Before(lot.CurrentCloseAt) {
			return reject("AUCTION_CLOSED", "lot has reached its close time")
		}
		if lot.BuyNowPrice == nil {
			return reject("NO_BUY_NOW", "lot has no buy-now price")
		}
		if lot.CurrentBidderID != nil && *lot.CurrentBidderID == bidderID {
			return reject("SELF_OUTBID", "you are already the high bidder")
		}

		previousBid := lot.CurrentBid
		previousBidderID := lot.CurrentBidderID
		price := *lot.BuyNowPrice

		if previousBidderID != nil {
			if winning, err := tx.WinningBid(ctx); err != nil {
				return fmt.Errorf("load winning bid: %w", err)
			} else if winning != nil {
				if err := tx.MarkOutbid(ctx, winning.ID, now); err != nil {
					return fmt.Errorf("mark outbid: %w", err)
				}
			}
		}

		if _, err := tx.InsertBid(ctx, domain.Bid{
			LotID: lot.ID, BidderID: bidderID, Amount: price, Type: domain.BidManual,
			IsWinning: true, BuyNow: true,
			PreviousAmount: previousBid, PreviousBidderID: previousBidderID,
		}); err != nil {
			return fmt.Errorf("insert buy-now bid: %w", err)
		}

		lot.CurrentBid = price
		lot.CurrentBidderID = &bidderID
		lot.BidCount++
		applyReserveMet(lot)
		lot.Status = domain.LotSold
		closedAt := now
		lot.ClosedAt = &closedAt

		if err := tx.UpdateLot(ctx, lot); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
		if err := tx.InsertAudit(ctx, audit.BuyNowExecuted(lot, bidderID, price)); err != nil {
			return fmt.Errorf("insert buy_now_executed audit: %w", err)
		}
		if err := tx.InsertAudit(ctx, audit.LotClosed(lot)); err != nil {
			return fmt.Errorf("insert lot_closed audit: %w", err)
		}

		result = Result{Code: "accepted", Lot: lot}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if e.Hub != nil && result.Code == "accepted" {
		e.Hub.BroadcastToLot(lotID, hub.Message{Type: hub.TypeLotClosed, Payload: snapshotJSON(result.Lot)})
	}
	if e.Metrics != nil {
		e.Metrics.BidsTotal.WithLabelValues(result.Code).Inc()
	}
	if result.Code == "accepted" {
		if err := e.Notifier.Publish(ctx, notifier.Event{
			Kind: "lot_closed", AuctionID: result.Lot.AuctionID, LotID: lotID, BidderID: bidderID,
			Payload: snapshotJSON(result.Lot),
		}); err != nil {
			logger.Lot(lotID).Warn().Err(err).Msg("notifier publish failed")
		}
	}
	return result, nil
}
