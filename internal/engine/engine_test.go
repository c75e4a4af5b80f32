package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kartnagrale/auctionhouse/internal/clock"
	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/engine"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newEngine(fs *fakeStore, now time.Time) *engine.Engine {
	return engine.New(fs, clock.FixedClock{At: now}, nil, nil, nil)
}

func defaultTiers() []domain.IncrementRule {
	hundred := d("100")
	fiveHundred := d("500")
	return []domain.IncrementRule{
		{Min: d("0"), Max: &hundred, Step: d("5")},
		{Min: hundred, Max: &fiveHundred, Step: d("10")},
		{Min: fiveHundred, Step: d("25")},
	}
}

// Scenario 1 (§8): increment floor.
func TestPlaceBid_IncrementFloorScenario(t *testing.T) {
	fs := newFakeStore()
	now := time.Now()
	closeAt := now.Add(time.Hour)
	auction := fs.seedAuction(domain.Auction{IncrementRules: defaultTiers(), Status: domain.AuctionActive})
	lot := fs.seedLot(domain.Lot{
		AuctionID: auction.ID, LotNumber: 1, StartingBid: d("100"),
		OriginalCloseAt: closeAt, CurrentCloseAt: closeAt, Status: domain.LotActive,
	})
	e := newEngine(fs, now)
	ctx := context.Background()

	r1, err := e.PlaceBid(ctx, lot.ID, "u1", d("100"), nil)
	require.NoError(t, err)
	require.Equal(t, "accepted", r1.Code)
	require.True(t, r1.Lot.CurrentBid.Equal(d("100")))

	r2, err := e.PlaceBid(ctx, lot.ID, "u2", d("105"), nil)
	require.NoError(t, err)
	require.Equal(t, "BID_TOO_LOW", r2.Code)
	require.True(t, r2.Floor.Equal(d("110")))

	r3, err := e.PlaceBid(ctx, lot.ID, "u2", d("110"), nil)
	require.NoError(t, err)
	require.Equal(t, "accepted", r3.Code)
	require.True(t, r3.Lot.CurrentBid.Equal(d("110")))
}

func flatTierAuction(fs *fakeStore) (domain.Auction, domain.Lot, time.Time) {
	now := time.Now()
	closeAt := now.Add(time.Hour)
	auction := fs.seedAuction(domain.Auction{
		IncrementRules: []domain.IncrementRule{{Min: d("0"), Step: d("10")}},
		Status:         domain.AuctionActive,
	})
	lot := fs.seedLot(domain.Lot{
		AuctionID: auction.ID, LotNumber: 1, StartingBid: d("0"),
		OriginalCloseAt: closeAt, CurrentCloseAt: closeAt, Status: domain.LotActive,
	})
	return auction, lot, now
}

// Scenario 2 (§8): proxy defends.
func TestPlaceBid_ProxyDefends(t *testing.T) {
	fs := newFakeStore()
	_, lot, now := flatTierAuction(fs)
	e := newEngine(fs, now)
	ctx := context.Background()

	max1 := d("200")
	r1, err := e.PlaceBid(ctx, lot.ID, "u1", d("50"), &max1)
	require.NoError(t, err)
	require.Equal(t, "accepted", r1.Code)

	r2, err := e.PlaceBid(ctx, lot.ID, "u2", d("60"), nil)
	require.NoError(t, err)
	require.Equal(t, "OUTBID_BY_PROXY", r2.Code)
	require.True(t, r2.Lot.CurrentBid.Equal(d("70")), "expected 70, got %s", r2.Lot.CurrentBid)
	require.Equal(t, "u1", *r2.Lot.CurrentBidderID)

	bids := fs.bids[lot.ID]
	require.Len(t, bids, 3)
}

// Scenario 3 (§8): proxy overtaken.
func TestPlaceBid_ProxyOvertaken(t *testing.T) {
	fs := newFakeStore()
	_, lot, now := flatTierAuction(fs)
	e := newEngine(fs, now)
	ctx := context.Background()

	max1 := d("200")
	_, err := e.PlaceBid(ctx, lot.ID, "u1", d("50"), &max1)
	require.NoError(t, err)
	r2, err := e.PlaceBid(ctx, lot.ID, "u2", d("60"), nil) // current_bid now 70, u1 still winning
	require.NoError(t, err)
	countBefore := r2.Lot.BidCount

	max3 := d("300")
	r3, err := e.PlaceBid(ctx, lot.ID, "u3", d("80"), &max3)
	require.NoError(t, err)
	require.Equal(t, "accepted", r3.Code)
	require.True(t, r3.Lot.CurrentBid.Equal(d("210")), "expected 210, got %s", r3.Lot.CurrentBid)
	require.Equal(t, "u3", *r3.Lot.CurrentBidderID)
	require.Equal(t, countBefore+2, r3.Lot.BidCount)
}

// Scenario 4 (§8): tie on max.
func TestPlaceBid_MaxBidTied(t *testing.T) {
	fs := newFakeStore()
	_, lot, now := flatTierAuction(fs)
	e := newEngine(fs, now)
	ctx := context.Background()

	max1 := d("200")
	_, err := e.PlaceBid(ctx, lot.ID, "u1", d("50"), &max1)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, lot.ID, "u2", d("60"), nil)
	require.NoError(t, err)

	before := fs.lots[lot.ID]
	max4 := d("200")
	r4, err := e.PlaceBid(ctx, lot.ID, "u4", d("100"), &max4)
	require.NoError(t, err)
	require.Equal(t, "MAX_BID_TIED", r4.Code)
	after := fs.lots[lot.ID]
	require.True(t, before.CurrentBid.Equal(after.CurrentBid))
	require.Equal(t, *before.CurrentBidderID, *after.CurrentBidderID)
}

// Scenario 5 (§8): soft close chain.
func TestPlaceBid_SoftCloseExtendsRepeatedly(t *testing.T) {
	fs := newFakeStore()
	now := time.Now()
	endAt := now.Add(10 * time.Minute)
	auction := fs.seedAuction(domain.Auction{
		IncrementRules:   []domain.IncrementRule{{Min: d("0"), Step: d("5")}},
		SoftCloseEnabled: true,
		TriggerWindow:    5 * time.Minute,
		Extension:        5 * time.Minute,
		Status:           domain.AuctionActive,
	})
	lot := fs.seedLot(domain.Lot{
		AuctionID: auction.ID, LotNumber: 1, StartingBid: d("10"),
		OriginalCloseAt: endAt, CurrentCloseAt: endAt, Status: domain.LotActive,
	})

	atT2min := endAt.Add(-2 * time.Minute) // inside the 5-min trigger window
	e := newEngine(fs, atT2min)
	ctx := context.Background()

	r1, err := e.PlaceBid(ctx, lot.ID, "u1", d("10"), nil)
	require.NoError(t, err)
	require.Equal(t, "accepted", r1.Code)
	require.Equal(t, 1, r1.Lot.ExtensionCount)
	require.True(t, r1.Lot.CurrentCloseAt.Equal(atT2min.Add(5*time.Minute)))

	// A second qualifying bid near the new close extends again.
	atNewMinus1 := r1.Lot.CurrentCloseAt.Add(-1 * time.Minute)
	e2 := newEngine(fs, atNewMinus1)
	r2, err := e2.PlaceBid(ctx, lot.ID, "u2", d("15"), nil)
	require.NoError(t, err)
	require.Equal(t, 2, r2.Lot.ExtensionCount)
	require.True(t, r2.Lot.CurrentCloseAt.After(r1.Lot.CurrentCloseAt))
}

func TestPlaceBid_RejectsAtOrAfterCloseTime(t *testing.T) {
	fs := newFakeStore()
	now := time.Now()
	auction := fs.seedAuction(domain.Auction{IncrementRules: defaultTiers(), Status: domain.AuctionActive})
	lot := fs.seedLot(domain.Lot{
		AuctionID: auction.ID, LotNumber: 1, StartingBid: d("10"),
		OriginalCloseAt: now, CurrentCloseAt: now, Status: domain.LotActive,
	})
	e := newEngine(fs, now)
	r, err := e.PlaceBid(context.Background(), lot.ID, "u1", d("10"), nil)
	require.NoError(t, err)
	require.Equal(t, "AUCTION_CLOSED", r.Code)
}

func TestPlaceBid_SelfOutbidRejected(t *testing.T) {
	fs := newFakeStore()
	_, lot, now := flatTierAuction(fs)
	e := newEngine(fs, now)
	ctx := context.Background()

	_, err := e.PlaceBid(ctx, lot.ID, "u1", d("10"), nil)
	require.NoError(t, err)
	r, err := e.PlaceBid(ctx, lot.ID, "u1", d("20"), nil)
	require.NoError(t, err)
	require.Equal(t, "SELF_OUTBID", r.Code)
}

func TestBuyNow_ClosesLotImmediately(t *testing.T) {
	fs := newFakeStore()
	now := time.Now()
	auction := fs.seedAuction(domain.Auction{IncrementRules: defaultTiers(), Status: domain.AuctionActive})
	buyNow := d("500")
	lot := fs.seedLot(domain.Lot{
		AuctionID: auction.ID, LotNumber: 1, StartingBid: d("10"), BuyNowPrice: &buyNow,
		OriginalCloseAt: now.Add(time.Hour), CurrentCloseAt: now.Add(time.Hour), Status: domain.LotActive,
	})
	e := newEngine(fs, now)

	r, err := e.BuyNow(context.Background(), lot.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, "accepted", r.Code)
	require.Equal(t, domain.LotSold, r.Lot.Status)
	require.True(t, r.Lot.CurrentBid.Equal(buyNow))
	require.NotNil(t, r.Lot.ClosedAt)
}
