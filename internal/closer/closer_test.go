package closer_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kartnagrale/auctionhouse/internal/clock"
	"github.com/kartnagrale/auctionhouse/internal/closer"
	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// memStore is a minimal in-memory store.Store, just enough to drive
// Closer without a database. Grounded on the same shape as the
// engine package's fake; kept separate since the two packages'
// tests must not depend on each other's internals.
type memStore struct {
	auctions map[string]domain.Auction
	lots     map[string]domain.Lot
	bids     map[string][]domain.Bid
	audits   []domain.AuditEvent
}

func newMemStore() *memStore {
	return &memStore{auctions: map[string]domain.Auction{}, lots: map[string]domain.Lot{}, bids: map[string][]domain.Bid{}}
}

type memLotTx struct {
	s   *memStore
	lot domain.Lot
}

func (t *memLotTx) Lot() domain.Lot         { return t.lot }
func (t *memLotTx) Auction() domain.Auction { return t.s.auctions[t.lot.AuctionID] }
func (t *memLotTx) ActiveMaxBid(context.Context, string) (*domain.Bid, error) { return nil, nil }
func (t *memLotTx) WinningBid(ctx context.Context) (*domain.Bid, error) {
	for i, b := range t.s.bids[t.lot.ID] {
		if b.IsWinning {
			return &t.s.bids[t.lot.ID][i], nil
		}
	}
	return nil, nil
}
func (t *memLotTx) ListBids(context.Context) ([]domain.Bid, error) { return t.s.bids[t.lot.ID], nil }
func (t *memLotTx) InsertBid(ctx context.Context, b domain.Bid) (domain.Bid, error) {
	t.s.bids[t.lot.ID] = append(t.s.bids[t.lot.ID], b)
	return b, nil
}
func (t *memLotTx) MarkOutbid(context.Context, string, time.Time) error { return nil }
func (t *memLotTx) SetMaxBidActive(context.Context, string, bool) error { return nil }
func (t *memLotTx) SetBidLifecycleStatus(ctx context.Context, bidID string, status domain.BidLifecycleStatus) error {
	bids := t.s.bids[t.lot.ID]
	for i := range bids {
		if bids[i].ID == bidID {
			bids[i].Status = status
		}
	}
	return nil
}
func (t *memLotTx) UpdateLot(ctx context.Context, l domain.Lot) error {
	t.lot = l
	t.s.lots[l.ID] = l
	return nil
}
func (t *memLotTx) InsertAudit(ctx context.Context, e domain.AuditEvent) error {
	t.s.audits = append(t.s.audits, e)
	return nil
}

func (s *memStore) WithLotTx(ctx context.Context, lotID string, fn func(context.Context, store.LotTx) error) error {
	lot, ok := s.lots[lotID]
	if !ok {
		return store.ErrNotFound
	}
	return fn(ctx, &memLotTx{s: s, lot: lot})
}
func (s *memStore) CreateAuction(context.Context, domain.Auction) (domain.Auction, error) { panic("unused") }
func (s *memStore) GetAuction(ctx context.Context, id string) (domain.Auction, error)     { return s.auctions[id], nil }
func (s *memStore) ListAuctions(context.Context) ([]domain.Auction, error)                { panic("unused") }
func (s *memStore) SetAuctionStatus(ctx context.Context, id string, status domain.AuctionStatus) error {
	a := s.auctions[id]
	a.Status = status
	s.auctions[id] = a
	return nil
}
func (s *memStore) ActivateDueAuctions(context.Context, time.Time) ([]string, error) { panic("unused") }
func (s *memStore) GetLot(ctx context.Context, id string) (domain.Lot, error)         { return s.lots[id], nil }
func (s *memStore) ListLotsForAuction(ctx context.Context, auctionID string) ([]domain.Lot, error) {
	var out []domain.Lot
	for _, l := range s.lots {
		if l.AuctionID == auctionID {
			out = append(out, l)
		}
	}
	return out, nil
}
func (s *memStore) LotsPastClose(ctx context.Context, now time.Time) ([]domain.Lot, error) {
	var out []domain.Lot
	for _, l := range s.lots {
		if l.Status == domain.LotActive && !l.CurrentCloseAt.After(now) {
			out = append(out, l)
		}
	}
	return out, nil
}
func (s *memStore) SoldLotsForAuction(context.Context, string) ([]domain.Lot, error)       { panic("unused") }
func (s *memStore) AllLotsClosed(ctx context.Context, auctionID string) (bool, error) {
	for _, l := range s.lots {
		if l.AuctionID == auctionID && (l.Status == domain.LotActive || l.Status == domain.LotPending) {
			return false, nil
		}
	}
	return true, nil
}
func (s *memStore) AddWatch(context.Context, string, string) error            { panic("unused") }
func (s *memStore) RemoveWatch(context.Context, string, string) error         { panic("unused") }
func (s *memStore) ListWatched(context.Context, string) ([]domain.Lot, error) { panic("unused") }
func (s *memStore) BidHistory(context.Context, string, int, *time.Time) ([]domain.Bid, error) {
	panic("unused")
}
func (s *memStore) LotNumbersInAuction(context.Context, string) (map[int]string, error) { panic("unused") }
func (s *memStore) InsertLotsBatch(context.Context, string, []domain.Lot) error          { panic("unused") }
func (s *memStore) CreateImportBatch(context.Context, domain.ImportBatch) (domain.ImportBatch, error) {
	panic("unused")
}
func (s *memStore) CreateImageMappings(context.Context, []domain.ImageMapping) ([]domain.ImageMapping, error) {
	panic("unused")
}
func (s *memStore) ExistingImageAssignments(context.Context, string) (map[[2]int]bool, error) {
	panic("unused")
}
func (s *memStore) SetImageMappingManual(context.Context, string, string, int) error { panic("unused") }
func (s *memStore) InvoiceExistsForAuction(context.Context, string) (bool, error)    { panic("unused") }
func (s *memStore) CreateInvoices(context.Context, []domain.Invoice) error           { panic("unused") }
func (s *memStore) NextInvoiceSequence(context.Context) (int, error)                 { panic("unused") }

func TestCloseLot_ReserveNotMetClosesUnsold(t *testing.T) {
	s := newMemStore()
	now := time.Now()
	auctionID := uuid.NewString()
	s.auctions[auctionID] = domain.Auction{ID: auctionID, Status: domain.AuctionActive}

	reserve := decimal.NewFromInt(500)
	bidder := "u1"
	lot := domain.Lot{
		ID: uuid.NewString(), AuctionID: auctionID, LotNumber: 1,
		ReservePrice: &reserve, CurrentBid: decimal.NewFromInt(400), CurrentBidderID: &bidder,
		ReserveMet: false, Status: domain.LotActive, CurrentCloseAt: now,
	}
	s.lots[lot.ID] = lot
	s.bids[lot.ID] = []domain.Bid{{ID: uuid.NewString(), LotID: lot.ID, BidderID: bidder, Amount: decimal.NewFromInt(400), IsWinning: true}}

	c := closer.New(s, clock.FixedClock{At: now}, nil, nil, nil)
	result, err := c.CloseLot(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Equal(t, domain.LotUnsold, result.Status)
	require.Equal(t, domain.BidStatusLost, s.bids[lot.ID][0].Status)

	foundLotClosed := false
	for _, e := range s.audits {
		if e.Kind == domain.EventLotClosed {
			foundLotClosed = true
		}
	}
	require.True(t, foundLotClosed)
}

func TestCloseLot_IsIdempotent(t *testing.T) {
	s := newMemStore()
	now := time.Now()
	auctionID := uuid.NewString()
	s.auctions[auctionID] = domain.Auction{ID: auctionID, Status: domain.AuctionActive}

	bidder := "u1"
	lot := domain.Lot{
		ID: uuid.NewString(), AuctionID: auctionID, LotNumber: 1,
		CurrentBid: decimal.NewFromInt(100), CurrentBidderID: &bidder, ReserveMet: true,
		Status: domain.LotActive, CurrentCloseAt: now,
	}
	s.lots[lot.ID] = lot

	c := closer.New(s, clock.FixedClock{At: now}, nil, nil, nil)
	first, err := c.CloseLot(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Equal(t, domain.LotSold, first.Status)

	auditCountAfterFirst := len(s.audits)

	second, err := c.CloseLot(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.ClosedAt, second.ClosedAt)
	require.Equal(t, auditCountAfterFirst, len(s.audits), "re-closing must not write another audit event")
}
