package engine_test

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// fakeStore is an in-memory store.Store sufficient to exercise the
// engine's decision logic without a real Postgres instance. It is not
// safe for concurrent use — the engine's own per-lot transaction
// semantics are exercised for real in internal/store's testcontainers
// suite; this fake only needs to behave correctly for one caller at a
// time so the §8 end-to-end scenarios can run as fast unit tests.
type fakeStore struct {
	auctions map[string]domain.Auction
	lots     map[string]domain.Lot
	bids     map[string][]domain.Bid // lotID -> bids
	audits   []domain.AuditEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions: map[string]domain.Auction{},
		lots:     map[string]domain.Lot{},
		bids:     map[string][]domain.Bid{},
	}
}

func (f *fakeStore) seedAuction(a domain.Auction) domain.Auction {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	f.auctions[a.ID] = a
	return a
}

func (f *fakeStore) seedLot(l domain.Lot) domain.Lot {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	f.lots[l.ID] = l
	return l
}

type fakeLotTx struct {
	s   *fakeStore
	lot domain.Lot
}

func (t *fakeLotTx) Lot() domain.Lot         { return t.lot }
func (t *fakeLotTx) Auction() domain.Auction { return t.s.auctions[t.lot.AuctionID] }

func (t *fakeLotTx) ActiveMaxBid(ctx context.Context, bidderID string) (*domain.Bid, error) {
	bids := t.s.bids[t.lot.ID]
	for i := len(bids) - 1; i >= 0; i-- {
		if bids[i].BidderID == bidderID && bids[i].MaxBidActive {
			b := bids[i]
			return &b, nil
		}
	}
	return nil, nil
}

func (t *fakeLotTx) WinningBid(ctx context.Context) (*domain.Bid, error) {
	bids := t.s.bids[t.lot.ID]
	for i := range bids {
		if bids[i].IsWinning {
			b := bids[i]
			return &b, nil
		}
	}
	return nil, nil
}

func (t *fakeLotTx) ListBids(ctx context.Context) ([]domain.Bid, error) {
	out := append([]domain.Bid{}, t.s.bids[t.lot.ID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *fakeLotTx) InsertBid(ctx context.Context, b domain.Bid) (domain.Bid, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	t.s.bids[t.lot.ID] = append(t.s.bids[t.lot.ID], b)
	return b, nil
}

func (t *fakeLotTx) MarkOutbid(ctx context.Context, bidID string, at time.Time) error {
	bids := t.s.bids[t.lot.ID]
	for i := range bids {
		if bids[i].ID == bidID {
			bids[i].IsWinning = false
			bids[i].OutbidAt = &at
		}
	}
	return nil
}

func (t *fakeLotTx) SetMaxBidActive(ctx context.Context, bidID string, active bool) error {
	bids := t.s.bids[t.lot.ID]
	for i := range bids {
		if bids[i].ID == bidID {
			bids[i].MaxBidActive = active
		}
	}
	return nil
}

func (t *fakeLotTx) SetBidLifecycleStatus(ctx context.Context, bidID string, status domain.BidLifecycleStatus) error {
	bids := t.s.bids[t.lot.ID]
	for i := range bids {
		if bids[i].ID == bidID {
			bids[i].Status = status
		}
	}
	return nil
}

func (t *fakeLotTx) UpdateLot(ctx context.Context, l domain.Lot) error {
	t.lot = l
	t.s.lots[l.ID] = l
	return nil
}

func (t *fakeLotTx) InsertAudit(ctx context.Context, e domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	t.s.audits = append(t.s.audits, e)
	return nil
}

func (f *fakeStore) WithLotTx(ctx context.Context, lotID string, fn func(ctx context.Context, tx store.LotTx) error) error {
	lot, ok := f.lots[lotID]
	if !ok {
		return store.ErrNotFound
	}
	tx := &fakeLotTx{s: f, lot: lot}
	return fn(ctx, tx)
}

// The remaining Store methods are unused by the engine and are left
// unimplemented (panicking) to keep this fake short: the engine never
// calls them directly.
func (f *fakeStore) CreateAuction(context.Context, domain.Auction) (domain.Auction, error) {
	panic("not used by engine tests")
}
func (f *fakeStore) GetAuction(ctx context.Context, id string) (domain.Auction, error) {
	return f.auctions[id], nil
}
func (f *fakeStore) ListAuctions(context.Context) ([]domain.Auction, error) { panic("not used") }
func (f *fakeStore) SetAuctionStatus(context.Context, string, domain.AuctionStatus) error {
	panic("not used")
}
func (f *fakeStore) ActivateDueAuctions(context.Context, time.Time) ([]string, error) {
	panic("not used")
}
func (f *fakeStore) GetLot(ctx context.Context, id string) (domain.Lot, error) {
	l, ok := f.lots[id]
	if !ok {
		return domain.Lot{}, store.ErrNotFound
	}
	return l, nil
}
func (f *fakeStore) ListLotsForAuction(context.Context, string) ([]domain.Lot, error) { panic("not used") }
func (f *fakeStore) LotsPastClose(context.Context, time.Time) ([]domain.Lot, error)   { panic("not used") }
func (f *fakeStore) SoldLotsForAuction(context.Context, string) ([]domain.Lot, error) { panic("not used") }
func (f *fakeStore) AllLotsClosed(context.Context, string) (bool, error)              { panic("not used") }
func (f *fakeStore) AddWatch(context.Context, string, string) error                   { panic("not used") }
func (f *fakeStore) RemoveWatch(context.Context, string, string) error                { panic("not used") }
func (f *fakeStore) ListWatched(context.Context, string) ([]domain.Lot, error)        { panic("not used") }
func (f *fakeStore) BidHistory(ctx context.Context, lotID string, limit int, before *time.Time) ([]domain.Bid, error) {
	out := append([]domain.Bid{}, f.bids[lotID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
func (f *fakeStore) LotNumbersInAuction(context.Context, string) (map[int]string, error) {
	panic("not used")
}
func (f *fakeStore) InsertLotsBatch(context.Context, string, []domain.Lot) error { panic("not used") }
func (f *fakeStore) CreateImportBatch(context.Context, domain.ImportBatch) (domain.ImportBatch, error) {
	panic("not used")
}
func (f *fakeStore) CreateImageMappings(context.Context, []domain.ImageMapping) ([]domain.ImageMapping, error) {
	panic("not used")
}
func (f *fakeStore) ExistingImageAssignments(context.Context, string) (map[[2]int]bool, error) {
	panic("not used")
}
func (f *fakeStore) SetImageMappingManual(context.Context, string, string, int) error {
	panic("not used")
}
func (f *fakeStore) InvoiceExistsForAuction(context.Context, string) (bool, error) { panic("not used") }
func (f *fakeStore) CreateInvoices(context.Context, []domain.Invoice) error        { panic("not used") }
func (f *fakeStore) NextInvoiceSequence(context.Context) (int, error)              { panic("not used") }
