// Package store defines the Store collaborator (§4.2): transactional
// persistence of the §3 entities with per-lot serialization, read-your-
// writes within a transaction, atomic multi-row writes, and typed
// errors the engine uses to drive its retry loop (§5).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kartnagrale/auctionhouse/internal/domain"
)

// Sentinel errors the engine and API surface branch on (§4.2, §7).
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrAborted  = errors.New("aborted: serialization conflict, retry")
)

// LotTx is the per-lot transactional handle the engine and closer
// operate through. It is only valid for the lifetime of the callback
// passed to Store.WithLotTx: the lot row is locked (FOR UPDATE) for
// that whole duration, giving callers read-your-writes and exclusive
// access to the lot per §4.2.
type LotTx interface {
	// Lot returns the locked lot row as it stands at this point in the
	// transaction (reflects any prior UpdateLot call in the same tx).
	Lot() domain.Lot
	// Auction returns the lot's parent auction (rule tables, soft-close
	// config, tax config).
	Auction() domain.Auction

	// ActiveMaxBid returns the bidder's currently active max-bid Bid row
	// for this lot, if any (I-B3: at most one active max-bid per user).
	ActiveMaxBid(ctx context.Context, bidderID string) (*domain.Bid, error)
	// WinningBid returns the lot's current winning Bid row, if any (I-L5).
	WinningBid(ctx context.Context) (*domain.Bid, error)
	// ListBids returns every Bid row for the lot, oldest first.
	ListBids(ctx context.Context) ([]domain.Bid, error)

	// InsertBid appends a new, immutable Bid row and returns it with its
	// generated id/timestamp filled in.
	InsertBid(ctx context.Context, b domain.Bid) (domain.Bid, error)
	// MarkOutbid flips a Bid's IsWinning to false and stamps OutbidAt.
	MarkOutbid(ctx context.Context, bidID string, at time.Time) error
	// SetMaxBidActive flips a Bid's MaxBidActive flag (I-B3 exhaustion).
	SetMaxBidActive(ctx context.Context, bidID string, active bool) error
	// SetBidLifecycleStatus labels a Bid won/lost at lot close (§4.5 step 3).
	SetBidLifecycleStatus(ctx context.Context, bidID string, status domain.BidLifecycleStatus) error

	// UpdateLot persists the full lot snapshot (current_bid, bidder,
	// bid_count, reserve_met, current_close_at, extension_count, status,
	// closed_at).
	UpdateLot(ctx context.Context, l domain.Lot) error

	// InsertAudit appends an AuditEvent within the same transaction
	// (I-A1). The whole transaction aborts if this fails (§7).
	InsertAudit(ctx context.Context, e domain.AuditEvent) error
}

// Store is the full persistence surface the engine, closer, invoicer,
// importer and API surface depend on.
type Store interface {
	// WithLotTx runs fn with exclusive, serialized access to lotID's row
	// for the duration of fn (§4.2 "Per-lot serialization"). Returns
	// ErrNotFound if the lot doesn't exist, ErrAborted if the underlying
	// transaction could not commit due to a serialization conflict.
	WithLotTx(ctx context.Context, lotID string, fn func(ctx context.Context, tx LotTx) error) error

	// Auctions
	CreateAuction(ctx context.Context, a domain.Auction) (domain.Auction, error)
	GetAuction(ctx context.Context, id string) (domain.Auction, error)
	ListAuctions(ctx context.Context) ([]domain.Auction, error)
	SetAuctionStatus(ctx context.Context, id string, status domain.AuctionStatus) error
	// ActivateDueAuctions transitions published auctions whose start_at
	// has passed to active, and returns their ids.
	ActivateDueAuctions(ctx context.Context, now time.Time) ([]string, error)

	// Lots
	GetLot(ctx context.Context, id string) (domain.Lot, error)
	ListLotsForAuction(ctx context.Context, auctionID string) ([]domain.Lot, error)
	// LotsPastClose returns active lots whose current_close_at <= now,
	// for the Closer's sweep (§4.5).
	LotsPastClose(ctx context.Context, now time.Time) ([]domain.Lot, error)
	// SoldLotsForAuction returns lots with status=sold, for the Invoicer (§4.6).
	SoldLotsForAuction(ctx context.Context, auctionID string) ([]domain.Lot, error)
	// AllLotsClosed reports whether every lot of an auction has left the
	// active/pending states.
	AllLotsClosed(ctx context.Context, auctionID string) (bool, error)

	// Watchlist (§3 Watchlist; idempotent add/remove).
	AddWatch(ctx context.Context, userID, lotID string) error
	RemoveWatch(ctx context.Context, userID, lotID string) error
	ListWatched(ctx context.Context, userID string) ([]domain.Lot, error)

	// Bid history (§6 bid_history).
	BidHistory(ctx context.Context, lotID string, limit int, before *time.Time) ([]domain.Bid, error)

	// Import (§4.7).
	LotNumbersInAuction(ctx context.Context, auctionID string) (map[int]string, error)
	InsertLotsBatch(ctx context.Context, auctionID string, lots []domain.Lot) error
	CreateImportBatch(ctx context.Context, b domain.ImportBatch) (domain.ImportBatch, error)
	CreateImageMappings(ctx context.Context, mappings []domain.ImageMapping) ([]domain.ImageMapping, error)
	ExistingImageAssignments(ctx context.Context, auctionID string) (map[[2]int]bool, error) // (lotNumber, order) -> taken
	SetImageMappingManual(ctx context.Context, mappingID, lotID string, order int) error

	// Invoices (§4.6).
	InvoiceExistsForAuction(ctx context.Context, auctionID string) (bool, error)
	CreateInvoices(ctx context.Context, invoices []domain.Invoice) error
	NextInvoiceSequence(ctx context.Context) (int, error)
}
