// Package watchlist implements add_watch/remove_watch/list_watched
// (§6): a set of (user, lot) pairs with idempotent membership changes.
package watchlist

import (
	"context"
	"fmt"

	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// Watchlist manages per-user lot watch membership.
type Watchlist struct {
	Store store.Store
}

// New builds a Watchlist.
func New(s store.Store) *Watchlist {
	return &Watchlist{Store: s}
}

// Add is idempotent: watching an already-watched lot is a no-op.
func (w *Watchlist) Add(ctx context.Context, userID, lotID string) error {
	if _, err := w.Store.GetLot(ctx, lotID); err != nil {
		return fmt.Errorf("get lot: %w", err)
	}
	return w.Store.AddWatch(ctx, userID, lotID)
}

// Remove is idempotent: removing an unwatched lot is a no-op.
func (w *Watchlist) Remove(ctx context.Context, userID, lotID string) error {
	return w.Store.RemoveWatch(ctx, userID, lotID)
}

// List returns every lot the user currently watches.
func (w *Watchlist) List(ctx context.Context, userID string) ([]domain.Lot, error) {
	return w.Store.ListWatched(ctx, userID)
}
