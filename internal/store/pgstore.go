package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kartnagrale/auctionhouse/internal/domain"
)

// PgStore is the pgx-backed Store implementation, grounded on
// orange-city-mart's db.Pool usage and auction.go's FOR UPDATE
// per-row locking pattern, generalized to lock the lot row (rather
// than auction+wallet rows) for the duration of a bid decision.
type PgStore struct {
	Pool *pgxpool.Pool
}

// New wraps an already-connected pgxpool.Pool.
func New(pool *pgxpool.Pool) *PgStore {
	return &PgStore{Pool: pool}
}

// Connect parses dsn and pings before returning the pool, mirroring
// orange-city-mart's db.Connect but parameterized instead of reading
// DATABASE_URL itself (cmd/server/main.go owns env lookups).
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	// Simple protocol keeps us compatible with pgbouncer-style transaction
	// poolers that don't support server-side prepared statements.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// ---- LotTx -----------------------------------------------------------

type pgLotTx struct {
	tx      pgx.Tx
	lot     domain.Lot
	auction domain.Auction
}

func (l *pgLotTx) Lot() domain.Lot         { return l.lot }
func (l *pgLotTx) Auction() domain.Auction { return l.auction }

func (l *pgLotTx) ActiveMaxBid(ctx context.Context, bidderID string) (*domain.Bid, error) {
	row := l.tx.QueryRow(ctx, `
		SELECT id, lot_id, bidder_id, amount, type, max_bid, max_bid_active,
		       is_winning, status, buy_now, previous_amount, previous_bidder_id,
		       outbid_at, created_at
		FROM bids
		WHERE lot_id = $1 AND bidder_id = $2 AND max_bid_active = true
		ORDER BY created_at DESC
		LIMIT 1`, l.lot.ID, bidderID)
	b, err := scanBid(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active max bid: %w", err)
	}
	return &b, nil
}

func (l *pgLotTx) WinningBid(ctx context.Context) (*domain.Bid, error) {
	row := l.tx.QueryRow(ctx, `
		SELECT id, lot_id, bidder_id, amount, type, max_bid, max_bid_active,
		       is_winning, status, buy_now, previous_amount, previous_bidder_id,
		       outbid_at, created_at
		FROM bids
		WHERE lot_id = $1 AND is_winning = true
		ORDER BY created_at ASC
		LIMIT 1`, l.lot.ID)
	b, err := scanBid(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("winning bid: %w", err)
	}
	return &b, nil
}

func (l *pgLotTx) ListBids(ctx context.Context) ([]domain.Bid, error) {
	rows, err := l.tx.Query(ctx, `
		SELECT id, lot_id, bidder_id, amount, type, max_bid, max_bid_active,
		       is_winning, status, buy_now, previous_amount, previous_bidder_id,
		       outbid_at, created_at
		FROM bids
		WHERE lot_id = $1
		ORDER BY created_at ASC`, l.lot.ID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()
	return scanBids(rows)
}

func (l *pgLotTx) InsertBid(ctx context.Context, b domain.Bid) (domain.Bid, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	row := l.tx.QueryRow(ctx, `
		INSERT INTO bids (id, lot_id, bidder_id, amount, type, max_bid, max_bid_active,
		                   is_winning, status, buy_now, previous_amount, previous_bidder_id,
		                   outbid_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, COALESCE($14, now()))
		RETURNING created_at`,
		b.ID, b.LotID, b.BidderID, b.Amount, b.Type, b.MaxBid, b.MaxBidActive,
		b.IsWinning, b.Status, b.BuyNow, b.PreviousAmount, b.PreviousBidderID,
		b.OutbidAt, nullTime(b.CreatedAt),
	)
	if err := row.Scan(&b.CreatedAt); err != nil {
		return domain.Bid{}, fmt.Errorf("insert bid: %w", err)
	}
	return b, nil
}

func (l *pgLotTx) MarkOutbid(ctx context.Context, bidID string, at time.Time) error {
	_, err := l.tx.Exec(ctx, `
		UPDATE bids SET is_winning = false, outbid_at = $2 WHERE id = $1`, bidID, at)
	if err != nil {
		return fmt.Errorf("mark outbid: %w", err)
	}
	return nil
}

func (l *pgLotTx) SetMaxBidActive(ctx context.Context, bidID string, active bool) error {
	_, err := l.tx.Exec(ctx, `UPDATE bids SET max_bid_active = $2 WHERE id = $1`, bidID, active)
	if err != nil {
		return fmt.Errorf("set max bid active: %w", err)
	}
	return nil
}

func (l *pgLotTx) SetBidLifecycleStatus(ctx context.Context, bidID string, status domain.BidLifecycleStatus) error {
	_, err := l.tx.Exec(ctx, `UPDATE bids SET status = $2 WHERE id = $1`, bidID, string(status))
	if err != nil {
		return fmt.Errorf("set bid lifecycle status: %w", err)
	}
	return nil
}

func (l *pgLotTx) UpdateLot(ctx context.Context, lot domain.Lot) error {
	_, err := l.tx.Exec(ctx, `
		UPDATE lots SET
			current_bid = $2, current_bidder_id = $3, bid_count = $4,
			reserve_met = $5, current_close_at = $6, extension_count = $7,
			status = $8, closed_at = $9
		WHERE id = $1`,
		lot.ID, lot.CurrentBid, lot.CurrentBidderID, lot.BidCount,
		lot.ReserveMet, lot.CurrentCloseAt, lot.ExtensionCount,
		lot.Status, lot.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	l.lot = lot
	return nil
}

func (l *pgLotTx) InsertAudit(ctx context.Context, e domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := l.tx.Exec(ctx, `
		INSERT INTO audit_events (id, kind, lot_id, auction_id, bidder_id,
		                           previous_amount, new_amount, result_code,
		                           result_message, snapshot, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())`,
		e.ID, e.Kind, e.LotID, e.AuctionID, e.BidderID,
		e.PreviousAmount, e.NewAmount, e.ResultCode, e.ResultMessage, e.Snapshot,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// WithLotTx begins a transaction, locks the lot row FOR UPDATE, loads
// its parent auction, runs fn, and commits. Any error from fn rolls
// the transaction back; a pgx serialization-failure error (SQLSTATE
// 40001) is surfaced as ErrAborted so the engine's retry loop (§5) can
// re-enter cleanly.
func (s *PgStore) WithLotTx(ctx context.Context, lotID string, fn func(ctx context.Context, tx LotTx) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	lot, err := scanLotRow(tx.QueryRow(ctx, lotSelectSQL+" WHERE id = $1 FOR UPDATE", lotID))
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock lot: %w", err)
	}

	auction, err := scanAuctionRow(tx.QueryRow(ctx, auctionSelectSQL+" WHERE id = $1", lot.AuctionID))
	if err != nil {
		return fmt.Errorf("load auction: %w", err)
	}

	ltx := &pgLotTx{tx: tx, lot: lot, auction: auction}
	if err := fn(ctx, ltx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return ErrAborted
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

// ---- Auctions ----------------------------------------------------------

const auctionSelectSQL = `
	SELECT id, title, start_at, end_at, soft_close_enabled, trigger_window_seconds,
	       extension_seconds, increment_rules, premium_rules, tax_rate, tax_enabled,
	       status, created_at
	FROM auctions`

func (s *PgStore) CreateAuction(ctx context.Context, a domain.Auction) (domain.Auction, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	incJSON, err := json.Marshal(a.IncrementRules)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("marshal increment rules: %w", err)
	}
	premJSON, err := json.Marshal(a.PremiumRules)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("marshal premium rules: %w", err)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO auctions (id, title, start_at, end_at, soft_close_enabled,
		                       trigger_window_seconds, extension_seconds, increment_rules,
		                       premium_rules, tax_rate, tax_enabled, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now())
		RETURNING created_at`,
		a.ID, a.Title, a.StartAt, a.EndAt, a.SoftCloseEnabled,
		int64(a.TriggerWindow.Seconds()), int64(a.Extension.Seconds()), incJSON,
		premJSON, a.TaxRate, a.TaxEnabled, a.Status,
	)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return domain.Auction{}, fmt.Errorf("create auction: %w", err)
	}
	return a, nil
}

func (s *PgStore) GetAuction(ctx context.Context, id string) (domain.Auction, error) {
	a, err := scanAuctionRow(s.Pool.QueryRow(ctx, auctionSelectSQL+" WHERE id = $1", id))
	if err == pgx.ErrNoRows {
		return domain.Auction{}, ErrNotFound
	}
	if err != nil {
		return domain.Auction{}, fmt.Errorf("get auction: %w", err)
	}
	return a, nil
}

func (s *PgStore) ListAuctions(ctx context.Context) ([]domain.Auction, error) {
	rows, err := s.Pool.Query(ctx, auctionSelectSQL+" ORDER BY start_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var out []domain.Auction
	for rows.Next() {
		a, err := scanAuctionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PgStore) SetAuctionStatus(ctx context.Context, id string, status domain.AuctionStatus) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE auctions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set auction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) ActivateDueAuctions(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		UPDATE auctions SET status = 'active'
		WHERE status = 'published' AND start_at <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("activate due auctions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan activated id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- Lots ----------------------------------------------------------------

const lotSelectSQL = `
	SELECT id, auction_id, lot_number, title, description, category, condition,
	       starting_bid, reserve_price, buy_now_price, increment_rules_override,
	       shipping_amount, original_close_at, current_close_at, extension_count,
	       status, current_bid, current_bidder_id, bid_count, reserve_met,
	       closed_at, created_at
	FROM lots`

func (s *PgStore) GetLot(ctx context.Context, id string) (domain.Lot, error) {
	l, err := scanLotRow(s.Pool.QueryRow(ctx, lotSelectSQL+" WHERE id = $1", id))
	if err == pgx.ErrNoRows {
		return domain.Lot{}, ErrNotFound
	}
	if err != nil {
		return domain.Lot{}, fmt.Errorf("get lot: %w", err)
	}
	return l, nil
}

func (s *PgStore) ListLotsForAuction(ctx context.Context, auctionID string) ([]domain.Lot, error) {
	rows, err := s.Pool.Query(ctx, lotSelectSQL+" WHERE auction_id = $1 ORDER BY lot_number ASC", auctionID)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	defer rows.Close()
	return scanLots(rows)
}

func (s *PgStore) LotsPastClose(ctx context.Context, now time.Time) ([]domain.Lot, error) {
	rows, err := s.Pool.Query(ctx, lotSelectSQL+`
		WHERE status = 'active' AND current_close_at <= $1
		ORDER BY current_close_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("lots past close: %w", err)
	}
	defer rows.Close()
	return scanLots(rows)
}

func (s *PgStore) SoldLotsForAuction(ctx context.Context, auctionID string) ([]domain.Lot, error) {
	rows, err := s.Pool.Query(ctx, lotSelectSQL+`
		WHERE auction_id = $1 AND status = 'sold' ORDER BY lot_number ASC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("sold lots: %w", err)
	}
	defer rows.Close()
	return scanLots(rows)
}

func (s *PgStore) AllLotsClosed(ctx context.Context, auctionID string) (bool, error) {
	var openCount int
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM lots
		WHERE auction_id = $1 AND status IN ('pending', 'active')`, auctionID,
	).Scan(&openCount)
	if err != nil {
		return false, fmt.Errorf("all lots closed: %w", err)
	}
	return openCount == 0, nil
}

// ---- Watchlist -------------------------------------------------------------

func (s *PgStore) AddWatch(ctx context.Context, userID, lotID string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO watchlist_entries (user_id, lot_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, lot_id) DO NOTHING`, userID, lotID)
	if err != nil {
		return fmt.Errorf("add watch: %w", err)
	}
	return nil
}

func (s *PgStore) RemoveWatch(ctx context.Context, userID, lotID string) error {
	_, err := s.Pool.Exec(ctx, `
		DELETE FROM watchlist_entries WHERE user_id = $1 AND lot_id = $2`, userID, lotID)
	if err != nil {
		return fmt.Errorf("remove watch: %w", err)
	}
	return nil
}

func (s *PgStore) ListWatched(ctx context.Context, userID string) ([]domain.Lot, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT l.id, l.auction_id, l.lot_number, l.title, l.description, l.category,
		       l.condition, l.starting_bid, l.reserve_price, l.buy_now_price,
		       l.increment_rules_override, l.shipping_amount, l.original_close_at,
		       l.current_close_at, l.extension_count, l.status, l.current_bid,
		       l.current_bidder_id, l.bid_count, l.reserve_met, l.closed_at, l.created_at
		FROM lots l
		JOIN watchlist_entries w ON w.lot_id = l.id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watched: %w", err)
	}
	defer rows.Close()
	return scanLots(rows)
}

// ---- Bid history -----------------------------------------------------------

func (s *PgStore) BidHistory(ctx context.Context, lotID string, limit int, before *time.Time) ([]domain.Bid, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cutoff := time.Now()
	if before != nil {
		cutoff = *before
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, lot_id, bidder_id, amount, type, max_bid, max_bid_active,
		       is_winning, status, buy_now, previous_amount, previous_bidder_id,
		       outbid_at, created_at
		FROM bids
		WHERE lot_id = $1 AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT $3`, lotID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("bid history: %w", err)
	}
	defer rows.Close()
	return scanBids(rows)
}

// ---- Import (§4.7) ----------------------------------------------------------

func (s *PgStore) LotNumbersInAuction(ctx context.Context, auctionID string) (map[int]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT lot_number, id FROM lots WHERE auction_id = $1`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("lot numbers: %w", err)
	}
	defer rows.Close()

	out := map[int]string{}
	for rows.Next() {
		var n int
		var id string
		if err := rows.Scan(&n, &id); err != nil {
			return nil, fmt.Errorf("scan lot number: %w", err)
		}
		out[n] = id
	}
	return out, rows.Err()
}

func (s *PgStore) InsertLotsBatch(ctx context.Context, auctionID string, lots []domain.Lot) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, l := range lots {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		incJSON, err := json.Marshal(l.IncrementRulesOverride)
		if err != nil {
			return fmt.Errorf("marshal lot increment override: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO lots (id, auction_id, lot_number, title, description, category,
			                   condition, starting_bid, reserve_price, buy_now_price,
			                   increment_rules_override, shipping_amount, original_close_at,
			                   current_close_at, extension_count, status, current_bid,
			                   current_bidder_id, bid_count, reserve_met, closed_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,0,$15,$16,NULL,0,false,NULL, now())`,
			l.ID, auctionID, l.LotNumber, l.Title, l.Description, l.Category, l.Condition,
			l.StartingBid, l.ReservePrice, l.BuyNowPrice, incJSON, l.ShippingAmount,
			l.OriginalCloseAt, l.CurrentCloseAt, l.Status, l.CurrentBid,
		)
		if err != nil {
			return fmt.Errorf("insert lot %d: %w", l.LotNumber, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PgStore) CreateImportBatch(ctx context.Context, b domain.ImportBatch) (domain.ImportBatch, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	errsJSON, err := json.Marshal(b.RowErrors)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("marshal row errors: %w", err)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO import_batches (id, auction_id, total_rows, inserted, row_errors, created_at)
		VALUES ($1,$2,$3,$4,$5, now())
		RETURNING created_at`, b.ID, b.AuctionID, b.TotalRows, b.Inserted, errsJSON)
	if err := row.Scan(&b.CreatedAt); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("create import batch: %w", err)
	}
	return b, nil
}

func (s *PgStore) CreateImageMappings(ctx context.Context, mappings []domain.ImageMapping) ([]domain.ImageMapping, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin image mappings: %w", err)
	}
	defer tx.Rollback(ctx)

	out := make([]domain.ImageMapping, 0, len(mappings))
	for _, m := range mappings {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO image_mappings (id, auction_id, filename, stored_url, lot_id,
			                             photo_order, status, reason, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now())
			RETURNING created_at`,
			m.ID, m.AuctionID, m.Filename, m.StoredURL, m.LotID, m.PhotoOrder, m.Status, m.Reason,
		)
		if err := row.Scan(&m.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert image mapping %s: %w", m.Filename, err)
		}
		out = append(out, m)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit image mappings: %w", err)
	}
	return out, nil
}

func (s *PgStore) ExistingImageAssignments(ctx context.Context, auctionID string) (map[[2]int]bool, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT l.lot_number, im.photo_order
		FROM image_mappings im
		JOIN lots l ON l.id = im.lot_id
		WHERE im.auction_id = $1 AND im.status IN ('matched', 'manual') AND im.photo_order IS NOT NULL`,
		auctionID)
	if err != nil {
		return nil, fmt.Errorf("existing image assignments: %w", err)
	}
	defer rows.Close()

	out := map[[2]int]bool{}
	for rows.Next() {
		var lotNumber, order int
		if err := rows.Scan(&lotNumber, &order); err != nil {
			return nil, fmt.Errorf("scan image assignment: %w", err)
		}
		out[[2]int{lotNumber, order}] = true
	}
	return out, rows.Err()
}

func (s *PgStore) SetImageMappingManual(ctx context.Context, mappingID, lotID string, order int) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE image_mappings SET lot_id = $2, photo_order = $3, status = 'manual', reason = ''
		WHERE id = $1`, mappingID, lotID, order)
	if err != nil {
		return fmt.Errorf("set image mapping manual: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Invoices (§4.6) ---------------------------------------------------------

func (s *PgStore) InvoiceExistsForAuction(ctx context.Context, auctionID string) (bool, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM invoices WHERE auction_id = $1`, auctionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("invoice exists: %w", err)
	}
	return n > 0, nil
}

func (s *PgStore) CreateInvoices(ctx context.Context, invoices []domain.Invoice) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin invoices: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, inv := range invoices {
		if inv.ID == "" {
			inv.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices (id, number, auction_id, bidder_id, subtotal, premium,
			                       tax, shipping, total, payment_status, fulfillment_status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now())`,
			inv.ID, inv.Number, inv.AuctionID, inv.BidderID, inv.Subtotal, inv.Premium,
			inv.Tax, inv.Shipping, inv.Total, inv.PaymentStatus, inv.FulfillmentStatus,
		)
		if err != nil {
			return fmt.Errorf("insert invoice %s: %w", inv.Number, err)
		}
		for _, item := range inv.Items {
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO invoice_items (id, invoice_id, lot_id, lot_number, winning_bid,
				                            premium_rate, premium_amount, tax_rate, tax_amount,
				                            shipping_amount, line_total)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				item.ID, inv.ID, item.LotID, item.LotNumber, item.WinningBid,
				item.PremiumRate, item.PremiumAmount, item.TaxRate, item.TaxAmount,
				item.ShippingAmount, item.LineTotal,
			)
			if err != nil {
				return fmt.Errorf("insert invoice item lot %d: %w", item.LotNumber, err)
			}
		}
	}
	return tx.Commit(ctx)
}

func (s *PgStore) NextInvoiceSequence(ctx context.Context) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next invoice sequence: %w", err)
	}
	return n, nil
}

// ---- scanning helpers --------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBid(row rowScanner) (domain.Bid, error) {
	var b domain.Bid
	var maxBid *decimal.Decimal
	var previousBidderID *string
	var outbidAt *time.Time
	var status string
	err := row.Scan(
		&b.ID, &b.LotID, &b.BidderID, &b.Amount, &b.Type, &maxBid, &b.MaxBidActive,
		&b.IsWinning, &status, &b.BuyNow, &b.PreviousAmount, &previousBidderID,
		&outbidAt, &b.CreatedAt,
	)
	if err != nil {
		return domain.Bid{}, err
	}
	b.MaxBid = maxBid
	b.PreviousBidderID = previousBidderID
	b.OutbidAt = outbidAt
	b.Status = domain.BidLifecycleStatus(status)
	return b, nil
}

func scanBids(rows pgx.Rows) ([]domain.Bid, error) {
	var out []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanLotRow(row rowScanner) (domain.Lot, error) {
	var l domain.Lot
	var reservePrice, buyNowPrice *decimal.Decimal
	var incJSON []byte
	var currentBidderID *string
	var closedAt *time.Time
	err := row.Scan(
		&l.ID, &l.AuctionID, &l.LotNumber, &l.Title, &l.Description, &l.Category, &l.Condition,
		&l.StartingBid, &reservePrice, &buyNowPrice, &incJSON, &l.ShippingAmount,
		&l.OriginalCloseAt, &l.CurrentCloseAt, &l.ExtensionCount, &l.Status, &l.CurrentBid,
		&currentBidderID, &l.BidCount, &l.ReserveMet, &closedAt, &l.CreatedAt,
	)
	if err != nil {
		return domain.Lot{}, err
	}
	l.ReservePrice = reservePrice
	l.BuyNowPrice = buyNowPrice
	l.CurrentBidderID = currentBidderID
	l.ClosedAt = closedAt
	if len(incJSON) > 0 {
		if err := json.Unmarshal(incJSON, &l.IncrementRulesOverride); err != nil {
			return domain.Lot{}, fmt.Errorf("unmarshal increment override: %w", err)
		}
	}
	return l, nil
}

func scanLots(rows pgx.Rows) ([]domain.Lot, error) {
	var out []domain.Lot
	for rows.Next() {
		l, err := scanLotRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanAuctionRow(row rowScanner) (domain.Auction, error) {
	var a domain.Auction
	var triggerSeconds, extensionSeconds int64
	var incJSON, premJSON []byte
	err := row.Scan(
		&a.ID, &a.Title, &a.StartAt, &a.EndAt, &a.SoftCloseEnabled, &triggerSeconds,
		&extensionSeconds, &incJSON, &premJSON, &a.TaxRate, &a.TaxEnabled, &a.Status, &a.CreatedAt,
	)
	if err != nil {
		return domain.Auction{}, err
	}
	a.TriggerWindow = time.Duration(triggerSeconds) * time.Second
	a.Extension = time.Duration(extensionSeconds) * time.Second
	if len(incJSON) > 0 {
		if err := json.Unmarshal(incJSON, &a.IncrementRules); err != nil {
			return domain.Auction{}, fmt.Errorf("unmarshal increment rules: %w", err)
		}
	}
	if len(premJSON) > 0 {
		if err := json.Unmarshal(premJSON, &a.PremiumRules); err != nil {
			return domain.Auction{}, fmt.Errorf("unmarshal premium rules: %w", err)
		}
	}
	return a, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
