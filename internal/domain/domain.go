// Package domain holds the §3 data model as plain Go types: the
// entities and their status enums. It has no constructors or
// validators; the engine, closer, importer and store enforce the
// invariants when they create and update these values.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole enumerates the identity roles referenced by id only; the
// engine never issues or validates sessions (out of scope, §1).
type UserRole string

const (
	RoleGuest  UserRole = "guest"
	RoleBidder UserRole = "bidder"
	RoleStaff  UserRole = "staff"
	RoleAdmin  UserRole = "admin"
)

// AuctionStatus is the Auction lifecycle per §3: draft -> published ->
// active -> closed, monotonic.
type AuctionStatus string

const (
	AuctionDraft     AuctionStatus = "draft"
	AuctionPublished AuctionStatus = "published"
	AuctionActive    AuctionStatus = "active"
	AuctionClosed    AuctionStatus = "closed"
)

// LotStatus is the Lot lifecycle per §3 (I-L4): pending -> active ->
// {sold|unsold|withdrawn}, never backward.
type LotStatus string

const (
	LotPending    LotStatus = "pending"
	LotActive     LotStatus = "active"
	LotClosed     LotStatus = "closed"
	LotSold       LotStatus = "sold"
	LotUnsold     LotStatus = "unsold"
	LotWithdrawn  LotStatus = "withdrawn"
)

// BidType distinguishes manually placed bids from proxy auto-bids
// written by the engine on a bidder's behalf (§3 Bid).
type BidType string

const (
	BidManual BidType = "manual"
	BidProxy  BidType = "proxy"
)

// BidLifecycleStatus labels a Bid row once its lot closes (§4.5 step 3,
// §9 "pinned to lot close").
type BidLifecycleStatus string

const (
	BidStatusOpen BidLifecycleStatus = ""
	BidStatusWon  BidLifecycleStatus = "won"
	BidStatusLost BidLifecycleStatus = "lost"
)

// AuditKind enumerates the append-only audit event kinds from §3.
type AuditKind string

const (
	EventBidPlaced        AuditKind = "bid_placed"
	EventBidRejected      AuditKind = "bid_rejected"
	EventProxyTriggered   AuditKind = "proxy_triggered"
	EventOutbidOccurred   AuditKind = "outbid_occurred"
	EventSoftCloseTrig    AuditKind = "soft_close_triggered"
	EventLotClosed        AuditKind = "lot_closed"
	EventReserveMet       AuditKind = "reserve_met"
	EventBuyNowExecuted   AuditKind = "buy_now_executed"
)

// IncrementRule is one {min, max|inf, step} tier (§3 Auction.increment_rules).
type IncrementRule struct {
	Min  decimal.Decimal `json:"min"`
	Max  *decimal.Decimal `json:"max,omitempty"`
	Step decimal.Decimal `json:"step"`
}

// PremiumRule is one {min, max|inf, rate} tier (§3 Auction.premium_rules).
type PremiumRule struct {
	Min  decimal.Decimal `json:"min"`
	Max  *decimal.Decimal `json:"max,omitempty"`
	Rate decimal.Decimal `json:"rate"`
}

// Auction groups lots with timing, soft-close parameters, and rule
// tables (§3 Auction).
type Auction struct {
	ID               string
	Title            string
	StartAt          time.Time
	EndAt            time.Time
	SoftCloseEnabled bool
	TriggerWindow    time.Duration
	Extension        time.Duration
	IncrementRules   []IncrementRule
	PremiumRules     []PremiumRule
	TaxRate          decimal.Decimal
	TaxEnabled       bool
	Status           AuctionStatus
	CreatedAt        time.Time
}

// Lot belongs to exactly one Auction (§3 Lot). CurrentCloseAt only ever
// grows (I-L1).
type Lot struct {
	ID                      string
	AuctionID               string
	LotNumber               int
	Title                   string
	Description             string
	Category                string
	Condition               string
	StartingBid             decimal.Decimal
	ReservePrice            *decimal.Decimal
	BuyNowPrice             *decimal.Decimal
	IncrementRulesOverride  []IncrementRule
	ShippingAmount          decimal.Decimal
	OriginalCloseAt         time.Time
	CurrentCloseAt          time.Time
	ExtensionCount          int
	Status                  LotStatus
	CurrentBid              decimal.Decimal
	CurrentBidderID         *string
	BidCount                int
	ReserveMet              bool
	ClosedAt                *time.Time
	CreatedAt               time.Time
}

// EffectiveIncrementRules returns the lot's override tiers if set,
// else falls back to the auction's table (§3 Lot.increment_rules_override).
func (l Lot) EffectiveIncrementRules(auctionRules []IncrementRule) []IncrementRule {
	if len(l.IncrementRulesOverride) > 0 {
		return l.IncrementRulesOverride
	}
	return auctionRules
}

// Bid is an append-only record of any amount ever set as the live bid
// (§3 Bid). Only IsWinning, MaxBidActive and lifecycle Status mutate
// after insert (I-B1).
type Bid struct {
	ID               string
	LotID            string
	BidderID         string
	Amount           decimal.Decimal
	Type             BidType
	MaxBid           *decimal.Decimal
	MaxBidActive     bool
	IsWinning        bool
	Status           BidLifecycleStatus
	BuyNow           bool
	PreviousAmount   decimal.Decimal
	PreviousBidderID *string
	OutbidAt         *time.Time
	CreatedAt        time.Time
}

// AuditEvent is an append-only record of one engine decision (§3 AuditEvent).
type AuditEvent struct {
	ID              string
	Kind            AuditKind
	LotID           string
	AuctionID       string
	BidderID        *string
	PreviousAmount  *decimal.Decimal
	NewAmount       *decimal.Decimal
	ResultCode      string
	ResultMessage   string
	Snapshot        []byte // JSON snapshot
	CreatedAt       time.Time
}

// WatchlistEntry is a (user, lot) membership pair; add/remove is
// idempotent (§3 Watchlist).
type WatchlistEntry struct {
	UserID    string
	LotID     string
	CreatedAt time.Time
}

// InvoicePaymentStatus / InvoiceFulfillmentStatus track post-generation
// state; monetary fields never change after generation (§3 Invoice).
type InvoicePaymentStatus string
type InvoiceFulfillmentStatus string

const (
	PaymentUnpaid   InvoicePaymentStatus = "unpaid"
	PaymentPaid     InvoicePaymentStatus = "paid"
	PaymentRefunded InvoicePaymentStatus = "refunded"
)

const (
	FulfillmentPending   InvoiceFulfillmentStatus = "pending"
	FulfillmentShipped   InvoiceFulfillmentStatus = "shipped"
	FulfillmentCollected InvoiceFulfillmentStatus = "collected"
)

// InvoiceItem captures one winning lot's contribution to an Invoice
// (§3 InvoiceItem).
type InvoiceItem struct {
	ID              string
	InvoiceID       string
	LotID           string
	LotNumber       int
	WinningBid      decimal.Decimal
	PremiumRate     decimal.Decimal
	PremiumAmount   decimal.Decimal
	TaxRate         decimal.Decimal
	TaxAmount       decimal.Decimal
	ShippingAmount  decimal.Decimal
	LineTotal       decimal.Decimal
}

// Invoice is generated exactly once per (auction, winning bidder) (§3 Invoice).
type Invoice struct {
	ID                 string
	Number             string
	AuctionID          string
	BidderID           string
	Subtotal           decimal.Decimal
	Premium            decimal.Decimal
	Tax                decimal.Decimal
	Shipping           decimal.Decimal
	Total              decimal.Decimal
	PaymentStatus      InvoicePaymentStatus
	FulfillmentStatus  InvoiceFulfillmentStatus
	Items              []InvoiceItem
	CreatedAt          time.Time
}

// ImportRowOutcome labels the per-row result of a lot CSV import.
type ImportRowOutcome string

const (
	ImportRowOK      ImportRowOutcome = "ok"
	ImportRowError   ImportRowOutcome = "error"
)

// ImportBatch describes one CSV import attempt (§3 ImportBatch).
type ImportBatch struct {
	ID          string
	AuctionID   string
	TotalRows   int
	Inserted    int
	RowErrors   []ImportRowError
	CreatedAt   time.Time
}

// ImportRowError is one failed CSV row with its field-level problems.
type ImportRowError struct {
	Row     int
	Fields  map[string]string
}

// ImageMappingStatus labels the outcome of filename-to-lot matching (§4.7).
type ImageMappingStatus string

const (
	ImageMatched   ImageMappingStatus = "matched"
	ImageUnmatched ImageMappingStatus = "unmatched"
	ImageConflict  ImageMappingStatus = "conflict"
	ImageManual    ImageMappingStatus = "manual"
)

// ImageMapping is one uploaded filename's matching outcome (§3 ImageMapping).
type ImageMapping struct {
	ID         string
	AuctionID  string
	Filename   string
	StoredURL  string
	LotID      *string
	PhotoOrder *int
	Status     ImageMappingStatus
	Reason     string
	CreatedAt  time.Time
}
