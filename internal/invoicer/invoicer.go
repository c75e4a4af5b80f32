// Package invoicer implements the Invoicer (§4.6): once per closed
// auction, group sold lots by winning bidder and compute each
// invoice's totals with half-up-cent rounding so the reconstruction
// identity total = subtotal + premium + tax + shipping holds exactly.
package invoicer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kartnagrale/auctionhouse/internal/clock"
	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/logger"
	"github.com/kartnagrale/auctionhouse/internal/metrics"
	"github.com/kartnagrale/auctionhouse/internal/money"
	"github.com/kartnagrale/auctionhouse/internal/rules"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// ErrAlreadyGenerated is returned when invoices already exist for an
// auction (§4.6, §8 idempotence law).
var ErrAlreadyGenerated = errors.New("invoices already generated for this auction")

// Invoicer computes and persists invoices for a closed auction.
type Invoicer struct {
	Store   store.Store
	Clock   clock.Clock
	Metrics *metrics.Metrics
}

// New builds an Invoicer.
func New(s store.Store, c clock.Clock, m *metrics.Metrics) *Invoicer {
	return &Invoicer{Store: s, Clock: c, Metrics: m}
}

// GenerateInvoices is §4.6. It fails with ErrAlreadyGenerated if any
// invoice already exists for the auction, and with NotFound if the
// auction doesn't exist.
func (inv *Invoicer) GenerateInvoices(ctx context.Context, auctionID string) ([]domain.Invoice, error) {
	exists, err := inv.Store.InvoiceExistsForAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("check existing invoices: %w", err)
	}
	if exists {
		return nil, ErrAlreadyGenerated
	}

	auction, err := inv.Store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}

	sold, err := inv.Store.SoldLotsForAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("sold lots: %w", err)
	}
	if len(sold) == 0 {
		return nil, nil
	}

	byBidder := map[string][]domain.Lot{}
	for _, lot := range sold {
		if lot.CurrentBidderID == nil {
			logger.Invoicer().Error().Str("lot_id", lot.ID).Msg("sold lot missing current_bidder_id")
			continue
		}
		byBidder[*lot.CurrentBidderID] = append(byBidder[*lot.CurrentBidderID], lot)
	}

	bidderIDs := make([]string, 0, len(byBidder))
	for id := range byBidder {
		bidderIDs = append(bidderIDs, id)
	}
	sort.Strings(bidderIDs)

	premiumTiers := rules.PremiumTiersFromDomain(auction.PremiumRules)
	now := inv.Clock.Now()

	invoices := make([]domain.Invoice, 0, len(bidderIDs))
	for _, bidderID := range bidderIDs {
		lots := byBidder[bidderID]
		sort.Slice(lots, func(i, j int) bool { return lots[i].LotNumber < lots[j].LotNumber })

		seq, err := inv.Store.NextInvoiceSequence(ctx)
		if err != nil {
			return nil, fmt.Errorf("next invoice sequence: %w", err)
		}

		items := make([]domain.InvoiceItem, 0, len(lots))
		subtotal, premium, tax, shipping, total := money.Zero, money.Zero, money.Zero, money.Zero, money.Zero

		for _, lot := range lots {
			winningBid := lot.CurrentBid
			premiumRate := rules.PremiumRate(winningBid, premiumTiers)
			premiumAmount := money.RoundHalfUpCents(winningBid.Mul(premiumRate))

			taxRate := decimal.Zero
			taxAmount := money.Zero
			if auction.TaxEnabled {
				taxRate = auction.TaxRate
				taxAmount = money.RoundHalfUpCents(winningBid.Add(premiumAmount).Mul(taxRate))
			}

			lineTotal := winningBid.Add(premiumAmount).Add(taxAmount).Add(lot.ShippingAmount)

			items = append(items, domain.InvoiceItem{
				LotID: lot.ID, LotNumber: lot.LotNumber, WinningBid: winningBid,
				PremiumRate: premiumRate, PremiumAmount: premiumAmount,
				TaxRate: taxRate, TaxAmount: taxAmount,
				ShippingAmount: lot.ShippingAmount, LineTotal: lineTotal,
			})

			subtotal = subtotal.Add(winningBid)
			premium = premium.Add(premiumAmount)
			tax = tax.Add(taxAmount)
			shipping = shipping.Add(lot.ShippingAmount)
			total = total.Add(lineTotal)
		}

		number := invoiceNumber(now, seq)
		invoices = append(invoices, domain.Invoice{
			Number: number, AuctionID: auctionID, BidderID: bidderID,
			Subtotal: subtotal, Premium: premium, Tax: tax, Shipping: shipping, Total: total,
			PaymentStatus: domain.PaymentUnpaid, FulfillmentStatus: domain.FulfillmentPending,
			Items: items,
		})
	}

	if err := inv.Store.CreateInvoices(ctx, invoices); err != nil {
		return nil, fmt.Errorf("create invoices: %w", err)
	}
	if inv.Metrics != nil {
		inv.Metrics.InvoicesGenerated.Add(float64(len(invoices)))
	}
	return invoices, nil
}

// invoiceNumber formats INV-YYYYMMDD-NNNNN (§6), zero-padded to five
// digits, unique across the system via the shared sequence.
func invoiceNumber(at time.Time, seq int) string {
	return fmt.Sprintf("INV-%s-%05d", at.UTC().Format("20060102"), seq)
}
