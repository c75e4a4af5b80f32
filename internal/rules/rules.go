// Package rules holds the engine's pure, side-effect-free pricing and
// parsing functions (§4.1). Every function here is total and
// deterministic so it can be driven by property tests (§8).
package rules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kartnagrale/auctionhouse/internal/domain"
)

// Tier is one row of an increment or premium rules table: the range
// [Min, Max) paired with the value that applies within it. Max is nil
// for the open-ended top tier.
type Tier struct {
	Min  decimal.Decimal
	Max  *decimal.Decimal
	Step decimal.Decimal // increment step for increment tiers
	Rate decimal.Decimal // premium rate (fraction, e.g. 0.15) for premium tiers
}

// DefaultIncrementTiers implements §4.1's default increment table:
// {0-100: 5}, {100-500: 10}, {500-inf: 25}.
func DefaultIncrementTiers() []Tier {
	hundred := decimal.NewFromInt(100)
	fiveHundred := decimal.NewFromInt(500)
	return []Tier{
		{Min: decimal.Zero, Max: &hundred, Step: decimal.NewFromInt(5)},
		{Min: hundred, Max: &fiveHundred, Step: decimal.NewFromInt(10)},
		{Min: fiveHundred, Max: nil, Step: decimal.NewFromInt(25)},
	}
}

// tierFor returns the first tier whose [Min, Max) range contains amount,
// evaluated in list order — "first match wins" per §4.1.
func tierFor(amount decimal.Decimal, tiers []Tier) (Tier, bool) {
	for _, t := range tiers {
		if amount.LessThan(t.Min) {
			continue
		}
		if t.Max != nil && !amount.LessThan(*t.Max) {
			continue
		}
		return t, true
	}
	return Tier{}, false
}

// Increment returns the minimum bid step that applies at the given
// current bid amount, per §4.1 "increment(current, rules)".
func Increment(current decimal.Decimal, tiers []Tier) decimal.Decimal {
	t, ok := tierFor(current, tiers)
	if !ok {
		return decimal.Zero
	}
	return t.Step
}

// MinNextBid returns the minimum amount that would be accepted as the
// next bid on a lot, per §4.1 "min_next_bid(current, starting, rules)".
// If current is zero (no bids yet), the floor is the starting bid;
// otherwise it is current + the increment step for current's tier.
func MinNextBid(current, starting decimal.Decimal, tiers []Tier) decimal.Decimal {
	if current.IsZero() {
		return starting
	}
	return current.Add(Increment(current, tiers))
}

// Premium returns the buyer's premium fee for a winning amount, per
// §4.1 "premium(amount, rules)". Only one tier applies.
func Premium(amount decimal.Decimal, tiers []Tier) decimal.Decimal {
	return amount.Mul(PremiumRate(amount, tiers))
}

// PremiumRate returns the tier rate that applies at amount, without
// multiplying it through — the Invoicer needs the bare rate to record
// alongside the computed fee (§3 InvoiceItem.premium_rate).
func PremiumRate(amount decimal.Decimal, tiers []Tier) decimal.Decimal {
	t, ok := tierFor(amount, tiers)
	if !ok {
		return decimal.Zero
	}
	return t.Rate
}

// IncrementTiersFromDomain converts an Auction/Lot's stored increment
// table into the Tier shape these functions operate on.
func IncrementTiersFromDomain(in []domain.IncrementRule) []Tier {
	out := make([]Tier, len(in))
	for i, r := range in {
		out[i] = Tier{Min: r.Min, Max: r.Max, Step: r.Step}
	}
	return out
}

// PremiumTiersFromDomain converts an Auction's stored premium table
// into the Tier shape Premium operates on.
func PremiumTiersFromDomain(in []domain.PremiumRule) []Tier {
	out := make([]Tier, len(in))
	for i, r := range in {
		out[i] = Tier{Min: r.Min, Max: r.Max, Rate: r.Rate}
	}
	return out
}

// imageNamePatterns are tried in order; the first match wins, per §4.1.
var imageNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)-(\d+)$`),
	regexp.MustCompile(`(?i)^lot[_-]?(\d+)[_-](\d+)$`),
	regexp.MustCompile(`^(\d+)_(\d+)$`),
	regexp.MustCompile(`^(\d+)\.(\d+)$`),
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".heic": true,
}

// ParseImageFilename strips a known image extension and extracts
// (lot_number, photo_order) per §4.1's authoritative grammar. It
// returns (0, 0, false) when nothing matches, and the caller is
// responsible for treating that as "unparseable".
func ParseImageFilename(name string) (lotNumber, photoOrder int, ok bool) {
	stem := name
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		ext := strings.ToLower(name[dot:])
		if imageExtensions[ext] {
			stem = name[:dot]
		}
	}

	for _, re := range imageNamePatterns {
		m := re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		n, err1 := strconv.Atoi(m[1])
		o, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return n, o, true
	}
	return 0, 0, false
}

// FormatImageFilename is the inverse of ParseImageFilename for the
// "12-1" shape, used by round-trip property tests (§8).
func FormatImageFilename(lotNumber, photoOrder int, ext string) string {
	return strconv.Itoa(lotNumber) + "-" + strconv.Itoa(photoOrder) + ext
}
