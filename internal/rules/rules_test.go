package rules_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartnagrale/auctionhouse/internal/rules"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Scenario 1 from §8: Increment floor.
func TestMinNextBid_IncrementFloorScenario(t *testing.T) {
	tiers := rules.DefaultIncrementTiers()
	starting := d("100")

	floor := rules.MinNextBid(decimal.Zero, starting, tiers)
	assert.True(t, floor.Equal(starting))

	current := d("100")
	floor = rules.MinNextBid(current, starting, tiers)
	assert.True(t, floor.Equal(d("110")), "expected floor 110, got %s", floor)

	assert.False(t, d("105").GreaterThanOrEqual(floor), "105 should be below the floor")
	assert.True(t, d("110").GreaterThanOrEqual(floor))
}

func TestIncrement_TierBoundaries(t *testing.T) {
	tiers := rules.DefaultIncrementTiers()
	cases := []struct {
		current string
		step    string
	}{
		{"0", "5"},
		{"99.99", "5"},
		{"100", "10"},
		{"499.99", "10"},
		{"500", "25"},
		{"10000", "25"},
	}
	for _, c := range cases {
		got := rules.Increment(d(c.current), tiers)
		assert.Truef(t, got.Equal(d(c.step)), "Increment(%s) = %s, want %s", c.current, got, c.step)
	}
}

func TestPremium_SingleTierApplies(t *testing.T) {
	tiers := []rules.Tier{
		{Min: decimal.Zero, Max: nil, Rate: d("0.15")},
	}
	got := rules.Premium(d("250.55"), tiers)
	want := d("37.5825")
	assert.True(t, got.Equal(want), "got %s want %s", got, want)
}

func TestParseImageFilename_TableDriven(t *testing.T) {
	cases := []struct {
		name      string
		lot       int
		order     int
		wantMatch bool
	}{
		{"12-1.jpg", 12, 1, true},
		{"lot_12_2.PNG", 12, 2, true},
		{"12.3.webp", 12, 3, true},
		{"foo.jpg", 0, 0, false},
		{"lot-7-9.gif", 7, 9, true},
		{"LOT12_4.heic", 12, 4, true},
		{"12_8.jpeg", 12, 8, true},
		{"nope", 0, 0, false},
	}
	for _, c := range cases {
		lot, order, ok := rules.ParseImageFilename(c.name)
		require.Equalf(t, c.wantMatch, ok, "match mismatch for %q", c.name)
		if c.wantMatch {
			assert.Equal(t, c.lot, lot, c.name)
			assert.Equal(t, c.order, order, c.name)
		}
	}
}

// Round-trip law from §8: parse(format(lot, order)) round-trips.
func TestParseImageFilename_RoundTrip(t *testing.T) {
	exts := []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic"}
	for lot := 1; lot <= 20; lot++ {
		for order := 1; order <= 5; order++ {
			for _, ext := range exts {
				name := rules.FormatImageFilename(lot, order, ext)
				gotLot, gotOrder, ok := rules.ParseImageFilename(name)
				require.True(t, ok, name)
				assert.Equal(t, lot, gotLot, name)
				assert.Equal(t, order, gotOrder, name)
			}
		}
	}
}
