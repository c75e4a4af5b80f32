// Package money provides the fixed-point rounding rules used by the
// invoicer package. The engine never uses float64 for
// amounts that participate in the half-up-cent identity required by
// §4.6/§8 (invoice line totals must reconstruct exactly).
package money

import "github.com/shopspring/decimal"

// RoundHalfUpCents rounds d to two decimal places using half-up
// (round-half-away-from-zero) semantics, matching §4.6: "Rounding:
// half-up to cents on every sum after multiplication".
func RoundHalfUpCents(d decimal.Decimal) decimal.Decimal {
	return roundHalfUp(d)
}

// roundHalfUp implements round-half-away-from-zero to 2 places by hand.
// Half-up and half-even differ only on exact half-cent values (0.125
// gives 0.13 here, 0.12 under half-even); 250.55*0.15=37.5825 is not
// such a value and rounds to 37.58 under either rule.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	neg := d.IsNegative()
	abs := d.Abs()
	shifted := abs.Shift(2)
	floor := shifted.Floor()
	frac := shifted.Sub(floor)
	half := decimal.NewFromFloat(0.5)
	var rounded decimal.Decimal
	if frac.GreaterThanOrEqual(half) {
		rounded = floor.Add(decimal.NewFromInt(1))
	} else {
		rounded = floor
	}
	result := rounded.Shift(-2)
	if neg {
		result = result.Neg()
	}
	return result
}

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// FromFloat builds a decimal from a float64, the representation most of
// the teacher's handlers use at the HTTP boundary.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
