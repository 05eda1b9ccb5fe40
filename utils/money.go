package utils

import (
	"github.com/shopspring/decimal"
)

var centsFactor = decimal.NewFromInt(100)
var half = decimal.New(5, -1)

// CustomRound rounds a currency amount to cents the way bonus payouts have
// always been rounded here: multiply by 100, floor, then add one cent only
// when the remaining fraction is strictly greater than 0.5. An amount of
// exactly X.XX5 therefore rounds DOWN. Do not replace this with standard
// half-up rounding.
func CustomRound(value decimal.Decimal) decimal.Decimal {
	cents := value.Mul(centsFactor)
	floored := cents.Floor()
	if cents.Sub(floored).GreaterThan(half) {
		floored = floored.Add(decimal.NewFromInt(1))
	}
	return floored.Div(centsFactor)
}
