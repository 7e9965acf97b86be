// Package money holds the ledger's balance arithmetic. Amounts are stored
// as float64 but every rule is evaluated in decimal and rounded to cents.
package money

import "github.com/shopspring/decimal"

// Cents is the number of decimal places balances are rounded to.
const Cents = 2

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Round2 rounds f to two decimal places, half away from zero.
func Round2(f float64) float64 {
	return dec(f).Round(Cents).InexactFloat64()
}

// Add returns a + b without rounding.
func Add(a, b float64) float64 {
	return dec(a).Add(dec(b)).InexactFloat64()
}

// Half returns f / 2 rounded to cents.
func Half(f float64) float64 {
	return dec(f).Div(decimal.NewFromInt(2)).Round(Cents).InexactFloat64()
}

// Spendable is what the user can actually spend: the check-in balance less
// everything already cashed out and spent elsewhere, rounded to cents and
// never negative.
func Spendable(checkInBalance, cashedOut, spent float64) float64 {
	v := dec(checkInBalance).Sub(dec(cashedOut)).Sub(dec(spent)).Round(Cents)
	if v.IsNegative() {
		return 0
	}
	return v.InexactFloat64()
}

// Covers reports whether balance can pay amount.
func Covers(balance, amount float64) bool {
	return dec(amount).LessThanOrEqual(dec(balance))
}
