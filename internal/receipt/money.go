package receipt

import (
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// currency is the currency amounts are displayed in
const currency = money.USD

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// toCents converts a dollar amount to integer cents, rounding half away from
// zero. ok is false when the amount does not fit in an int64 of cents.
func toCents(amount float64) (cents int64, ok bool) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	d := decimal.NewFromFloat(amount).Shift(2).Round(0)
	if d.GreaterThan(maxCents) || d.LessThan(minCents) {
		return 0, false
	}
	return d.IntPart(), true
}

// dollars formats cents as a plain decimal string, e.g. "12.45"
func dollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// display formats cents with the currency symbol, e.g. "$12.45"
func display(cents int64) string {
	return money.New(cents, currency).Display()
}

// averageCents returns total/count rounded to the nearest cent
func averageCents(total int64, count int) int64 {
	if count == 0 {
		return 0
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(count))).Round(0).IntPart()
}
