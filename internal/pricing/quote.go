// Package pricing turns a pricing rule and a date range into a quoted total.
package pricing

import (
	"math"
	"time"

	"travelbook/internal/models"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Breakdown holds the intermediate values of a quote.
type Breakdown struct {
	UnitPrice     models.Money `json:"unit_price"`
	Nights        int          `json:"nights"`
	WeekendNights int          `json:"weekend_nights"`
	PeakSeason    bool         `json:"peak_season"`
	Subtotal      models.Money `json:"subtotal"`
	Total         models.Money `json:"total"`
}

// Quote returns the total price of a stay. It never returns a negative value.
func Quote(rule models.PricingRule, checkIn, checkOut time.Time) models.Money {
	return Calculate(rule, checkIn, checkOut).Total
}

// Calculate returns the full breakdown behind Quote.
func Calculate(rule models.PricingRule, checkIn, checkOut time.Time) Breakdown {
	unit := rule.UnitPrice()
	nights := Nights(checkIn, checkOut)
	weekend := WeekendNights(checkIn, checkOut, nights)
	peak := IsPeakSeason(checkIn)

	unitDec := decimal.NewFromInt(int64(unit))
	subtotal := unitDec.Mul(decimal.NewFromInt(int64(nights))).
		Add(unitDec.Mul(decimal.NewFromInt(int64(weekend))).Mul(ratio(rule.WeekendSurchargeRate)))

	total := subtotal
	if peak {
		total = subtotal.Mul(ratio(rule.PeakSeasonMultiplier))
	}

	return Breakdown{
		UnitPrice:     unit,
		Nights:        nights,
		WeekendNights: weekend,
		PeakSeason:    peak,
		Subtotal:      toMoney(subtotal),
		Total:         toMoney(total),
	}
}

// Nights is the ceiling of the range length in days; ranges of zero or
// negative length count as one night. Lengths are measured on the wall
// clock, so a daylight-saving shift does not add a night.
func Nights(checkIn, checkOut time.Time) int {
	d := civil(checkOut).Sub(civil(checkIn))
	if d <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(d) / float64(day)))
	if n < 1 {
		return 1
	}
	return n
}

// WeekendNights counts the nights in [checkIn, checkOut) that start on a
// Friday or Saturday, looking at no more than limit nights.
func WeekendNights(checkIn, checkOut time.Time, limit int) int {
	start, end := civil(checkIn), civil(checkOut)
	count := 0
	for i := 0; i < limit; i++ {
		night := start.AddDate(0, 0, i)
		if !night.Before(end) {
			break
		}
		if wd := night.Weekday(); wd == time.Friday || wd == time.Saturday {
			count++
		}
	}
	return count
}

// IsPeakSeason reports whether the check-in falls in December or January.
func IsPeakSeason(checkIn time.Time) bool {
	m := checkIn.Month()
	return m == time.December || m == time.January
}

// civil re-reads t's wall-clock reading in its own zone as UTC.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func ratio(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// toMoney rounds half-up to the minor unit and floors at zero.
func toMoney(d decimal.Decimal) models.Money {
	if d.IsNegative() {
		return 0
	}
	return models.Money(d.Round(0).IntPart())
}
