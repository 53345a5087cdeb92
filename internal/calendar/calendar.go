// Package calendar holds the date arithmetic behind relative expiries.
//
// All functions operate on calendar dates (midnight UTC) and are pure.
// Trading days are weekdays only; there is no exchange holiday calendar.
package calendar

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
)

// DaysIn returns the number of days in the given month
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsTradingDay reports whether d is a weekday
func IsTradingDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddMonths adds floor(months) calendar months, clamping the day to the
// target month's end, then adds the fractional remainder as
// round(frac * days-in-month) natural days of the month reached.
func AddMonths(start time.Time, months float64) time.Time {
	start = contracts.DateOnly(start)

	whole := math.Floor(months)
	frac := decimal.NewFromFloat(months).Sub(decimal.NewFromFloat(whole))

	total := int(start.Month()) - 1 + int(whole)
	year := start.Year() + floorDiv(total, 12)
	month := time.Month(floorMod(total, 12) + 1)

	day := start.Day()
	if last := DaysIn(year, month); day > last {
		day = last
	}
	out := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	if frac.IsZero() {
		return out
	}

	monthLen := decimal.NewFromInt(int64(DaysIn(out.Year(), out.Month())))
	extra := frac.Mul(monthLen).Round(0).IntPart()
	return out.AddDate(0, 0, int(extra))
}

// AddNaturalDays adds days without skipping anything
func AddNaturalDays(start time.Time, days int) time.Time {
	return contracts.DateOnly(start).AddDate(0, 0, days)
}

// AddTradingDays walks forward one day at a time and counts only weekdays.
// A non-positive count returns start unchanged.
func AddTradingDays(start time.Time, days int) time.Time {
	d := contracts.DateOnly(start)
	for remaining := days; remaining > 0; {
		d = d.AddDate(0, 0, 1)
		if IsTradingDay(d) {
			remaining--
		}
	}
	return d
}

// Format renders d as YYYY-MM-DD
func Format(d time.Time) string {
	return d.Format(contracts.DateLayout)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
