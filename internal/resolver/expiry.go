package resolver

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rfqnorm/backend/internal/calendar"
	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/legs"
)

// relative horizons beyond ten years are treated as noise
const (
	maxMonths = 120
	maxDays   = 3660
)

var (
	isoDateString      = regexp.MustCompile(`^(\d{4})\D(\d{1,2})\D(\d{1,2})\D?$`)
	monthDayDateString = regexp.MustCompile(`^(\d{1,2})\s*月\s*(\d{1,2})\s*[日号]?$`)
)

// ResolveExpiry prefers an absolute date over any relative duration in the
// same leg. Year-less dates roll to next year once their month/day has
// passed. Durations dispatch by unit to month, natural-day or trading-day
// arithmetic. Conflicting values of the winning kind are absent.
func ResolveExpiry(leg legs.Leg, ctx contracts.InquiryContext, tables *keywords.Tables) Field[string] {
	current := contracts.DateOnly(ctx.CurrentDate)

	if dates := leg.SpansOf(legs.KindDate); len(dates) > 0 {
		var values distinct[string]
		rolled := false
		for _, sp := range dates {
			d, inferred, ok := absoluteDate(current, sp.Group("year"), sp.Group("month"), sp.Group("day"))
			if !ok {
				continue
			}
			values.add(calendar.Format(d), sp.Text)
			rolled = rolled || inferred
		}
		if values.count() > 0 {
			v, cue, ok := values.single()
			if !ok {
				return Absent[string]()
			}
			src := Extracted
			if rolled {
				src = Computed
			}
			return Resolved(v, src, cue)
		}
	}

	var values distinct[string]
	for _, sp := range leg.SpansOf(legs.KindDuration) {
		d, ok := applyDuration(current, sp, tables)
		if !ok {
			continue
		}
		values.add(calendar.Format(d), sp.Text)
	}

	v, cue, ok := values.single()
	if !ok {
		return Absent[string]()
	}
	return Resolved(v, Computed, cue)
}

// ParseExpireDate parses a caller-supplied absolute date: YYYY-MM-DD,
// YYYY/M/D, YYYY.M.D or M月D日. Year-less forms use the roll-over rule.
func ParseExpireDate(s string, current time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	current = contracts.DateOnly(current)

	if m := isoDateString.FindStringSubmatch(s); m != nil {
		d, _, ok := absoluteDate(current, m[1], m[2], m[3])
		return d, ok
	}
	if m := monthDayDateString.FindStringSubmatch(s); m != nil {
		d, _, ok := absoluteDate(current, "", m[1], m[2])
		return d, ok
	}
	return time.Time{}, false
}

// InferDateYear returns the current year unless (month, day) already
// passed this year, in which case the next year
func InferDateYear(current time.Time, month, day int) int {
	cm, cd := int(current.Month()), current.Day()
	if month < cm || (month == cm && day < cd) {
		return current.Year() + 1
	}
	return current.Year()
}

func absoluteDate(current time.Time, year, month, day string) (time.Time, bool, bool) {
	m, err := strconv.Atoi(month)
	if err != nil {
		return time.Time{}, false, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false, false
	}

	inferred := year == ""
	var y int
	if inferred {
		y = InferDateYear(current, m, d)
	} else if y, err = strconv.Atoi(year); err != nil {
		return time.Time{}, false, false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 2月30日 into March; reject instead
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false, false
	}
	return t, inferred, true
}

func applyDuration(current time.Time, sp legs.Span, tables *keywords.Tables) (time.Time, bool) {
	value, ok := durationValue(sp.Group("value"), tables)
	if !ok || value.IsNegative() {
		return time.Time{}, false
	}
	if sp.Group("half") != "" {
		value = value.Add(decimal.NewFromFloat(0.5))
	}

	switch sp.Group("unit") {
	case legs.UnitMonths:
		if value.GreaterThan(decimal.NewFromInt(maxMonths)) {
			return time.Time{}, false
		}
		months, _ := value.Float64()
		return calendar.AddMonths(current, months), true
	case legs.UnitWeeks:
		value = value.Mul(decimal.NewFromInt(7))
		fallthrough
	case legs.UnitDays:
		days, ok := wholeDays(value)
		if !ok {
			return time.Time{}, false
		}
		return calendar.AddNaturalDays(current, days), true
	case legs.UnitTrading:
		days, ok := wholeDays(value)
		if !ok {
			return time.Time{}, false
		}
		return calendar.AddTradingDays(current, days), true
	}
	return time.Time{}, false
}

func wholeDays(v decimal.Decimal) (int, bool) {
	if !v.Equal(v.Truncate(0)) || v.GreaterThan(decimal.NewFromInt(maxDays)) {
		return 0, false
	}
	return int(v.IntPart()), true
}

// durationValue reads digits, 半, or a Chinese numeral up to 九十九
func durationValue(s string, tables *keywords.Tables) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	if keywords.IsDigit(s[0]) {
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	if s == "半" {
		return decimal.NewFromFloat(0.5), true
	}
	n, ok := ChineseNumber(s, tables)
	return decimal.NewFromInt(int64(n)), ok
}

// ChineseNumber parses 一..十二 from the tables plus the X十Y composites
func ChineseNumber(s string, tables *keywords.Tables) (int, bool) {
	if v, ok := tables.Numeral(s); ok {
		return v, true
	}

	i := strings.Index(s, "十")
	if i < 0 {
		return 0, false
	}
	tens, ones := 1, 0
	if head := s[:i]; head != "" {
		v, ok := tables.Numeral(head)
		if !ok || v > 9 {
			return 0, false
		}
		tens = v
	}
	if tail := s[i+len("十"):]; tail != "" {
		v, ok := tables.Numeral(tail)
		if !ok || v > 9 {
			return 0, false
		}
		ones = v
	}
	return tens*10 + ones, true
}
