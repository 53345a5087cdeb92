package resolver

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/legs"
)

// ErrInvalidContractPart is returned by BuildContractCode for unusable parts
var ErrInvalidContractPart = errors.New("invalid contract part")

var productPattern = regexp.MustCompile(`^[A-Za-z]{1,6}$`)

// ResolveContract infers CODE+YY+MM for a leg. A full contract token wins;
// otherwise a lone product plus a lone month are combined. Two different
// contracts in one leg resolve to absent.
func ResolveContract(leg legs.Leg, ctx contracts.InquiryContext) Field[string] {
	var codes distinct[string]
	computed := false

	for _, sp := range leg.SpansOf(legs.KindContract) {
		code, inferred, ok := contractFromToken(ctx.CurrentDate, sp.Group("product"), sp.Group("digits"))
		if !ok {
			continue
		}
		codes.add(code, sp.Text)
		computed = computed || inferred
	}

	if codes.count() == 0 {
		return contractFromParts(leg, ctx)
	}

	code, cue, ok := codes.single()
	if !ok {
		return Absent[string]()
	}
	src := Extracted
	if computed {
		src = Computed
	}
	return Resolved(code, src, cue)
}

// contractFromParts pairs a product mention with a month mention,
// e.g. "热卷 看涨 10月合约"
func contractFromParts(leg legs.Leg, ctx contracts.InquiryContext) Field[string] {
	var products, months distinct[string]
	for _, sp := range leg.SpansOf(legs.KindProduct) {
		products.add(sp.Group("product"), sp.Text)
	}
	for _, sp := range leg.SpansOf(legs.KindMonth) {
		m, err := strconv.Atoi(sp.Group("month"))
		if err != nil {
			continue
		}
		months.add(strconv.Itoa(m), sp.Text)
	}

	product, productCue, ok := products.single()
	if !ok {
		return Absent[string]()
	}
	month, monthCue, ok := months.single()
	if !ok {
		return Absent[string]()
	}

	m, _ := strconv.Atoi(month)
	code, err := BuildContractCode(ctx.CurrentDate, product, m, 0)
	if err != nil {
		return Absent[string]()
	}
	return Resolved(code, Computed, productCue+"+"+monthCue)
}

// contractFromToken expands the digit part of a contract token.
// inferred is true when the year was not spelled out in full.
func contractFromToken(current time.Time, product, digits string) (code string, inferred bool, ok bool) {
	switch len(digits) {
	case 1, 2:
		m, _ := strconv.Atoi(digits)
		c, err := BuildContractCode(current, product, m, 0)
		return c, true, err == nil
	case 3:
		d, _ := strconv.Atoi(digits[:1])
		m, _ := strconv.Atoi(digits[1:])
		c, err := BuildContractCode(current, product, m, nearestYearEndingIn(current.Year(), d))
		return c, true, err == nil
	case 4:
		code = strings.ToUpper(product) + digits
		return code, false, contracts.IsValidContractCode(code)
	}
	return "", false, false
}

// BuildContractCode assembles CODE+YY+MM from parts.
//
// year == 0 infers the year from current: the current year when month is
// not before the current month, otherwise the next year. A one-digit year
// (exchange style, OI605) means the nearest year >= the current year that
// ends in that digit. Two-digit years are 20YY; four-digit years are used
// as given.
func BuildContractCode(current time.Time, product string, month, year int) (string, error) {
	product = strings.TrimSpace(product)
	if !productPattern.MatchString(product) {
		return "", fmt.Errorf("%w: product code %q", ErrInvalidContractPart, product)
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month %d", ErrInvalidContractPart, month)
	}

	switch {
	case year == 0:
		year = InferContractYear(current, month)
	case year > 0 && year < 10:
		year = nearestYearEndingIn(current.Year(), year)
	case year >= 10 && year < 100:
		year += 2000
	case year >= 1000 && year <= 9999:
	default:
		return "", fmt.Errorf("%w: year %d", ErrInvalidContractPart, year)
	}

	return fmt.Sprintf("%s%02d%02d", strings.ToUpper(product), year%100, month), nil
}

// InferContractYear returns the current year when month >= the current
// month, otherwise the following year
func InferContractYear(current time.Time, month int) int {
	if month >= int(current.Month()) {
		return current.Year()
	}
	return current.Year() + 1
}

// NormalizeContractCode canonicalizes a short or full contract token
// ("hc10", "hc2610", "热卷10", "OI605") against current
func NormalizeContractCode(raw string, current time.Time, tables *keywords.Tables) (string, bool) {
	leg := legs.Leg{Text: strings.TrimSpace(raw)}
	leg.Spans = legs.NewScanner(tables).Scan(leg.Text)

	f := ResolveContract(leg, contracts.NewInquiryContext(current))
	return f.Value, f.Valid
}

func nearestYearEndingIn(from, digit int) int {
	y := from
	for y%10 != digit {
		y++
	}
	return y
}
