package normalizer

import (
	"errors"
	"math"
	"strings"

	"github.com/wonny/rfqnorm/backend/internal/calendar"
	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/legs"
	"github.com/wonny/rfqnorm/backend/internal/resolver"
)

// Hints are values an upstream caller already extracted. A set hint
// overrides text inference for its field; nil fields fall back to the text.
type Hints struct {
	ContractCode *string `json:"contract_code,omitempty"`

	// parts form, used only when ContractCode is nil
	Product *string `json:"product,omitempty"`
	Month   *int    `json:"month,omitempty"`
	Year    *int    `json:"year,omitempty"`

	CallPut         *int     `json:"call_put,omitempty"`
	BuySell         *int     `json:"buy_sell,omitempty"`
	Strike          *float64 `json:"strike,omitempty"`
	StrikeOffset    *float64 `json:"strike_offset,omitempty"`
	UnderlyingPrice *float64 `json:"underlying_price,omitempty"`
	Quantity        *float64 `json:"quantity,omitempty"`

	ExpireDate          *string  `json:"expire_date,omitempty"`
	ExpireInMonths      *float64 `json:"expire_in_months,omitempty"`
	ExpireInNaturalDays *int     `json:"expire_in_natural_days,omitempty"`
	ExpireInTradingDays *int     `json:"expire_in_trading_days,omitempty"`
}

// NormalizeWithHints runs the shared Normalizer
func NormalizeWithHints(text string, ctx contracts.InquiryContext, h Hints) (contracts.InquiryQuote, error) {
	return Default().NormalizeWithHints(text, ctx, h)
}

// NormalizeWithHints resolves text as a single leg, letting hints win.
//
// Expiry precedence: expire_date hint, then expire_in_months,
// expire_in_trading_days, expire_in_natural_days, then the text (where an
// absolute date beats a relative one). A strike hint clears any offset; an
// offset hint suppresses a strike read from the text.
func (n *Normalizer) NormalizeWithHints(text string, ctx contracts.InquiryContext, h Hints) (contracts.InquiryQuote, error) {
	if err := ctx.Validate(); err != nil {
		return contracts.InquiryQuote{}, invalid("current_date", "is required")
	}
	ctx = contracts.NewInquiryContext(ctx.CurrentDate)
	snap := n.snap.Load()

	leg := legs.Leg{Text: text, End: len(text)}
	leg.Spans = snap.splitter.Scanner().Scan(text)
	r := resolveLeg(leg, ctx, snap.tables)

	if err := r.applyContractHint(h, ctx, snap); err != nil {
		return contracts.InquiryQuote{}, err
	}
	if err := r.applyDirectionHints(h); err != nil {
		return contracts.InquiryQuote{}, err
	}
	if err := r.applyPriceHints(h); err != nil {
		return contracts.InquiryQuote{}, err
	}
	if err := r.applyExpiryHints(h, ctx); err != nil {
		return contracts.InquiryQuote{}, err
	}

	q := r.quote()
	violations := enforce(&q, ctx)
	n.logLeg(leg, r, violations)
	return q, nil
}

func (r *legResult) applyContractHint(h Hints, ctx contracts.InquiryContext, snap *snapshot) error {
	if h.ContractCode != nil {
		raw := strings.TrimSpace(*h.ContractCode)
		code, ok := resolver.NormalizeContractCode(raw, ctx.CurrentDate, snap.tables)
		if !ok {
			return invalid("contract_code", "cannot read a contract from %q", raw)
		}
		r.contract = resolver.Resolved(code, resolver.Hinted, raw)
		return nil
	}

	if h.Product == nil && h.Month == nil && h.Year == nil {
		return nil
	}
	if h.Product == nil || h.Month == nil {
		return invalid("product", "product and month must be given together")
	}

	product := strings.TrimSpace(*h.Product)
	if code, ok := snap.tables.ProductCode(product); ok {
		product = code
	}
	year := 0
	if h.Year != nil {
		year = *h.Year
	}
	code, err := resolver.BuildContractCode(ctx.CurrentDate, product, *h.Month, year)
	if err != nil {
		if errors.Is(err, resolver.ErrInvalidContractPart) {
			return invalid("contract_code", "%v", err)
		}
		return err
	}
	r.contract = resolver.Resolved(code, resolver.Hinted, product)
	return nil
}

func (r *legResult) applyDirectionHints(h Hints) error {
	if h.CallPut != nil {
		cp := contracts.CallPut(*h.CallPut)
		if !cp.Valid() {
			return invalid("call_put", "must be 1 (call) or 2 (put), got %d", *h.CallPut)
		}
		r.callPut = resolver.Resolved(cp, resolver.Hinted, "")
	}
	if h.BuySell != nil {
		bs := contracts.BuySell(*h.BuySell)
		if !bs.Valid() {
			return invalid("buy_sell", "must be 1 (customer buys) or -1 (customer sells), got %d", *h.BuySell)
		}
		r.buySell = resolver.Resolved(bs, resolver.Hinted, "")
	}
	return nil
}

func (r *legResult) applyPriceHints(h Hints) error {
	switch {
	case h.Strike != nil:
		if !positive(*h.Strike) {
			return invalid("strike", "must be > 0, got %v", *h.Strike)
		}
		r.strike = resolver.Resolved(*h.Strike, resolver.Hinted, "")
		r.offset = resolver.Absent[float64]()
	case h.StrikeOffset != nil:
		if !finite(*h.StrikeOffset) {
			return invalid("strike_offset", "must be a finite number")
		}
		r.offset = resolver.Resolved(*h.StrikeOffset, resolver.Hinted, "")
		r.strike = resolver.Absent[float64]()
	}

	if h.UnderlyingPrice != nil {
		if !positive(*h.UnderlyingPrice) {
			return invalid("underlying_price", "must be > 0, got %v", *h.UnderlyingPrice)
		}
		r.underlying = resolver.Resolved(*h.UnderlyingPrice, resolver.Hinted, "")
	}
	if h.Quantity != nil {
		if !positive(*h.Quantity) {
			return invalid("quantity", "must be > 0, got %v", *h.Quantity)
		}
		r.quantity = resolver.Resolved(*h.Quantity, resolver.Hinted, "")
	}
	return nil
}

func (r *legResult) applyExpiryHints(h Hints, ctx contracts.InquiryContext) error {
	var (
		value string
		field string
		err   error
	)

	switch {
	case h.ExpireDate != nil:
		d, ok := resolver.ParseExpireDate(*h.ExpireDate, ctx.CurrentDate)
		if !ok {
			return invalid("expire_date", "cannot parse %q as a date", *h.ExpireDate)
		}
		if d.Before(ctx.CurrentDate) {
			return invalid("expire_date", "%s precedes current_date %s", calendar.Format(d), calendar.Format(ctx.CurrentDate))
		}
		value = calendar.Format(d)
	case h.ExpireInMonths != nil:
		field = "expire_in_months"
		value, err = ExpireDateByMonths(ctx.CurrentDate, *h.ExpireInMonths)
	case h.ExpireInTradingDays != nil:
		field = "expire_in_trading_days"
		value, err = ExpireDateByTradingDays(ctx.CurrentDate, *h.ExpireInTradingDays)
	case h.ExpireInNaturalDays != nil:
		field = "expire_in_natural_days"
		value, err = ExpireDateByNaturalDays(ctx.CurrentDate, *h.ExpireInNaturalDays)
	default:
		return nil
	}
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Field = field
		}
		return err
	}

	r.expiry = resolver.Resolved(value, resolver.Hinted, "")
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}
