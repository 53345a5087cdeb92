// Package normalizer turns one free-text option inquiry into strict quotes.
//
// Normalize is total: ambiguity never becomes an error, only a null field.
// Errors are reserved for caller contract violations in the hint and
// tool entry points (see ValidationError).
package normalizer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/legs"
	"github.com/wonny/rfqnorm/backend/internal/resolver"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
)

// Observer is notified once per Normalize call
type Observer interface {
	ObserveInquiry(quotes []contracts.InquiryQuote, dropped int, elapsed time.Duration)
}

// Normalizer holds the current keyword snapshot.
// ⭐ SSOT: 테이블 교체는 SetTables 로만 (새 스냅샷을 원자적으로 게시)
type Normalizer struct {
	snap     atomic.Pointer[snapshot]
	log      *logger.Logger
	observer Observer
}

type snapshot struct {
	tables   *keywords.Tables
	splitter *legs.Splitter
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithObserver attaches a metrics sink
func WithObserver(o Observer) Option {
	return func(n *Normalizer) { n.observer = o }
}

// New creates a Normalizer. nil tables means keywords.Default(), nil log discards.
func New(tables *keywords.Tables, log *logger.Logger, opts ...Option) *Normalizer {
	if tables == nil {
		tables = keywords.Default()
	}
	if log == nil {
		log = logger.Nop()
	}

	n := &Normalizer{log: log.Component("normalizer")}
	for _, opt := range opts {
		opt(n)
	}
	n.SetTables(tables)
	return n
}

// SetTables publishes a new table snapshot; calls in flight keep the old one
func (n *Normalizer) SetTables(tables *keywords.Tables) {
	if tables == nil {
		return
	}
	n.snap.Store(&snapshot{tables: tables, splitter: legs.NewSplitter(tables)})
}

// Tables returns the snapshot new calls will use
func (n *Normalizer) Tables() *keywords.Tables {
	return n.snap.Load().tables
}

var (
	defaultOnce       sync.Once
	defaultNormalizer *Normalizer
)

// Default returns a shared Normalizer over keywords.Default()
func Default() *Normalizer {
	defaultOnce.Do(func() {
		defaultNormalizer = New(nil, nil)
	})
	return defaultNormalizer
}

// Normalize runs the shared Normalizer
func Normalize(text string, ctx contracts.InquiryContext) []contracts.InquiryQuote {
	return Default().Normalize(text, ctx)
}

// Normalize splits text into legs and resolves every leg independently.
// The result has one quote per leg, in source order, and never fewer than one.
func (n *Normalizer) Normalize(text string, ctx contracts.InquiryContext) []contracts.InquiryQuote {
	start := time.Now()
	snap := n.snap.Load()
	ctx = contracts.NewInquiryContext(ctx.CurrentDate)

	parts := snap.splitter.Split(text)
	quotes := make([]contracts.InquiryQuote, 0, len(parts))
	dropped := 0

	for _, leg := range parts {
		r := resolveLeg(leg, ctx, snap.tables)
		q := r.quote()
		violations := enforce(&q, ctx)
		dropped += len(violations)

		n.logLeg(leg, r, violations)
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 {
		quotes = append(quotes, contracts.InquiryQuote{})
	}

	if n.observer != nil {
		n.observer.ObserveInquiry(quotes, dropped, time.Since(start))
	}
	return quotes
}

// legResult keeps provenance next to each value for debug logging
type legResult struct {
	contract   resolver.Field[string]
	callPut    resolver.Field[contracts.CallPut]
	buySell    resolver.Field[contracts.BuySell]
	strike     resolver.Field[float64]
	offset     resolver.Field[float64]
	underlying resolver.Field[float64]
	expiry     resolver.Field[string]
	quantity   resolver.Field[float64]
}

func resolveLeg(leg legs.Leg, ctx contracts.InquiryContext, tables *keywords.Tables) legResult {
	strike, offset := resolver.ResolveStrike(leg)
	return legResult{
		contract:   resolver.ResolveContract(leg, ctx),
		callPut:    resolver.ResolveOptionType(leg, tables),
		buySell:    resolver.ResolveDirection(leg, tables),
		strike:     strike,
		offset:     offset,
		underlying: resolver.ResolveUnderlying(leg),
		expiry:     resolver.ResolveExpiry(leg, ctx, tables),
		quantity:   resolver.ResolveQuantity(leg),
	}
}

func (r legResult) quote() contracts.InquiryQuote {
	return contracts.InquiryQuote{
		ContractCode:    r.contract.Ptr(),
		CallPut:         r.callPut.Ptr(),
		BuySell:         r.buySell.Ptr(),
		Strike:          r.strike.Ptr(),
		StrikeOffset:    r.offset.Ptr(),
		UnderlyingPrice: r.underlying.Ptr(),
		ExpireDate:      r.expiry.Ptr(),
		Quantity:        r.quantity.Ptr(),
	}
}

// enforce nulls every field that breaks a record invariant and returns
// the messages for the fields it dropped. strike wins over strike_offset.
func enforce(q *contracts.InquiryQuote, ctx contracts.InquiryContext) []string {
	var dropped []string

	if q.Strike != nil && *q.Strike <= 0 {
		dropped = append(dropped, "strike must be > 0")
		q.Strike = nil
	}
	if q.Strike != nil && q.StrikeOffset != nil {
		dropped = append(dropped, "strike_offset dropped: strike present")
		q.StrikeOffset = nil
	}

	dropped = append(dropped, q.Violations(ctx)...)
	if len(dropped) == 0 {
		return nil
	}

	if q.BuySell != nil && !q.BuySell.Valid() {
		q.BuySell = nil
	}
	if q.CallPut != nil && !q.CallPut.Valid() {
		q.CallPut = nil
	}
	if q.ContractCode != nil && !contracts.IsValidContractCode(*q.ContractCode) {
		q.ContractCode = nil
	}
	if q.ExpireDate != nil {
		d, err := time.Parse(contracts.DateLayout, *q.ExpireDate)
		if err != nil || d.Before(ctx.CurrentDate) {
			q.ExpireDate = nil
		}
	}
	if q.UnderlyingPrice != nil && *q.UnderlyingPrice <= 0 {
		q.UnderlyingPrice = nil
	}
	if q.Quantity != nil && *q.Quantity <= 0 {
		q.Quantity = nil
	}
	return dropped
}

func (n *Normalizer) logLeg(leg legs.Leg, r legResult, dropped []string) {
	if !n.log.DebugEnabled() {
		return
	}

	fields := map[string]interface{}{
		"leg":  leg.Index,
		"text": leg.Text,
	}
	addField(fields, "contract_code", r.contract)
	addField(fields, "call_put", r.callPut)
	addField(fields, "buy_sell", r.buySell)
	addField(fields, "strike", r.strike)
	addField(fields, "strike_offset", r.offset)
	addField(fields, "underlying_price", r.underlying)
	addField(fields, "expire_date", r.expiry)
	addField(fields, "quantity", r.quantity)
	if len(dropped) > 0 {
		fields["dropped"] = dropped
	}

	n.log.WithFields(fields).Debug("leg resolved")
}

func addField[T any](fields map[string]interface{}, name string, f resolver.Field[T]) {
	if !f.Valid {
		return
	}
	fields[name] = map[string]interface{}{
		"value":  f.Value,
		"source": string(f.Source),
		"cue":    f.Cue,
	}
}
