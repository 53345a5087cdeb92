package contracts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on every boundary
const DateLayout = "2006-01-02"

// ErrInvalidContext is returned when an InquiryContext has no usable current date
var ErrInvalidContext = errors.New("invalid inquiry context")

// InquiryContext carries the reference date for one normalization call
// ⭐ SSOT: 호출마다 새로 만들고 절대 변경하지 않음
type InquiryContext struct {
	CurrentDate time.Time `json:"current_date"`
}

// NewInquiryContext strips the time of day and location from t
func NewInquiryContext(t time.Time) InquiryContext {
	return InquiryContext{CurrentDate: DateOnly(t)}
}

// ParseInquiryContext builds a context from a YYYY-MM-DD string
func ParseInquiryContext(s string) (InquiryContext, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return InquiryContext{}, fmt.Errorf("%w: current_date %q: %v", ErrInvalidContext, s, err)
	}
	return NewInquiryContext(d), nil
}

// Validate rejects a zero current date
func (c InquiryContext) Validate() error {
	if c.CurrentDate.IsZero() {
		return fmt.Errorf("%w: current_date is required", ErrInvalidContext)
	}
	return nil
}

// DateOnly normalizes t to midnight UTC of the same calendar day
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CallPut is the option type of a leg
type CallPut int

const (
	Call CallPut = 1
	Put  CallPut = 2
)

// Valid reports whether c is one of the two defined option types
func (c CallPut) Valid() bool {
	return c == Call || c == Put
}

// BuySell is the customer's direction
type BuySell int

const (
	CustomerBuys  BuySell = 1
	CustomerSells BuySell = -1
)

// Valid reports whether b is a defined direction
func (b BuySell) Valid() bool {
	return b == CustomerBuys || b == CustomerSells
}

// Flip returns the opposite direction
func (b BuySell) Flip() BuySell {
	return -b
}

var contractCodePattern = regexp.MustCompile(`^[A-Z]+[0-9]{2}(0[1-9]|1[0-2])$`)

// IsValidContractCode checks the PRODUCT+YY+MM shape
func IsValidContractCode(code string) bool {
	return contractCodePattern.MatchString(code)
}

// InquiryQuote is one normalized leg handed to the pricing engine.
// Field order and JSON names are part of the downstream contract.
type InquiryQuote struct {
	ContractCode    *string  `json:"contract_code"`
	CallPut         *CallPut `json:"call_put"`
	BuySell         *BuySell `json:"buy_sell"`
	Strike          *float64 `json:"strike"`
	StrikeOffset    *float64 `json:"strike_offset"`
	UnderlyingPrice *float64 `json:"underlying_price"`
	ExpireDate      *string  `json:"expire_date"`
	Quantity        *float64 `json:"quantity,omitempty"`
}

// Violations lists every invariant the quote breaks relative to ctx.
// An empty result means the quote can be handed downstream as is.
func (q *InquiryQuote) Violations(ctx InquiryContext) []string {
	var out []string

	if q.Strike != nil && q.StrikeOffset != nil {
		out = append(out, "strike and strike_offset are both set")
	}
	if q.Strike != nil && *q.Strike <= 0 {
		out = append(out, "strike must be > 0")
	}
	if q.BuySell != nil && !q.BuySell.Valid() {
		out = append(out, fmt.Sprintf("buy_sell %d not in {-1,1}", *q.BuySell))
	}
	if q.CallPut != nil && !q.CallPut.Valid() {
		out = append(out, fmt.Sprintf("call_put %d not in {1,2}", *q.CallPut))
	}
	if q.ContractCode != nil && !IsValidContractCode(*q.ContractCode) {
		out = append(out, fmt.Sprintf("contract_code %q is malformed", *q.ContractCode))
	}
	if q.ExpireDate != nil {
		d, err := time.Parse(DateLayout, *q.ExpireDate)
		switch {
		case err != nil:
			out = append(out, fmt.Sprintf("expire_date %q is not a calendar date", *q.ExpireDate))
		case d.Before(DateOnly(ctx.CurrentDate)):
			out = append(out, fmt.Sprintf("expire_date %s precedes current_date", *q.ExpireDate))
		}
	}

	return out
}

// IsEmpty reports whether no field was resolved
func (q *InquiryQuote) IsEmpty() bool {
	return q.ContractCode == nil && q.CallPut == nil && q.BuySell == nil &&
		q.Strike == nil && q.StrikeOffset == nil && q.UnderlyingPrice == nil &&
		q.ExpireDate == nil && q.Quantity == nil
}

// NullFields returns the JSON names of the required fields left null
func (q *InquiryQuote) NullFields() []string {
	var out []string
	if q.ContractCode == nil {
		out = append(out, "contract_code")
	}
	if q.CallPut == nil {
		out = append(out, "call_put")
	}
	if q.BuySell == nil {
		out = append(out, "buy_sell")
	}
	if q.Strike == nil && q.StrikeOffset == nil {
		out = append(out, "strike")
	}
	if q.ExpireDate == nil {
		out = append(out, "expire_date")
	}
	return out
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
