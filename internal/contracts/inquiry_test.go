package contracts

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInquiryContext(t *testing.T) {
	ctx, err := ParseInquiryContext("2026-02-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC), ctx.CurrentDate)

	_, err = ParseInquiryContext("2026/02/12")
	assert.True(t, errors.Is(err, ErrInvalidContext))

	assert.Error(t, InquiryContext{}.Validate())
	assert.NoError(t, ctx.Validate())
}

func TestNewInquiryContextStripsTime(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	ctx := NewInquiryContext(time.Date(2026, 2, 12, 23, 59, 0, 0, loc))
	assert.Equal(t, "2026-02-12", ctx.CurrentDate.Format(DateLayout))
	assert.Equal(t, time.UTC, ctx.CurrentDate.Location())
}

func TestIsValidContractCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"HC2610", true},
		{"RB2701", true},
		{"A2612", true},
		{"HC2613", false},
		{"HC2600", false},
		{"OI605", false},
		{"hc2610", false},
		{"2610", false},
		{"HC26100", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidContractCode(tt.code))
		})
	}
}

func TestInquiryQuote_Violations(t *testing.T) {
	ctx := NewInquiryContext(time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name  string
		quote InquiryQuote
		want  int
	}{
		{"empty quote", InquiryQuote{}, 0},
		{
			name: "fully resolved",
			quote: InquiryQuote{
				ContractCode: Ptr("HC2610"),
				CallPut:      Ptr(Call),
				BuySell:      Ptr(CustomerBuys),
				StrikeOffset: Ptr(0.0),
				ExpireDate:   Ptr("2026-03-12"),
			},
			want: 0,
		},
		{"strike and offset", InquiryQuote{Strike: Ptr(3500.0), StrikeOffset: Ptr(-30.0)}, 1},
		{"bad enums", InquiryQuote{CallPut: Ptr(CallPut(3)), BuySell: Ptr(BuySell(0))}, 2},
		{"past expiry", InquiryQuote{ExpireDate: Ptr("2026-02-11")}, 1},
		{"same-day expiry", InquiryQuote{ExpireDate: Ptr("2026-02-12")}, 0},
		{"malformed expiry", InquiryQuote{ExpireDate: Ptr("2026-02-30")}, 1},
		{"malformed contract", InquiryQuote{ContractCode: Ptr("OI605")}, 1},
		{"non-positive strike", InquiryQuote{Strike: Ptr(0.0)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.quote.Violations(ctx), tt.want)
		})
	}
}

func TestInquiryQuote_JSONFieldOrder(t *testing.T) {
	q := InquiryQuote{
		ContractCode: Ptr("HC2610"),
		CallPut:      Ptr(Put),
		BuySell:      Ptr(CustomerSells),
		StrikeOffset: Ptr(-30.0),
	}

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t,
		`{"contract_code":"HC2610","call_put":2,"buy_sell":-1,"strike":null,"strike_offset":-30,"underlying_price":null,"expire_date":null}`,
		string(data))

	q.Quantity = Ptr(10.0)
	data, err = json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"quantity":10`)
}

func TestInquiryQuote_NullFields(t *testing.T) {
	q := InquiryQuote{ContractCode: Ptr("HC2610"), Strike: Ptr(3500.0)}
	assert.Equal(t, []string{"call_put", "buy_sell", "expire_date"}, q.NullFields())
	assert.False(t, q.IsEmpty())
	assert.True(t, (&InquiryQuote{}).IsEmpty())
}

func TestBuySell_Flip(t *testing.T) {
	assert.Equal(t, CustomerSells, CustomerBuys.Flip())
	assert.Equal(t, CustomerBuys, CustomerSells.Flip())
}
