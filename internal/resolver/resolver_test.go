package resolver

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/legs"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ctxOn(y int, m time.Month, d int) contracts.InquiryContext {
	return contracts.NewInquiryContext(day(y, m, d))
}

// leg scans text as a single leg
func leg(text string) legs.Leg {
	return legs.Leg{Text: text, End: len(text), Spans: legs.NewScanner(keywords.Default()).Scan(text)}
}

func TestInferContractYear_AllMonths(t *testing.T) {
	for cm := 1; cm <= 12; cm++ {
		current := day(2026, time.Month(cm), 15)
		for m := 1; m <= 12; m++ {
			want := 2026
			if m < cm {
				want = 2027
			}
			assert.Equal(t, want, InferContractYear(current, m), "current month %d, target %d", cm, m)

			code, err := BuildContractCode(current, "hc", m, 0)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("HC%02d%02d", want%100, m), code)
		}
	}
}

func TestBuildContractCode(t *testing.T) {
	tests := []struct {
		name    string
		current time.Time
		product string
		month   int
		year    int
		want    string
	}{
		{"month only", day(2026, 2, 12), "hc", 10, 0, "HC2610"},
		{"month only rolls", day(2026, 11, 30), "hc", 1, 0, "HC2701"},
		{"four digit year", day(2026, 11, 30), "hc", 1, 2028, "HC2801"},
		{"two digit year", day(2026, 2, 12), "rb", 5, 27, "RB2705"},
		{"single digit year", day(2026, 2, 12), "oi", 5, 6, "OI2605"},
		{"single digit year wraps decade", day(2026, 2, 12), "oi", 5, 5, "OI3505"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildContractCode(tt.current, tt.product, tt.month, tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, contracts.IsValidContractCode(got))
		})
	}
}

func TestBuildContractCode_Invalid(t *testing.T) {
	current := day(2026, 2, 12)

	for _, tc := range []struct {
		product     string
		month, year int
	}{
		{"", 5, 0},
		{"h1", 5, 0},
		{"hc", 0, 0},
		{"hc", 13, 0},
		{"hc", 5, 123},
		{"hc", 5, -1},
	} {
		_, err := BuildContractCode(current, tc.product, tc.month, tc.year)
		assert.True(t, errors.Is(err, ErrInvalidContractPart), "%+v", tc)
	}
}

func TestResolveContract(t *testing.T) {
	tests := []struct {
		text    string
		current contracts.InquiryContext
		want    *string
	}{
		{"hc10合约", ctxOn(2026, 2, 12), contracts.Ptr("HC2610")},
		{"hc01", ctxOn(2026, 11, 30), contracts.Ptr("HC2701")},
		{"HC2610", ctxOn(2026, 2, 12), contracts.Ptr("HC2610")},
		{"hc2610合约", ctxOn(2026, 2, 12), contracts.Ptr("HC2610")},
		{"热卷05合约", ctxOn(2026, 2, 12), contracts.Ptr("HC2605")},
		{"OI605 看涨", ctxOn(2026, 2, 12), contracts.Ptr("OI2605")},
		{"热卷 看涨 10月合约", ctxOn(2026, 2, 12), contracts.Ptr("HC2610")},
		{"text mentions month 10", ctxOn(2026, 2, 12), nil},
		{"螺纹 看涨", ctxOn(2026, 2, 12), nil},
		{"HC2610 RB2610", ctxOn(2026, 2, 12), nil},
		{"HC2610 看涨 HC2610", ctxOn(2026, 2, 12), contracts.Ptr("HC2610")},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveContract(leg(tt.text), tt.current).Ptr())
		})
	}
}

func TestResolveContract_YearInferenceExamples(t *testing.T) {
	got := ResolveContract(leg("HC10"), ctxOn(2026, 2, 12))
	require.True(t, got.Valid)
	assert.Equal(t, "HC2610", got.Value)
	assert.Equal(t, Computed, got.Source)

	got = ResolveContract(leg("HC1"), ctxOn(2026, 11, 5))
	require.True(t, got.Valid)
	assert.Equal(t, "HC2701", got.Value)
}

func TestNormalizeContractCode(t *testing.T) {
	code, ok := NormalizeContractCode("hc10", day(2026, 2, 12), keywords.Default())
	assert.True(t, ok)
	assert.Equal(t, "HC2610", code)

	code, ok = NormalizeContractCode(" hc2610 ", day(2026, 2, 12), keywords.Default())
	assert.True(t, ok)
	assert.Equal(t, "HC2610", code)

	_, ok = NormalizeContractCode("hello", day(2026, 2, 12), keywords.Default())
	assert.False(t, ok)
}

func TestResolveDirection(t *testing.T) {
	tables := keywords.Default()

	tests := []struct {
		text string
		want *contracts.BuySell
	}{
		{"客户买 HC2610 看涨", contracts.Ptr(contracts.CustomerBuys)},
		{"客户卖出 HC2610", contracts.Ptr(contracts.CustomerSells)},
		{"我们卖 HC2610 看涨", contracts.Ptr(contracts.CustomerBuys)},
		{"卖给你 平值看涨", contracts.Ptr(contracts.CustomerBuys)},
		{"我方买 HC2610", contracts.Ptr(contracts.CustomerSells)},
		{"HC2610 offer", contracts.Ptr(contracts.CustomerBuys)},
		{"HC2610 BID", contracts.Ptr(contracts.CustomerSells)},
		{"买入 看涨", contracts.Ptr(contracts.CustomerBuys)},
		{"卖出 看跌", contracts.Ptr(contracts.CustomerSells)},
		// direct perspective outranks counterparty
		{"客户买，我们卖", contracts.Ptr(contracts.CustomerBuys)},
		{"客户卖 offer", contracts.Ptr(contracts.CustomerSells)},
		// counterparty outranks bare verbs
		{"我们买 买入", contracts.Ptr(contracts.CustomerSells)},
		// same class, both directions
		{"we buy and we sell", nil},
		{"客户买 客户卖", nil},
		{"bid offer", nil},
		{"HC2610 看涨", nil},
		{"forbidden offerings", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDirection(leg(tt.text), tables).Ptr())
		})
	}
}

func TestResolveOptionType(t *testing.T) {
	tables := keywords.Default()

	tests := []struct {
		text string
		want *contracts.CallPut
	}{
		{"HC2610 看涨", contracts.Ptr(contracts.Call)},
		{"认购期权", contracts.Ptr(contracts.Call)},
		{"HC2610 CALL", contracts.Ptr(contracts.Call)},
		{"3500C", contracts.Ptr(contracts.Call)},
		{"HC2610 看跌", contracts.Ptr(contracts.Put)},
		{"认沽", contracts.Ptr(contracts.Put)},
		{"puts", contracts.Ptr(contracts.Put)},
		{"HC2610 P", contracts.Ptr(contracts.Put)},
		{"看涨 看跌", nil},
		{"HC2610 平值", nil},
		{"C2605 虚30", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveOptionType(leg(tt.text), tables).Ptr())
		})
	}
}

func TestResolveStrike(t *testing.T) {
	tests := []struct {
		text       string
		strike     *float64
		offset     *float64
		strikeFrom string
	}{
		{"HC2610 看涨 3500 虚30", contracts.Ptr(3500.0), nil, "3500"},
		{"行权价3500 虚30", contracts.Ptr(3500.0), nil, "行权价3500"},
		{"3500C", contracts.Ptr(3500.0), nil, "3500C"},
		{"HC2610 平值看涨", nil, contracts.Ptr(0.0), ""},
		{"ATM call", nil, contracts.Ptr(0.0), ""},
		{"实50", nil, contracts.Ptr(50.0), ""},
		{"虚值 100 看跌", nil, contracts.Ptr(-100.0), ""},
		{"OTM 25.5", nil, contracts.Ptr(-25.5), ""},
		{"实值看涨", nil, nil, ""},
		{"行权价3500 行权价3600", nil, nil, ""},
		{"虚30 实30", nil, nil, ""},
		{"HC2610 看涨", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			strike, offset := ResolveStrike(leg(tt.text))
			assert.Equal(t, tt.strike, strike.Ptr())
			assert.Equal(t, tt.offset, offset.Ptr())
			assert.False(t, strike.Valid && offset.Valid)
			if tt.strikeFrom != "" {
				assert.Equal(t, tt.strikeFrom, strike.Cue)
			}
		})
	}
}

func TestResolveExpiry(t *testing.T) {
	tables := keywords.Default()

	tests := []struct {
		name    string
		text    string
		current contracts.InquiryContext
		want    *string
	}{
		{"absolute beats relative", "4月15到期 1个月", ctxOn(2026, 2, 12), contracts.Ptr("2026-04-15")},
		{"month day rolls year", "1月5日", ctxOn(2026, 11, 20), contracts.Ptr("2027-01-05")},
		{"same day stays", "2月12日", ctxOn(2026, 2, 12), contracts.Ptr("2026-02-12")},
		{"iso", "2026-04-15", ctxOn(2026, 2, 12), contracts.Ptr("2026-04-15")},
		{"slashes", "2026/4/15", ctxOn(2026, 2, 12), contracts.Ptr("2026-04-15")},
		{"dots", "2026.4.15", ctxOn(2026, 2, 12), contracts.Ptr("2026-04-15")},
		{"one month", "1个月", ctxOn(2026, 2, 12), contracts.Ptr("2026-03-12")},
		{"half month", "半个月", ctxOn(2026, 2, 12), contracts.Ptr("2026-02-26")},
		{"month and a half", "一个半月", ctxOn(2026, 2, 12), contracts.Ptr("2026-03-28")},
		{"chinese months", "三个月", ctxOn(2026, 2, 12), contracts.Ptr("2026-05-12")},
		{"natural days", "20天", ctxOn(2026, 2, 12), contracts.Ptr("2026-03-04")},
		{"composite numeral days", "二十天", ctxOn(2026, 2, 12), contracts.Ptr("2026-03-04")},
		{"weeks", "两周", ctxOn(2026, 2, 12), contracts.Ptr("2026-02-26")},
		{"trading days", "2个交易日", ctxOn(2026, 2, 12), contracts.Ptr("2026-02-16")},
		{"friday plus one trading day", "1个交易日", ctxOn(2026, 2, 13), contracts.Ptr("2026-02-16")},
		{"invalid absolute falls back", "2月30日 1个月", ctxOn(2026, 2, 12), contracts.Ptr("2026-03-12")},
		{"conflicting absolutes", "4月15日 5月15日", ctxOn(2026, 2, 12), nil},
		{"conflicting durations", "1个月 20天", ctxOn(2026, 2, 12), nil},
		{"fractional days", "1.5天", ctxOn(2026, 2, 12), nil},
		{"none", "HC2610 看涨", ctxOn(2026, 2, 12), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveExpiry(leg(tt.text), tt.current, tables).Ptr())
		})
	}
}

func TestParseExpireDate(t *testing.T) {
	current := day(2026, 2, 12)

	for in, want := range map[string]time.Time{
		"2026-04-15": day(2026, 4, 15),
		"2026/4/15":  day(2026, 4, 15),
		"2026.4.15":  day(2026, 4, 15),
		"2026年4月15日": day(2026, 4, 15),
		"4月15日":      day(2026, 4, 15),
		"1月5号":       day(2027, 1, 5),
	} {
		got, ok := ParseExpireDate(in, current)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "tomorrow", "2026-02-30", "13月1日"} {
		_, ok := ParseExpireDate(in, current)
		assert.False(t, ok, in)
	}
}

func TestChineseNumber(t *testing.T) {
	tables := keywords.Default()

	for in, want := range map[string]int{"一": 1, "两": 2, "十": 10, "十二": 12, "十五": 15, "二十": 20, "三十六": 36} {
		got, ok := ChineseNumber(in, tables)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ChineseNumber("百", tables)
	assert.False(t, ok)
}

func TestResolveQuantityAndUnderlying(t *testing.T) {
	l := leg("HC2610 看涨 10手 标的价3480")
	assert.Equal(t, contracts.Ptr(10.0), ResolveQuantity(l).Ptr())
	assert.Equal(t, contracts.Ptr(3480.0), ResolveUnderlying(l).Ptr())

	l = leg("数量: 20 @3500")
	assert.Equal(t, contracts.Ptr(20.0), ResolveQuantity(l).Ptr())
	assert.Equal(t, contracts.Ptr(3500.0), ResolveUnderlying(l).Ptr())

	l = leg("10手 20手")
	assert.Nil(t, ResolveQuantity(l).Ptr())
	assert.Nil(t, ResolveUnderlying(l).Ptr())
}

func TestFindProductCandidates(t *testing.T) {
	tables := keywords.Default()

	got := FindProductCandidates("热卷05合约，报价", tables, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "HC", got[0].ProductCode)

	got = FindProductCandidates("热轧卷板05合约", tables, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "HC", got[0].ProductCode)
	assert.Equal(t, "热轧卷板", got[0].MatchedAlias)

	got = FindProductCandidates("rb10 看跌报价", tables, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "RB", got[0].ProductCode)
	assert.Equal(t, 100, got[0].Score)

	got = FindProductCandidates("PTA 和 菜油", tables, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "TA", got[0].ProductCode)
	assert.Equal(t, "OI", got[1].ProductCode)

	for _, c := range FindProductCandidates("铜 铝 锌 黄金 白银 螺纹", tables, 2) {
		assert.GreaterOrEqual(t, c.Score, 0)
		assert.LessOrEqual(t, c.Score, 100)
	}
	assert.Len(t, FindProductCandidates("铜 铝 锌 黄金 白银 螺纹", tables, 2), 2)
	assert.Empty(t, FindProductCandidates("call put", tables, 3))
}
