package legs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rfqnorm/backend/internal/keywords"
)

func scan(text string) []Span {
	return NewScanner(keywords.Default()).Scan(text)
}

func only(t *testing.T, spans []Span, kind Kind) Span {
	t.Helper()
	var found []Span
	for _, s := range spans {
		if s.Kind == kind {
			found = append(found, s)
		}
	}
	require.Len(t, found, 1, "expected exactly one %s span in %+v", kind, spans)
	return found[0]
}

func kinds(spans []Span) []Kind {
	out := make([]Kind, len(spans))
	for i, s := range spans {
		out[i] = s.Kind
	}
	return out
}

func TestScan_FullInquiry(t *testing.T) {
	spans := scan("HC2610 看涨 行权价3500 虚30 客户买 10手 1个月")

	assert.Equal(t, []Kind{KindContract, KindStrike, KindMoneyness, KindQuantity, KindDuration}, kinds(spans))

	c := only(t, spans, KindContract)
	assert.Equal(t, "HC", c.Group("product"))
	assert.Equal(t, "2610", c.Group("digits"))

	assert.Equal(t, "3500", only(t, spans, KindStrike).Group("value"))

	m := only(t, spans, KindMoneyness)
	assert.Equal(t, keywords.MoneynessOTM, m.Group("class"))
	assert.Equal(t, "30", m.Group("magnitude"))

	assert.Equal(t, "10", only(t, spans, KindQuantity).Group("value"))

	d := only(t, spans, KindDuration)
	assert.Equal(t, "1", d.Group("value"))
	assert.Equal(t, UnitMonths, d.Group("unit"))
}

func TestScan_Dates(t *testing.T) {
	tests := []struct {
		text             string
		year, month, day string
	}{
		{"2026-04-15到期", "2026", "4", "15"},
		{"2026-04-05", "2026", "4", "5"},
		{"2026/4/15", "2026", "4", "15"},
		{"2026.4.15", "2026", "4", "15"},
		{"2026年4月15日", "2026", "4", "15"},
		{"4月15到期", "", "4", "15"},
		{"1月5号", "", "1", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d := only(t, scan(tt.text), KindDate)
			assert.Equal(t, tt.year, d.Group("year"))
			assert.Equal(t, tt.month, d.Group("month"))
			assert.Equal(t, tt.day, d.Group("day"))
		})
	}
}

func TestScan_Durations(t *testing.T) {
	tests := []struct {
		text  string
		value string
		unit  string
		half  string
	}{
		{"1个月", "1", UnitMonths, ""},
		{"1.5个月", "1.5", UnitMonths, ""},
		{"半个月", "半", UnitMonths, ""},
		{"一个半月", "一", UnitMonths, "1"},
		{"三个月", "三", UnitMonths, ""},
		{"3m", "3", UnitMonths, ""},
		{"20天", "20", UnitDays, ""},
		{"20d", "20", UnitDays, ""},
		{"20个交易日", "20", UnitTrading, ""},
		{"5 trading days", "5", UnitTrading, ""},
		{"两周", "两", UnitWeeks, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d := only(t, scan(tt.text), KindDuration)
			assert.Equal(t, tt.value, d.Group("value"))
			assert.Equal(t, tt.unit, d.Group("unit"))
			assert.Equal(t, tt.half, d.Group("half"))
		})
	}
}

func TestScan_MonthNameIsNotDuration(t *testing.T) {
	spans := scan("热卷 看涨 10月合约")
	assert.Equal(t, "10", only(t, spans, KindMonth).Group("month"))
	assert.Equal(t, "HC", only(t, spans, KindProduct).Group("product"))
	assert.Empty(t, filter(spans, KindDuration))

	// digits right after the alias read as a contract month
	c := only(t, scan("热卷 10月 看涨"), KindContract)
	assert.Equal(t, "HC", c.Group("product"))
	assert.Equal(t, "10", c.Group("digits"))
}

func TestScan_Contracts(t *testing.T) {
	tests := []struct {
		text    string
		product string
		digits  string
	}{
		{"hc10合约", "HC", "10"},
		{"HC2610", "HC", "2610"},
		{"hc 2610 看涨", "HC", "2610"},
		{"热卷05合约，报价", "HC", "05"},
		{"螺纹2605", "RB", "2605"},
		{"OI605", "OI", "605"},
		{"PTA2605", "TA", "2605"},
		{"XY2605", "XY", "2605"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c := only(t, scan(tt.text), KindContract)
			assert.Equal(t, tt.product, c.Group("product"))
			assert.Equal(t, tt.digits, c.Group("digits"))
		})
	}
}

func TestScan_NoContract(t *testing.T) {
	for _, text := range []string{"call 10", "forbid 10", "HC2613", "bid 3500"} {
		t.Run(text, func(t *testing.T) {
			assert.Empty(t, filter(scan(text), KindContract))
		})
	}
}

func TestScan_SpacedOptionLetter(t *testing.T) {
	for _, text := range []string{"HC2610 P 3505", "hc2610 C 3510 客户买"} {
		t.Run(text, func(t *testing.T) {
			spans := scan(text)
			assert.Equal(t, "HC", only(t, spans, KindContract).Group("product"))
			assert.Len(t, filter(spans, KindNumber), 1)
			assert.Len(t, FindOptionTypes(text, spans, keywords.Default()), 1)
		})
	}

	// glued, the letter is still the corn / palm code
	assert.Equal(t, "P", only(t, scan("P2605 看涨"), KindContract).Group("product"))
}

func TestScan_StrikesAndMoneyness(t *testing.T) {
	s := only(t, scan("HC2610 3500C"), KindStrike)
	assert.Equal(t, "3500", s.Group("value"))
	assert.Equal(t, "C", s.Group("option"))

	s = only(t, scan("3500看跌"), KindStrike)
	assert.Equal(t, "3500", s.Group("value"))

	s = only(t, scan("strike: 3520.5"), KindStrike)
	assert.Equal(t, "3520.5", s.Group("value"))

	m := only(t, scan("平值看涨"), KindMoneyness)
	assert.Equal(t, keywords.MoneynessATM, m.Group("class"))
	assert.Equal(t, "", m.Group("magnitude"))

	m = only(t, scan("实值"), KindMoneyness)
	assert.Equal(t, keywords.MoneynessITM, m.Group("class"))
	assert.Equal(t, "", m.Group("magnitude"))

	m = only(t, scan("OTM 50"), KindMoneyness)
	assert.Equal(t, keywords.MoneynessOTM, m.Group("class"))
	assert.Equal(t, "50", m.Group("magnitude"))

	assert.Empty(t, filter(scan("实际"), KindMoneyness))
}

func TestScan_UnderlyingAndNumbers(t *testing.T) {
	assert.Equal(t, "3480", only(t, scan("标的价 3480"), KindUnderlying).Group("value"))
	assert.Equal(t, "3520", only(t, scan("@3520"), KindUnderlying).Group("value"))
	assert.Equal(t, "3500", only(t, scan("HC2610 看涨 3500"), KindNumber).Group("value"))
	assert.Empty(t, filter(scan("5%"), KindNumber))
}

func TestFindOptionTypes(t *testing.T) {
	tables := keywords.Default()

	tests := []struct {
		text string
		want []int
	}{
		{"HC2610 看涨", []int{keywords.ValueCall}},
		{"HC2610 C", []int{keywords.ValueCall}},
		{"3500P", []int{keywords.ValuePut}},
		{"认沽 put", []int{keywords.ValuePut, keywords.ValuePut}},
		{"C2605 平值", nil},
		{"HC2610 ATM", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			spans := NewScanner(tables).Scan(tt.text)
			var got []int
			for _, m := range FindOptionTypes(tt.text, spans, tables) {
				got = append(got, m.Phrase.Value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit_SingleLeg(t *testing.T) {
	text := "HC2610 看涨 平值 客户买 1个月"
	legs := Split(text, keywords.Default())

	require.Len(t, legs, 1)
	assert.Equal(t, text, legs[0].Text)
	assert.Equal(t, 0, legs[0].Start)
	assert.Equal(t, len(text), legs[0].End)
}

func TestSplit_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n；", "；;\r\n"} {
		legs := Split(text, keywords.Default())
		require.Len(t, legs, 1)
		assert.Equal(t, "", legs[0].Text)
		assert.Empty(t, legs[0].Spans)
	}
}

func TestSplit_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "hard separator",
			text: "HC2610 看涨 平值 客户买；RB2610 看跌 虚50 客户卖",
			want: []string{"HC2610 看涨 平值 客户买", "RB2610 看跌 虚50 客户卖"},
		},
		{
			name: "second distinct contract",
			text: "客户买HC2610看涨平值，RB2610看跌虚50",
			want: []string{"客户买HC2610看涨平值", "RB2610看跌虚50"},
		},
		{
			name: "distinct contracts separated by blanks only",
			text: "HC2605 看涨 3500 HC2610 看跌 3600",
			want: []string{"HC2605 看涨 3500", "HC2610 看跌 3600"},
		},
		{
			name: "trailing direction stays with its contract",
			text: "HC2605 看涨 客户买 HC2610 看跌 客户卖",
			want: []string{"HC2605 看涨 客户买", "HC2610 看跌 客户卖"},
		},
		{
			name: "leading direction moves with the next contract",
			text: "sell hc10 call buy rb10 put",
			want: []string{"sell hc10 call", "buy rb10 put"},
		},
		{
			name: "spaced option letter is not a contract",
			text: "HC2610 P 3505",
			want: []string{"HC2610 P 3505"},
		},
		{
			name: "same contract repeated stays one leg",
			text: "HC2610 看涨 平值 HC2610",
			want: []string{"HC2610 看涨 平值 HC2610"},
		},
		{
			name: "enumerated with inline preamble",
			text: "客户买入: 1. HC2610 看涨 平值 2. HC2610 看跌 虚100",
			want: []string{"客户买入 HC2610 看涨 平值", "客户买入 HC2610 看跌 虚100"},
		},
		{
			name: "enumerated with preamble line",
			text: "客户买:\n1) HC2610 看涨 平值\n2) RB2610 看跌 虚50",
			want: []string{"客户买 HC2610 看涨 平值", "客户买 RB2610 看跌 虚50"},
		},
		{
			name: "conjunction between cued pieces",
			text: "HC2610 看涨 平值 以及 看跌 虚100",
			want: []string{"HC2610 看涨 平值", "看跌 虚100"},
		},
		{
			name: "conjunction without cue on one side",
			text: "客户买 and HC2610 看涨",
			want: []string{"客户买 and HC2610 看涨"},
		},
		{
			name: "cue-less line folds into previous leg",
			text: "HC2610 看涨 平值\n1个月到期",
			want: []string{"HC2610 看涨 平值 1个月到期"},
		},
		{
			name: "decimal is not a marker",
			text: "HC2610 看涨 1.5个月",
			want: []string{"HC2610 看涨 1.5个月"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legs := Split(tt.text, keywords.Default())
			require.Len(t, legs, len(tt.want))
			for i, leg := range legs {
				assert.Equal(t, i, leg.Index)
				assert.Equal(t, tt.want[i], leg.Text)
			}
		})
	}
}

func TestSplit_LegsOwnTheirSpans(t *testing.T) {
	legs := Split("1. HC2610 看涨 行权价3500 2. HC2610 看跌 行权价3300", keywords.Default())
	require.Len(t, legs, 2)

	assert.Equal(t, "3500", only(t, legs[0].Spans, KindStrike).Group("value"))
	assert.Equal(t, "3300", only(t, legs[1].Spans, KindStrike).Group("value"))
	assert.True(t, legs[0].Has(KindContract))
	assert.False(t, legs[0].Has(KindDate))
}

func filter(spans []Span, kind Kind) []Span {
	var out []Span
	for _, s := range spans {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
