package keywords

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	tables := Default()
	require.NotNil(t, tables)

	assert.Greater(t, tables.Direction().Len(), 10)
	assert.Greater(t, tables.OptionType().Len(), 4)
	assert.Greater(t, tables.Moneyness().Len(), 4)
	assert.NotEmpty(t, tables.Products())
	assert.Same(t, tables, Default())
}

func TestProductCode(t *testing.T) {
	tables := Default()

	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"HC", "HC", true},
		{"hc", "HC", true},
		{"热卷", "HC", true},
		{"热轧卷板", "HC", true},
		{"螺纹", "RB", true},
		{"豆一", "A", true},
		{"PTA", "TA", true},
		{"pvc", "V", true},
		{"菜油", "OI", true},
		{"XYZ", "", false},
		{"不存在", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := tables.ProductCode(tt.token)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsReserved(t *testing.T) {
	tables := Default()

	for _, w := range []string{"call", "PUT", "Atm", "otm", "bid", "offer", "strike"} {
		assert.True(t, tables.IsReserved(w), w)
	}
	for _, w := range []string{"HC", "rb", "TA"} {
		assert.False(t, tables.IsReserved(w), w)
	}
}

func TestOptionLetter(t *testing.T) {
	tables := Default()

	v, ok := tables.OptionLetter('C')
	assert.True(t, ok)
	assert.Equal(t, ValueCall, v)

	v, ok = tables.OptionLetter('p')
	assert.True(t, ok)
	assert.Equal(t, ValuePut, v)

	_, ok = tables.OptionLetter('X')
	assert.False(t, ok)
}

func TestNumeral(t *testing.T) {
	tables := Default()

	v, ok := tables.Numeral("两")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = tables.Numeral("十二")
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	words := tables.NumeralWords()
	require.NotEmpty(t, words)
	assert.GreaterOrEqual(t, len(words[0]), len(words[len(words)-1]))
}

func TestCuesAreLongestFirst(t *testing.T) {
	cues := Default().StrikeCues()
	for i := 1; i < len(cues); i++ {
		assert.GreaterOrEqual(t, len(cues[i-1]), len(cues[i]))
	}
}

func TestWithAliases(t *testing.T) {
	base := Default()

	extended := base.WithAliases(map[string]string{
		"热轧板卷": "HC",
		"不锈钢":  "SS",
		"":     "RB",
		"坏代码":  "12",
	})

	code, ok := extended.ProductCode("热轧板卷")
	assert.True(t, ok)
	assert.Equal(t, "HC", code)

	code, ok = extended.ProductCode("不锈钢")
	assert.True(t, ok)
	assert.Equal(t, "SS", code)

	_, ok = extended.ProductCode("坏代码")
	assert.False(t, ok)

	// receiver untouched
	_, ok = base.ProductCode("热轧板卷")
	assert.False(t, ok)
	_, ok = base.Product("SS")
	assert.False(t, ok)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	doc := `
direction:
  - {class: direct, rank: 1, value: 1, phrases: [客户买]}
unknown_field: true
`
	_, err := Load(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	base := `
option_type: {call: [call], put: [put], call_letters: [C], put_letters: [P]}
moneyness: {atm: [ATM], itm: [ITM], otm: [OTM]}
`
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "missing direction",
			doc:   base,
			field: "direction",
		},
		{
			name:  "bad value",
			doc:   base + "direction:\n  - {class: direct, rank: 1, value: 2, phrases: [x]}\n",
			field: "direction[0].value",
		},
		{
			name:  "bad class",
			doc:   base + "direction:\n  - {class: other, rank: 1, value: 1, phrases: [x]}\n",
			field: "direction[0].class",
		},
		{
			name: "bad product code",
			doc: base + "direction:\n  - {class: direct, rank: 1, value: 1, phrases: [x]}\n" +
				"products:\n  - {code: hc, name: 热卷, aliases: []}\n",
			field: "products[0].code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestMatcher_FindAll(t *testing.T) {
	m := NewMatcher([]Phrase{
		{Text: "bid", Class: "counterparty", Value: -1},
		{Text: "我们卖", Class: "counterparty", Value: 1},
		{Text: "我们卖出", Class: "counterparty", Value: 1},
	})

	// longest phrase wins
	got := m.FindAll("我们卖出HC", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "我们卖出", got[0].Phrase.Text)
	assert.Equal(t, 0, got[0].Start)
	assert.Equal(t, len("我们卖出"), got[0].End)

	// ASCII phrase needs a letter boundary
	assert.Empty(t, m.FindAll("forbidden", nil))
	assert.Len(t, m.FindAll("BID 3500", nil), 1)
	assert.Len(t, m.FindAll("客户bid", nil), 1)

	// skip vetoes a range
	got = m.FindAll("bid bid", func(start, end int) bool { return start == 0 })
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Start)
}

func TestASCIILower_KeepsOffsets(t *testing.T) {
	in := "HC热卷Call"
	out := ASCIILower(in)
	assert.Equal(t, len(in), len(out))
	assert.Equal(t, "hc热卷call", out)
}
