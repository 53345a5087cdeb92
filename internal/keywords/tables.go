// Package keywords holds the synonym tables that map RFQ phrases to
// semantic categories (direction, option type, moneyness, products).
//
// Tables are decoded once from YAML and are read-only afterwards; every
// derived view (matchers, alias maps) is built before the *Tables is
// published, so a *Tables can be shared across goroutines without locking.
package keywords

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Direction classes, in precedence order
const (
	ClassDirect       = "direct"
	ClassCounterparty = "counterparty"
	ClassGeneric      = "generic"
)

// Moneyness categories
const (
	MoneynessATM = "atm"
	MoneynessITM = "itm"
	MoneynessOTM = "otm"
)

// Option type values (mirror contracts.CallPut)
const (
	ValueCall = 1
	ValuePut  = 2
)

// Product is one listed option underlying
type Product struct {
	Code    string   `yaml:"code" json:"code"`
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

type directionRule struct {
	Class   string   `yaml:"class"`
	Rank    int      `yaml:"rank"`
	Value   int      `yaml:"value"`
	Phrases []string `yaml:"phrases"`
}

type optionTypeTable struct {
	Call        []string `yaml:"call"`
	Put         []string `yaml:"put"`
	CallLetters []string `yaml:"call_letters"`
	PutLetters  []string `yaml:"put_letters"`
}

type moneynessTable struct {
	ATM []string `yaml:"atm"`
	ITM []string `yaml:"itm"`
	OTM []string `yaml:"otm"`
}

// tableFile is the YAML document shape
type tableFile struct {
	Direction      []directionRule `yaml:"direction"`
	OptionType     optionTypeTable `yaml:"option_type"`
	Moneyness      moneynessTable  `yaml:"moneyness"`
	StrikeCues     []string        `yaml:"strike_cues"`
	UnderlyingCues []string        `yaml:"underlying_cues"`
	QuantityCues   []string        `yaml:"quantity_cues"`
	QuantityUnits  []string        `yaml:"quantity_units"`
	Conjunctions   []string        `yaml:"conjunctions"`
	Reserved       []string        `yaml:"reserved"`
	Numerals       map[string]int  `yaml:"numerals"`
	Products       []Product       `yaml:"products"`
}

// ValidationError describes a malformed table entry
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("keyword tables: %s: %s", e.Field, e.Message)
}

// Tables is the immutable, indexed form of the cue tables
type Tables struct {
	raw tableFile

	direction  *Matcher
	optionType *Matcher
	moneyness  *Matcher
	productCJK *Matcher
	conjunct   *Matcher

	callLetters map[byte]struct{}
	putLetters  map[byte]struct{}

	strikeCues     []string
	underlyingCues []string
	quantityCues   []string
	quantityUnits  []string

	aliasToCode map[string]string // upper-cased ASCII alias or raw CJK alias -> code
	products    map[string]Product
	reserved    map[string]struct{}
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
	defaultErr    error
)

// Default returns the embedded tables, decoded on first use.
// The embedded YAML is covered by tests, so a failure here is a build defect.
func Default() *Tables {
	defaultOnce.Do(func() {
		defaultTables, defaultErr = Load(bytes.NewReader(defaultTablesYAML))
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultTables
}

// LoadFile reads tables from a YAML file on disk
func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword tables: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes and validates a YAML table document.
// KnownFields(true): 오타/미사용 필드 즉시 실패
func Load(r io.Reader) (*Tables, error) {
	var raw tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode keyword tables: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	return build(raw), nil
}

var productCodePattern = regexp.MustCompile(`^[A-Z]{1,6}$`)

func validate(raw *tableFile) error {
	if len(raw.Direction) == 0 {
		return ValidationError{"direction", "required"}
	}
	for i, rule := range raw.Direction {
		field := fmt.Sprintf("direction[%d]", i)
		switch rule.Class {
		case ClassDirect, ClassCounterparty, ClassGeneric:
		default:
			return ValidationError{field + ".class", fmt.Sprintf("unknown class %q", rule.Class)}
		}
		if rule.Value != 1 && rule.Value != -1 {
			return ValidationError{field + ".value", "must be 1 or -1"}
		}
		if rule.Rank < 1 {
			return ValidationError{field + ".rank", "must be >= 1"}
		}
		if len(rule.Phrases) == 0 {
			return ValidationError{field + ".phrases", "required"}
		}
	}

	if len(raw.OptionType.Call) == 0 || len(raw.OptionType.Put) == 0 {
		return ValidationError{"option_type", "call and put phrases are required"}
	}
	for _, l := range append(append([]string{}, raw.OptionType.CallLetters...), raw.OptionType.PutLetters...) {
		if len(l) != 1 || !IsASCIILetter(l[0]) {
			return ValidationError{"option_type.letters", fmt.Sprintf("%q must be a single ASCII letter", l)}
		}
	}

	if len(raw.Moneyness.ATM) == 0 || len(raw.Moneyness.ITM) == 0 || len(raw.Moneyness.OTM) == 0 {
		return ValidationError{"moneyness", "atm, itm and otm phrases are required"}
	}

	seen := make(map[string]struct{}, len(raw.Products))
	for i, p := range raw.Products {
		if !productCodePattern.MatchString(p.Code) {
			return ValidationError{fmt.Sprintf("products[%d].code", i), fmt.Sprintf("%q must be 1-6 uppercase letters", p.Code)}
		}
		if _, dup := seen[p.Code]; dup {
			return ValidationError{fmt.Sprintf("products[%d].code", i), fmt.Sprintf("duplicate code %q", p.Code)}
		}
		seen[p.Code] = struct{}{}
	}

	for k, v := range raw.Numerals {
		if v <= 0 {
			return ValidationError{"numerals." + k, "must be > 0"}
		}
	}

	return nil
}

func build(raw tableFile) *Tables {
	t := &Tables{
		raw:            raw,
		callLetters:    letterSet(raw.OptionType.CallLetters),
		putLetters:     letterSet(raw.OptionType.PutLetters),
		strikeCues:     longestFirst(raw.StrikeCues),
		underlyingCues: longestFirst(raw.UnderlyingCues),
		quantityCues:   longestFirst(raw.QuantityCues),
		quantityUnits:  longestFirst(raw.QuantityUnits),
		aliasToCode:    make(map[string]string),
		products:       make(map[string]Product, len(raw.Products)),
		reserved:       make(map[string]struct{}, len(raw.Reserved)),
	}

	var dir []Phrase
	for _, rule := range raw.Direction {
		for _, p := range rule.Phrases {
			dir = append(dir, Phrase{Text: p, Class: rule.Class, Rank: rule.Rank, Value: rule.Value})
		}
	}
	t.direction = NewMatcher(dir)

	var opt []Phrase
	for _, p := range raw.OptionType.Call {
		opt = append(opt, Phrase{Text: p, Class: "call", Value: ValueCall})
	}
	for _, p := range raw.OptionType.Put {
		opt = append(opt, Phrase{Text: p, Class: "put", Value: ValuePut})
	}
	t.optionType = NewMatcher(opt)

	var mon []Phrase
	for _, p := range raw.Moneyness.ATM {
		mon = append(mon, Phrase{Text: p, Class: MoneynessATM, Value: 0})
	}
	for _, p := range raw.Moneyness.ITM {
		mon = append(mon, Phrase{Text: p, Class: MoneynessITM, Value: 1})
	}
	for _, p := range raw.Moneyness.OTM {
		mon = append(mon, Phrase{Text: p, Class: MoneynessOTM, Value: -1})
	}
	t.moneyness = NewMatcher(mon)

	var conj []Phrase
	for _, p := range raw.Conjunctions {
		conj = append(conj, Phrase{Text: p, Class: "conjunction"})
	}
	t.conjunct = NewMatcher(conj)

	for _, w := range raw.Reserved {
		t.reserved[strings.ToLower(w)] = struct{}{}
	}

	var cjk []Phrase
	for _, p := range raw.Products {
		t.products[p.Code] = p
		t.aliasToCode[p.Code] = p.Code
		for _, alias := range append([]string{p.Name}, p.Aliases...) {
			if alias == "" {
				continue
			}
			if isASCIIWord(alias) {
				t.aliasToCode[strings.ToUpper(alias)] = p.Code
				continue
			}
			t.aliasToCode[alias] = p.Code
			cjk = append(cjk, Phrase{Text: alias, Class: "product", Value: 0})
		}
	}
	t.productCJK = NewMatcher(cjk)

	return t
}

// WithAliases returns a new Tables with extra product aliases (alias -> code).
// Unknown codes are added as products named after their first alias.
// The receiver is left untouched.
func (t *Tables) WithAliases(extra map[string]string) *Tables {
	raw := t.raw
	raw.Products = make([]Product, len(t.raw.Products))
	index := make(map[string]int, len(t.raw.Products))
	for i, p := range t.raw.Products {
		p.Aliases = append([]string(nil), p.Aliases...)
		raw.Products[i] = p
		index[p.Code] = i
	}

	aliases := make([]string, 0, len(extra))
	for alias := range extra {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	for _, alias := range aliases {
		code := strings.ToUpper(strings.TrimSpace(extra[alias]))
		alias = strings.TrimSpace(alias)
		if alias == "" || !productCodePattern.MatchString(code) {
			continue
		}
		if _, taken := t.aliasToCode[alias]; taken {
			continue
		}
		if i, ok := index[code]; ok {
			raw.Products[i].Aliases = append(raw.Products[i].Aliases, alias)
			continue
		}
		index[code] = len(raw.Products)
		raw.Products = append(raw.Products, Product{Code: code, Name: alias})
	}

	return build(raw)
}

// Direction returns the direction phrase matcher (all classes)
func (t *Tables) Direction() *Matcher { return t.direction }

// OptionType returns the call/put phrase matcher
func (t *Tables) OptionType() *Matcher { return t.optionType }

// Moneyness returns the ATM/ITM/OTM phrase matcher
func (t *Tables) Moneyness() *Matcher { return t.moneyness }

// ProductAliases returns the matcher over non-ASCII product names/aliases
func (t *Tables) ProductAliases() *Matcher { return t.productCJK }

// Conjunctions returns the leg conjunction matcher
func (t *Tables) Conjunctions() *Matcher { return t.conjunct }

// StrikeCues returns strike prefixes, longest first
func (t *Tables) StrikeCues() []string { return t.strikeCues }

// UnderlyingCues returns underlying-price prefixes, longest first
func (t *Tables) UnderlyingCues() []string { return t.underlyingCues }

// QuantityCues returns quantity prefixes, longest first
func (t *Tables) QuantityCues() []string { return t.quantityCues }

// QuantityUnits returns quantity suffixes, longest first
func (t *Tables) QuantityUnits() []string { return t.quantityUnits }

// OptionLetter maps a standalone single letter to its option type value
func (t *Tables) OptionLetter(c byte) (int, bool) {
	upper := c
	if c >= 'a' && c <= 'z' {
		upper = c - ('a' - 'A')
	}
	if _, ok := t.callLetters[upper]; ok {
		return ValueCall, true
	}
	if _, ok := t.putLetters[upper]; ok {
		return ValuePut, true
	}
	return 0, false
}

// OptionLetters returns the single-letter call and put markers
func (t *Tables) OptionLetters() []string {
	out := append([]string(nil), t.raw.OptionType.CallLetters...)
	return append(out, t.raw.OptionType.PutLetters...)
}

// IsReserved reports whether an ASCII word is a cue keyword rather than a product
func (t *Tables) IsReserved(word string) bool {
	_, ok := t.reserved[strings.ToLower(word)]
	return ok
}

// ProductCode canonicalizes an ASCII token or a CJK alias to a product code.
// Unknown ASCII tokens are not resolved here.
func (t *Tables) ProductCode(token string) (string, bool) {
	if isASCIIWord(token) {
		code, ok := t.aliasToCode[strings.ToUpper(token)]
		return code, ok
	}
	code, ok := t.aliasToCode[token]
	return code, ok
}

// Product looks up a product by canonical code
func (t *Tables) Product(code string) (Product, bool) {
	p, ok := t.products[code]
	return p, ok
}

// Products returns all products sorted by code
func (t *Tables) Products() []Product {
	out := make([]Product, 0, len(t.products))
	for _, p := range t.products {
		p.Aliases = append([]string(nil), p.Aliases...)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// AliasIndex returns a copy of the alias -> code map
func (t *Tables) AliasIndex() map[string]string {
	out := make(map[string]string, len(t.aliasToCode))
	for k, v := range t.aliasToCode {
		out[k] = v
	}
	return out
}

// Numeral converts a Chinese numeral word (一..十二, 两) to its value
func (t *Tables) Numeral(s string) (int, bool) {
	v, ok := t.raw.Numerals[s]
	return v, ok
}

// NumeralWords returns the numeral words, longest first
func (t *Tables) NumeralWords() []string {
	words := make([]string, 0, len(t.raw.Numerals))
	for w := range t.raw.Numerals {
		words = append(words, w)
	}
	return longestFirst(words)
}

func letterSet(letters []string) map[byte]struct{} {
	out := make(map[byte]struct{}, len(letters))
	for _, l := range letters {
		c := l[0]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[c] = struct{}{}
	}
	return out
}

func longestFirst(in []string) []string {
	out := append([]string(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

func isASCIIWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !IsASCIILetter(s[i]) {
			return false
		}
	}
	return true
}
