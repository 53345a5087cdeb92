package legs

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wonny/rfqnorm/backend/internal/keywords"
)

const number = `(\d+(?:\.\d+)?)`

var (
	fullDatePattern = regexp.MustCompile(`(\d{4})[ \t]*[-/.年][ \t]*(\d{1,2})[ \t]*[-/.月][ \t]*(\d{1,2})[ \t]*([日号])?`)
	monthDayPattern = regexp.MustCompile(`(\d{1,2})月(\d{1,2})([日号])?`)
	atPricePattern  = regexp.MustCompile(`@[ \t]*` + number)
	asciiContract   = regexp.MustCompile(`([A-Za-z]{1,6})[ \t]*(\d{1,4})([ \t]*月)?`)
	asciiWord       = regexp.MustCompile(`[A-Za-z]{2,6}`)
	monthPattern    = regexp.MustCompile(`(\d{1,2})[ \t]*月(?:份)?`)
	numberPattern   = regexp.MustCompile(number)
)

// runes that turn "4月15" into something other than a day of month
const notDaySuffix = "天个手张口交%"

// Scanner extracts cue spans from leg text. Patterns are compiled once per
// keyword table snapshot; a Scanner is safe for concurrent use.
type Scanner struct {
	tables *keywords.Tables

	duration       *regexp.Regexp
	quantitySuffix *regexp.Regexp
	quantityPrefix *regexp.Regexp
	underlying     *regexp.Regexp
	strikePrefix   *regexp.Regexp
	moneyness      *regexp.Regexp
	strikeSuffix   *regexp.Regexp

	moneynessClass map[string]string
}

// NewScanner compiles the table-driven patterns
func NewScanner(tables *keywords.Tables) *Scanner {
	s := &Scanner{
		tables:         tables,
		moneynessClass: make(map[string]string),
	}

	s.duration = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?|` + numeralClass(tables) + `{1,3}|半)[ \t]*(个半|个)?[ \t]*` +
		`(交易日|trading[ \t]*days?|tds?|自然日|天|日|days?|周|星期|weeks?|wks?|月|months?|mths?|mos?|m|d|w)`)

	s.quantitySuffix = regexp.MustCompile(`(?i)` + number + `[ \t]*(` + alternation(tables.QuantityUnits()) + `)`)
	s.quantityPrefix = regexp.MustCompile(`(?i)(` + alternation(tables.QuantityCues()) + `)[ \t]*[:：=]?[ \t]*` + number)
	s.underlying = regexp.MustCompile(`(?i)(` + alternation(tables.UnderlyingCues()) + `)[ \t]*[:：=@]?[ \t]*` + number)
	s.strikePrefix = regexp.MustCompile(`(?i)(` + alternation(tables.StrikeCues()) + `)[ \t]*[:：=]?[ \t]*` + number)

	var money []string
	for _, p := range tables.Moneyness().Phrases() {
		money = append(money, p.Text)
		s.moneynessClass[keywords.ASCIILower(p.Text)] = p.Class
	}
	s.moneyness = regexp.MustCompile(`(?i)(` + alternation(money) + `)(?:[ \t]*` + number + `)?`)

	var option []string
	for _, p := range tables.OptionType().Phrases() {
		option = append(option, p.Text)
	}
	option = append(option, tables.OptionLetters()...)
	s.strikeSuffix = regexp.MustCompile(`(?i)` + number + `[ \t]*(` + alternation(option) + `)`)

	return s
}

// Tables returns the snapshot the scanner was built from
func (s *Scanner) Tables() *keywords.Tables {
	return s.tables
}

// Scan returns every cue span in text, ordered by position. Kinds are
// claimed in a fixed order and a claimed byte is invisible to later kinds:
// dates, durations, quantities, underlying, prefixed strikes, moneyness,
// contracts, suffixed strikes, products, months, bare numbers.
func (s *Scanner) Scan(text string) []Span {
	st := &scanState{text: text, mask: make([]bool, len(text))}

	s.scanDates(st)
	s.scanDurations(st)
	s.scanQuantities(st)
	s.scanPrefixed(st, s.underlying, KindUnderlying, "cue")
	s.scanAtPrice(st)
	s.scanPrefixed(st, s.strikePrefix, KindStrike, "cue")
	s.scanMoneyness(st)
	s.scanContracts(st)
	s.scanSuffixedStrikes(st)
	s.scanProducts(st)
	s.scanMonths(st)
	s.scanNumbers(st)

	sort.SliceStable(st.spans, func(i, j int) bool { return st.spans[i].Start < st.spans[j].Start })
	return st.spans
}

type scanState struct {
	text  string
	mask  []bool
	spans []Span
}

func (st *scanState) free(start, end int) bool {
	for i := start; i < end; i++ {
		if st.mask[i] {
			return false
		}
	}
	return true
}

func (st *scanState) claim(kind Kind, start, end int, groups map[string]string) {
	for i := start; i < end; i++ {
		st.mask[i] = true
	}
	st.spans = append(st.spans, Span{
		Kind:   kind,
		Start:  start,
		End:    end,
		Text:   st.text[start:end],
		Groups: groups,
	})
}

func (s *Scanner) scanDates(st *scanState) {
	for _, loc := range fullDatePattern.FindAllStringSubmatchIndex(st.text, -1) {
		if !numberStartOK(st.text, loc[0]) || !digitEndOK(st.text, loc[7]) || !st.free(loc[0], loc[1]) {
			continue
		}
		month, day := group(st.text, loc, 2), group(st.text, loc, 3)
		if !validMonthDay(month, day) {
			continue
		}
		st.claim(KindDate, loc[0], loc[1], map[string]string{
			"year":  group(st.text, loc, 1),
			"month": trimZeros(month),
			"day":   trimZeros(day),
		})
	}

	for _, loc := range monthDayPattern.FindAllStringSubmatchIndex(st.text, -1) {
		if !numberStartOK(st.text, loc[0]) || !digitEndOK(st.text, loc[5]) || !st.free(loc[0], loc[1]) {
			continue
		}
		if loc[6] < 0 && nextRuneIn(st.text, loc[1], notDaySuffix) {
			continue
		}
		month, day := group(st.text, loc, 1), group(st.text, loc, 2)
		if !validMonthDay(month, day) {
			continue
		}
		st.claim(KindDate, loc[0], loc[1], map[string]string{
			"month": trimZeros(month),
			"day":   trimZeros(day),
		})
	}
}

// trimZeros drops leading zeros: "04" -> "4"
func trimZeros(d string) string {
	if t := strings.TrimLeft(d, "0"); t != "" {
		return t
	}
	return d
}

func (s *Scanner) scanDurations(st *scanState) {
	for _, loc := range s.duration.FindAllStringSubmatchIndex(st.text, -1) {
		value := group(st.text, loc, 1)
		counter := group(st.text, loc, 2)
		rawUnit := group(st.text, loc, 3)

		if keywords.IsDigit(value[0]) && !numberStartOK(st.text, loc[0]) {
			continue
		}
		if !asciiEndOK(st.text, loc[1]) || !st.free(loc[0], loc[1]) {
			continue
		}

		unit := durationUnit(rawUnit)
		if len(rawUnit) <= 3 && keywords.IsASCIILetter(rawUnit[0]) && loc[6] > loc[3] {
			// short ASCII units (3m, 20d, 5td) must be glued to the number
			continue
		}
		if unit == UnitMonths && rawUnit == "月" && counter == "" && value != "半" {
			// "10月" names a month, not a duration
			continue
		}
		half := ""
		if counter == "个半" {
			if unit != UnitMonths {
				continue
			}
			half = "1"
		}

		st.claim(KindDuration, loc[0], loc[1], map[string]string{
			"value": value,
			"unit":  unit,
			"half":  half,
		})
	}
}

func (s *Scanner) scanQuantities(st *scanState) {
	for _, loc := range s.quantitySuffix.FindAllStringSubmatchIndex(st.text, -1) {
		if !numberStartOK(st.text, loc[0]) || !asciiEndOK(st.text, loc[1]) || !st.free(loc[0], loc[1]) {
			continue
		}
		st.claim(KindQuantity, loc[0], loc[1], map[string]string{"value": group(st.text, loc, 1)})
	}
	s.scanPrefixed(st, s.quantityPrefix, KindQuantity, "cue")
}

// scanPrefixed handles "<cue> [:=] <number>" patterns
func (s *Scanner) scanPrefixed(st *scanState, re *regexp.Regexp, kind Kind, cueGroup string) {
	for _, loc := range re.FindAllStringSubmatchIndex(st.text, -1) {
		if !asciiStartOK(st.text, loc[0]) || !numberEndOK(st.text, loc[1]) || !st.free(loc[0], loc[1]) {
			continue
		}
		st.claim(kind, loc[0], loc[1], map[string]string{
			cueGroup: group(st.text, loc, 1),
			"value":  group(st.text, loc, 2),
		})
	}
}

func (s *Scanner) scanAtPrice(st *scanState) {
	for _, loc := range atPricePattern.FindAllStringSubmatchIndex(st.text, -1) {
		if !numberEndOK(st.text, loc[1]) || !st.free(loc[0], loc[1]) {
			continue
		}
		st.claim(KindUnderlying, loc[0], loc[1], map[string]string{
			"cue":   "@",
			"value": group(st.text, loc, 1),
		})
	}
}

func (s *Scanner) scanMoneyness(st *scanState) {
	for _, loc := range s.moneyness.FindAllStringSubmatchIndex(st.text, -1) {
		phrase := group(st.text, loc, 1)
		class := s.moneynessClass[keywords.ASCIILower(phrase)]
		magnitude := group(st.text, loc, 2)
		end := loc[1]

		if !asciiStartOK(st.text, loc[0]) {
			continue
		}
		if class == keywords.MoneynessATM || magnitude == "" {
			magnitude = ""
			end = loc[3]
			if !asciiEndOK(st.text, end) {
				continue
			}
		} else if !numberEndOK(st.text, end) {
			continue
		}
		if magnitude == "" && class != keywords.MoneynessATM && utf8.RuneCountInString(phrase) == 1 {
			// bare 实/虚 only count with a magnitude
			continue
		}
		if !st.free(loc[0], end) {
			continue
		}

		st.claim(KindMoneyness, loc[0], end, map[string]string{
			"class":     class,
			"magnitude": magnitude,
		})
	}
}

func (s *Scanner) scanSuffixedStrikes(st *scanState) {
	for _, loc := range s.strikeSuffix.FindAllStringSubmatchIndex(st.text, -1) {
		if !numberStartOK(st.text, loc[0]) || !st.free(loc[0], loc[1]) {
			continue
		}
		if loc[1] < len(st.text) && (keywords.IsASCIILetter(st.text[loc[1]]) || keywords.IsDigit(st.text[loc[1]])) {
			continue
		}
		st.claim(KindStrike, loc[0], loc[1], map[string]string{
			"value":  group(st.text, loc, 1),
			"option": group(st.text, loc, 2),
		})
	}
}

func (s *Scanner) scanContracts(st *scanState) {
	for _, loc := range asciiContract.FindAllStringSubmatchIndex(st.text, -1) {
		letters := group(st.text, loc, 1)
		digits := group(st.text, loc, 2)

		if loc[0] > 0 && keywords.IsASCIILetter(st.text[loc[0]-1]) {
			continue
		}
		if !digitEndOK(st.text, loc[5]) || !st.free(loc[0], loc[1]) {
			continue
		}
		if s.tables.IsReserved(letters) || !ValidContractDigits(digits) {
			continue
		}
		glued := loc[4] == loc[3]
		// one-letter codes (C, P) must be glued: "P 3505" is a put struck at 3505
		if len(letters) == 1 && !glued {
			continue
		}
		product, known := s.tables.ProductCode(letters)
		if !known {
			// unknown codes must be glued to their digits: "XX2605", not "word 10"
			if len(letters) < 2 || !glued {
				continue
			}
			product = strings.ToUpper(letters)
		}

		st.claim(KindContract, loc[0], loc[1], map[string]string{
			"product": product,
			"digits":  digits,
		})
	}

	for _, m := range s.tables.ProductAliases().FindAll(st.text, func(start, end int) bool { return !st.free(start, end) }) {
		code, ok := s.tables.ProductCode(m.Phrase.Text)
		if !ok {
			continue
		}

		i := m.End
		for i < len(st.text) && (st.text[i] == ' ' || st.text[i] == '\t') {
			i++
		}
		j := i
		for j < len(st.text) && j-i < 4 && keywords.IsDigit(st.text[j]) {
			j++
		}
		digits := st.text[i:j]
		if digits == "" || !digitEndOK(st.text, j) || !ValidContractDigits(digits) || !st.free(m.Start, j) {
			st.claimProduct(m.Start, m.End, code)
			continue
		}
		if strings.HasPrefix(st.text[j:], "月") {
			j += len("月")
		}

		st.claim(KindContract, m.Start, j, map[string]string{
			"product": code,
			"digits":  digits,
		})
	}
}

func (st *scanState) claimProduct(start, end int, code string) {
	if st.free(start, end) {
		st.claim(KindProduct, start, end, map[string]string{"product": code})
	}
}

func (s *Scanner) scanProducts(st *scanState) {
	for _, loc := range asciiWord.FindAllStringIndex(st.text, -1) {
		if loc[0] > 0 && keywords.IsASCIILetter(st.text[loc[0]-1]) {
			continue
		}
		if loc[1] < len(st.text) && (keywords.IsASCIILetter(st.text[loc[1]]) || keywords.IsDigit(st.text[loc[1]])) {
			continue
		}
		word := st.text[loc[0]:loc[1]]
		if word != strings.ToUpper(word) || s.tables.IsReserved(word) {
			continue
		}
		if code, ok := s.tables.ProductCode(word); ok {
			st.claimProduct(loc[0], loc[1], code)
		}
	}
}

func (s *Scanner) scanMonths(st *scanState) {
	for _, loc := range monthPattern.FindAllStringSubmatchIndex(st.text, -1) {
		if !numberStartOK(st.text, loc[0]) || !st.free(loc[0], loc[1]) {
			continue
		}
		month := group(st.text, loc, 1)
		if m, _ := strconv.Atoi(month); m < 1 || m > 12 {
			continue
		}
		st.claim(KindMonth, loc[0], loc[1], map[string]string{"month": month})
	}
}

func (s *Scanner) scanNumbers(st *scanState) {
	for _, loc := range numberPattern.FindAllStringIndex(st.text, -1) {
		if !numberStartOK(st.text, loc[0]) || !numberEndOK(st.text, loc[1]) || !st.free(loc[0], loc[1]) {
			continue
		}
		if loc[1] < len(st.text) && st.text[loc[1]] == '%' {
			continue
		}
		st.claim(KindNumber, loc[0], loc[1], map[string]string{"value": st.text[loc[0]:loc[1]]})
	}
}

// ValidContractDigits checks the digit part of a contract token:
// 1-2 digits are a month, 3 (CZCE) or 4 digits end in a month.
func ValidContractDigits(d string) bool {
	var month string
	switch len(d) {
	case 1, 2:
		month = d
	case 3, 4:
		month = d[len(d)-2:]
	default:
		return false
	}
	m, err := strconv.Atoi(month)
	return err == nil && m >= 1 && m <= 12
}

func durationUnit(raw string) string {
	lower := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	switch {
	case lower == "交易日" || strings.HasPrefix(lower, "trading") || strings.HasPrefix(lower, "td"):
		return UnitTrading
	case lower == "周" || lower == "星期" || strings.HasPrefix(lower, "w"):
		return UnitWeeks
	case lower == "月" || strings.HasPrefix(lower, "m"):
		return UnitMonths
	default:
		return UnitDays
	}
}

func validMonthDay(month, day string) bool {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}
	d, err := strconv.Atoi(day)
	return err == nil && d >= 1 && d <= 31
}

func group(text string, loc []int, n int) string {
	if 2*n+1 >= len(loc) || loc[2*n] < 0 {
		return ""
	}
	return text[loc[2*n]:loc[2*n+1]]
}

// numberStartOK rejects a number glued to a preceding letter, digit or '.'
func numberStartOK(text string, i int) bool {
	if i == 0 {
		return true
	}
	c := text[i-1]
	return !keywords.IsASCIILetter(c) && !keywords.IsDigit(c) && c != '.'
}

// numberEndOK rejects a number glued to a following letter or digit
func numberEndOK(text string, j int) bool {
	if j >= len(text) {
		return true
	}
	c := text[j]
	return !keywords.IsASCIILetter(c) && !keywords.IsDigit(c)
}

func digitEndOK(text string, j int) bool {
	return j < 0 || j >= len(text) || !keywords.IsDigit(text[j])
}

// asciiStartOK requires a letter boundary when the match starts with a letter
func asciiStartOK(text string, i int) bool {
	return i == 0 || !keywords.IsASCIILetter(text[i]) || !keywords.IsASCIILetter(text[i-1])
}

// asciiEndOK requires a letter boundary when the match ends with a letter
func asciiEndOK(text string, j int) bool {
	return j >= len(text) || j == 0 || !keywords.IsASCIILetter(text[j-1]) || !keywords.IsASCIILetter(text[j])
}

func nextRuneIn(text string, i int, set string) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return strings.ContainsRune(set, r)
}

// numeralClass is a character class of every rune used by numeral words,
// so composites like 二十五 scan as one value
func numeralClass(tables *keywords.Tables) string {
	seen := make(map[rune]struct{})
	var b strings.Builder
	b.WriteString("[")
	for _, w := range tables.NumeralWords() {
		for _, r := range w {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if len(seen) == 0 {
		return `[^\x00-\x{10FFFF}]`
	}
	b.WriteString("]")
	return b.String()
}

// alternation builds a non-capturing, longest-first alternation of literal
// phrases. An empty list yields a group that never matches.
func alternation(phrases []string) string {
	sorted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p != "" {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return `(?:[^\x00-\x{10FFFF}])`
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(p), " ", `[ \t]+`)
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}
