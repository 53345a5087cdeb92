package resolver

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/wonny/rfqnorm/backend/internal/keywords"
)

// DefaultTopK is used when a caller asks for a non-positive number of candidates
const DefaultTopK = 5

var codeToken = regexp.MustCompile(`[A-Za-z]{1,6}`)

// ProductCandidate is one possible product for a free-text mention
type ProductCandidate struct {
	ProductCode  string `json:"product_code"`
	ProductName  string `json:"product_name"`
	MatchedAlias string `json:"matched_alias"`
	Score        int    `json:"score"`
}

// FindProductCandidates ranks products mentioned in text.
// An exact code token ("rb10") scores 100, an ASCII alias ("PTA") 95, and a
// Chinese name or alias contained in the text 80 plus a small bonus for
// longer aliases (capped at 99). Results are sorted by score, then code.
func FindProductCandidates(text string, tables *keywords.Tables, topK int) []ProductCandidate {
	if topK <= 0 {
		topK = DefaultTopK
	}

	best := make(map[string]ProductCandidate)
	consider := func(code, alias string, score int) {
		if cur, ok := best[code]; ok && cur.Score >= score {
			return
		}
		p, _ := tables.Product(code)
		best[code] = ProductCandidate{ProductCode: code, ProductName: p.Name, MatchedAlias: alias, Score: score}
	}

	for _, loc := range codeToken.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && keywords.IsASCIILetter(text[loc[0]-1]) {
			continue
		}
		if loc[1] < len(text) && keywords.IsASCIILetter(text[loc[1]]) {
			continue
		}
		token := text[loc[0]:loc[1]]
		digitNext := loc[1] < len(text) && keywords.IsDigit(text[loc[1]])
		if tables.IsReserved(token) || (len(token) == 1 && !digitNext) {
			continue
		}
		code, ok := tables.ProductCode(token)
		if !ok {
			continue
		}
		score := 95
		if strings.EqualFold(token, code) {
			score = 100
		}
		consider(code, token, score)
	}

	for _, p := range tables.Products() {
		for _, alias := range append([]string{p.Name}, p.Aliases...) {
			if alias == "" || isASCII(alias) || !strings.Contains(text, alias) {
				continue
			}
			score := 80 + 2*utf8.RuneCountInString(alias)
			if score > 99 {
				score = 99
			}
			consider(p.Code, alias, score)
		}
	}

	out := make([]ProductCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductCode < out[j].ProductCode
	})

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
