package legs

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wonny/rfqnorm/backend/internal/keywords"
)

// enumerated leg markers: leg1, 腿1, 第一腿, (1), ①, 1、 1) 1.
var markerPattern = regexp.MustCompile(
	`(?i)leg[ \t]*\d{1,2}|腿[ \t]*\d{1,2}|第[一二三四五六七八九十\d]{1,3}[腿笔条]|[(（]\d{1,2}[)）]|[①②③④⑤⑥⑦⑧⑨⑩]|\d{1,2}[、)）.]`)

// Splitter partitions inquiry text into legs
type Splitter struct {
	tables  *keywords.Tables
	scanner *Scanner
}

// NewSplitter builds a splitter (and its scanner) for one table snapshot
func NewSplitter(tables *keywords.Tables) *Splitter {
	return &Splitter{tables: tables, scanner: NewScanner(tables)}
}

// Split is a convenience for NewSplitter(tables).Split(text)
func Split(text string, tables *keywords.Tables) []Leg {
	return NewSplitter(tables).Split(text)
}

// Scanner returns the splitter's cue scanner
func (s *Splitter) Scanner() *Scanner {
	return s.scanner
}

type segment struct {
	start, end int
}

type draft struct {
	start, end int
	text       string
	preamble   string
	cued       bool
}

// Split never fails and always returns at least one leg. Boundaries, in
// order: hard separators, enumerated markers, conjunctions (only between
// two cued pieces), a second distinct contract token. Pieces without a leg
// cue are folded into a neighbour.
func (s *Splitter) Split(text string) []Leg {
	var drafts []draft

	hards := hardSegments(text)
	shared := ""
	for i, hard := range hards {
		marks := s.markers(text, hard)

		// a cue-less line introducing an enumerated list is shared by every item
		if len(marks) == 0 && i+1 < len(hards) && s.leadsWithMarker(text, hards[i+1]) &&
			!s.hasLegCue(text[hard.start:hard.end]) {
			shared = joinText(shared, trimPreamble(text[hard.start:hard.end]))
			continue
		}

		preamble, bodies := enumerate(text, hard, marks)
		if len(marks) > 0 {
			preamble = joinText(shared, preamble)
		}
		for _, body := range bodies {
			for _, conj := range s.splitConjunctions(text, body) {
				for _, piece := range s.splitContracts(text, conj) {
					own := text[piece.start:piece.end]
					drafts = append(drafts, draft{
						start:    piece.start,
						end:      piece.end,
						text:     own,
						preamble: preamble,
						cued:     s.hasLegCue(own),
					})
				}
			}
		}
	}

	drafts = foldUncued(drafts)
	switch {
	case len(hards) == 0:
		// blank or separators only
		drafts = []draft{{}}
	case len(drafts) == 0:
		trimmed := strings.TrimSpace(text)
		start := strings.Index(text, trimmed)
		drafts = []draft{{start: start, end: start + len(trimmed), text: trimmed}}
	}

	legs := make([]Leg, len(drafts))
	for i, d := range drafts {
		legText := d.text
		if d.preamble != "" {
			legText = d.preamble + " " + d.text
		}
		legs[i] = Leg{
			Index: i,
			Text:  legText,
			Start: d.start,
			End:   d.end,
			Spans: s.scanner.Scan(legText),
		}
	}
	return legs
}

// hardSegments splits on ; ； and line breaks, trimming blanks
func hardSegments(text string) []segment {
	var out []segment
	start := 0
	for i, r := range text {
		if r == ';' || r == '；' || r == '\n' || r == '\r' {
			out = appendTrimmed(out, text, start, i)
			start = i + utf8.RuneLen(r)
		}
	}
	return appendTrimmed(out, text, start, len(text))
}

func (s *Splitter) markers(text string, seg segment) [][]int {
	var out [][]int
	for _, loc := range markerPattern.FindAllStringIndex(text[seg.start:seg.end], -1) {
		start, end := seg.start+loc[0], seg.start+loc[1]
		if isMarker(text, seg.start, start, end) {
			out = append(out, []int{start, end})
		}
	}
	return out
}

func (s *Splitter) leadsWithMarker(text string, seg segment) bool {
	marks := s.markers(text, seg)
	return len(marks) > 0 && marks[0][0] == seg.start
}

// enumerate cuts a segment at enumerated markers. Text before the first
// marker is returned as the preamble shared by every enumerated leg.
func enumerate(text string, seg segment, marks [][]int) (string, []segment) {
	if len(marks) == 0 {
		return "", []segment{seg}
	}

	var bodies []segment
	for i, m := range marks {
		end := seg.end
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		bodies = appendTrimmed(bodies, text, m[1], end)
	}
	return trimPreamble(text[seg.start:marks[0][0]]), bodies
}

func trimPreamble(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ":：,，"))
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func isMarker(text string, segStart, start, end int) bool {
	if !keywords.IsDigit(text[start]) {
		// leg1 must not be the tail of a longer word
		return start == segStart || !keywords.IsASCIILetter(text[start-1])
	}
	if start > segStart {
		prev, _ := utf8.DecodeLastRuneInString(text[segStart:start])
		if !unicode.IsSpace(prev) && !strings.ContainsRune(",，:：。、", prev) {
			return false
		}
	}
	// "1.5个月" is a number, not a marker
	if text[end-1] == '.' && end < len(text) && keywords.IsDigit(text[end]) {
		return false
	}
	return true
}

func (s *Splitter) splitConjunctions(text string, seg segment) []segment {
	matches := s.tables.Conjunctions().FindAll(text[seg.start:seg.end], nil)
	if len(matches) == 0 {
		return []segment{seg}
	}

	var pieces []segment
	start := seg.start
	for _, m := range matches {
		pieces = appendTrimmed(pieces, text, start, seg.start+m.Start)
		start = seg.start + m.End
	}
	pieces = appendTrimmed(pieces, text, start, seg.end)

	// rejoin across a conjunction unless both sides carry a leg cue
	var out []segment
	for _, p := range pieces {
		if len(out) > 0 && (!s.hasLegCue(text[p.start:p.end]) || !s.hasLegCue(text[out[len(out)-1].start:out[len(out)-1].end])) {
			out[len(out)-1].end = p.end
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitContracts starts a new leg at every contract token that differs
// from the one the current piece already holds
func (s *Splitter) splitContracts(text string, seg segment) []segment {
	own := text[seg.start:seg.end]
	var contracts []Span
	for _, sp := range s.scanner.Scan(own) {
		if sp.Kind == KindContract {
			contracts = append(contracts, sp)
		}
	}
	if len(contracts) < 2 {
		return []segment{seg}
	}

	// "sell hc10 call buy rb10 put": the kinds of cue written before the
	// first contract lead every leg, so those right before the next contract go with it
	leading := s.cueKinds(own[:contracts[0].Start])

	var out []segment
	pieceStart := 0
	current := contractKey(contracts[0])
	prevEnd := contracts[0].End
	for _, c := range contracts[1:] {
		key := contractKey(c)
		if key == current {
			prevEnd = c.End
			continue
		}
		cut, next := s.contractBoundary(own, prevEnd, c.Start, leading)
		out = appendTrimmed(out, text, seg.start+pieceStart, seg.start+cut)
		pieceStart = next
		current = key
		prevEnd = c.End
	}
	return appendTrimmed(out, text, seg.start+pieceStart, seg.end)
}

func contractKey(sp Span) string {
	return sp.Group("product") + sp.Group("digits")
}

// contractBoundary picks where to cut between a contract ending at from and
// the next one starting at to: the last comma-like separator in between,
// else right before the next token, pulling along the leading cues that sit
// directly in front of it. It returns the end of the left piece and the
// start of the right one.
func (s *Splitter) contractBoundary(text string, from, to int, leading map[string]bool) (int, int) {
	gap := text[from:to]
	if i := strings.LastIndexAny(gap, ",，、/"); i >= 0 {
		_, size := utf8.DecodeRuneInString(gap[i:])
		return from + i, from + i + size
	}
	if len(leading) == 0 {
		return to, to
	}

	cut := len(gap)
	pulled := map[string]bool{}
	cues := s.cues(gap)
	for k := len(cues) - 1; k >= 0; k-- {
		c := cues[k]
		if c.End > cut || !leading[c.kind] || pulled[c.kind] || strings.TrimSpace(gap[c.End:cut]) != "" {
			break
		}
		pulled[c.kind] = true
		cut = c.Start
	}
	return from + cut, from + cut
}

const (
	cueDirection  = "direction"
	cueOptionType = "option_type"
)

type cue struct {
	keywords.Match
	kind string
}

// cues returns the direction and option-type words in text, in order
func (s *Splitter) cues(text string) []cue {
	spans := s.scanner.Scan(text)
	var out []cue
	for _, m := range FindDirections(text, spans, s.tables) {
		out = append(out, cue{Match: m, kind: cueDirection})
	}
	for _, m := range FindOptionTypes(text, spans, s.tables) {
		out = append(out, cue{Match: m, kind: cueOptionType})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// cueKinds reports which kinds of cue occur in text
func (s *Splitter) cueKinds(text string) map[string]bool {
	kinds := map[string]bool{}
	for _, c := range s.cues(text) {
		kinds[c.kind] = true
	}
	return kinds
}

// hasLegCue reports whether text can stand as a leg on its own: it names
// a contract, a strike, a moneyness or an option type
func (s *Splitter) hasLegCue(text string) bool {
	spans := s.scanner.Scan(text)
	for _, sp := range spans {
		switch sp.Kind {
		case KindContract, KindStrike, KindMoneyness:
			return true
		}
	}
	return len(FindOptionTypes(text, spans, s.tables)) > 0
}

// foldUncued merges cue-less drafts into the previous draft, or into the
// next one when nothing precedes them
func foldUncued(drafts []draft) []draft {
	var out []draft
	var pending []draft

	for _, d := range drafts {
		if !d.cued {
			if len(out) > 0 {
				last := &out[len(out)-1]
				last.text += " " + d.text
				last.end = d.end
				continue
			}
			pending = append(pending, d)
			continue
		}
		for i := len(pending) - 1; i >= 0; i-- {
			d.text = pending[i].text + " " + d.text
			d.start = pending[i].start
		}
		pending = nil
		out = append(out, d)
	}

	if len(out) == 0 && len(pending) > 0 {
		merged := pending[0]
		for _, p := range pending[1:] {
			merged.text += " " + p.text
			merged.end = p.end
		}
		out = append(out, merged)
	}
	return out
}

func appendTrimmed(out []segment, text string, start, end int) []segment {
	if start >= end {
		return out
	}
	piece := text[start:end]
	trimmed := strings.TrimSpace(piece)
	if trimmed == "" {
		return out
	}
	lead := strings.Index(piece, trimmed)
	return append(out, segment{start: start + lead, end: start + lead + len(trimmed)})
}
