// Package resolver turns the cue spans of one leg into typed quote fields.
//
// Every resolver is a pure function of (leg, context, tables). A resolver
// that cannot decide returns an absent Field; none of them return errors
// for ambiguous text, and none of them look at another resolver's output.
package resolver

import (
	"math"

	"github.com/shopspring/decimal"
)

// Provenance records where a field value came from (diagnostics only)
type Provenance string

const (
	Extracted Provenance = "extracted" // read directly from the text
	Computed  Provenance = "computed"  // derived: year inference, date arithmetic
	Hinted    Provenance = "hint"      // supplied by the caller
)

// Field is a value-or-absent result with its provenance
type Field[T any] struct {
	Value  T
	Valid  bool
	Source Provenance
	Cue    string
}

// Resolved wraps a confident value
func Resolved[T any](v T, src Provenance, cue string) Field[T] {
	return Field[T]{Value: v, Valid: true, Source: src, Cue: cue}
}

// Absent is the null result
func Absent[T any]() Field[T] {
	return Field[T]{}
}

// Ptr returns nil for an absent field
func (f Field[T]) Ptr() *T {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// parseNumber reads a decimal literal exactly and converts it once
func parseNumber(s string) (float64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// distinct keeps first-seen order of unique keys
type distinct[K comparable] struct {
	keys []K
	cues map[K]string
}

func (d *distinct[K]) add(k K, cue string) {
	if d.cues == nil {
		d.cues = make(map[K]string)
	}
	if _, ok := d.cues[k]; ok {
		return
	}
	d.cues[k] = cue
	d.keys = append(d.keys, k)
}

// single returns the only key when exactly one was seen
func (d *distinct[K]) single() (K, string, bool) {
	var zero K
	if len(d.keys) != 1 {
		return zero, "", false
	}
	return d.keys[0], d.cues[d.keys[0]], true
}

func (d *distinct[K]) count() int {
	return len(d.keys)
}
