// pkg/asli/range.go
package asli

import (
	"strconv"
	"strings"
)

// Range is a half-open [start, stop) window over a collection with an optional
// step. Omitted bounds default to the start and end of the collection.
// Negative bounds clamp to zero.
type Range struct {
	start, stop       int
	hasStart, hasStop bool
	step              int
}

// Span selects [start, stop).
func Span(start, stop int) Range {
	return Range{start: start, stop: stop, hasStart: true, hasStop: true}
}

// From selects [start, len).
func From(start int) Range { return Range{start: start, hasStart: true} }

// Until selects [0, stop).
func Until(stop int) Range { return Range{stop: stop, hasStop: true} }

// Whole selects every element.
func Whole() Range { return Range{} }

// Every returns a copy of r taking every step-th element. Steps below one mean one.
func (r Range) Every(step int) Range {
	r.step = step
	return r
}

// indices returns the positions selected from a collection of length n.
func (r Range) indices(n int) []int {
	start, stop, step := 0, n, r.step
	if r.hasStart {
		start = clamp(r.start, n)
	}
	if r.hasStop {
		stop = clamp(r.stop, n)
	}
	if step < 1 {
		step = 1
	}
	var out []int
	for i := start; i < stop; i += step {
		out = append(out, i)
	}
	return out
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}

// String renders the range in slice notation, e.g. "1:3", ":2", "1:4:2".
func (r Range) String() string {
	var sb strings.Builder
	if r.hasStart {
		sb.WriteString(strconv.Itoa(r.start))
	}
	sb.WriteByte(':')
	if r.hasStop {
		sb.WriteString(strconv.Itoa(r.stop))
	}
	if r.step != 0 {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(r.step))
	}
	return sb.String()
}
