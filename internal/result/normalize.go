package result

import (
	"sort"
	"strings"
)

const (
	// MinScore is the report filter threshold. Regions scoring at or below it are dropped.
	MinScore = 0.7

	// LineTolerance is the maximum top edge distance, in pixels, between a
	// region and the first region of its text line.
	LineTolerance = 10
)

// Normalize prepares one image's regions for serialization: double quotes are
// stripped from the text, low-score and blank regions are dropped and the
// remainder is put into reading order. The input slice is not modified.
//
// Normalize is idempotent.
func Normalize(in []Recognition) []Recognition {
	out := make([]Recognition, 0, len(in))
	for _, r := range in {
		r.Text = Sanitize(r.Text)
		if !Keep(r) {
			continue
		}
		if r.Box != nil {
			r.Box = append(r.Box[:0:0], r.Box...)
		}
		out = append(out, r)
	}
	SortReadingOrder(out)
	return out
}

// Sanitize removes every double quote from s.
func Sanitize(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

// Keep reports whether a region passes the report filter.
func Keep(r Recognition) bool {
	return r.Score > MinScore && strings.TrimSpace(r.Text) != ""
}

// SortReadingOrder orders regions top to bottom, then left to right within a line.
// A region is on the current line when its top edge lies within LineTolerance
// of the line's first region, or when its vertical span overlaps the line's
// span by more than LineTolerance. Regions sharing a top edge join or leave a
// line together. Ties keep detection order.
func SortReadingOrder(rs []Recognition) {
	sort.SliceStable(rs, func(i, j int) bool {
		return top(rs[i]) < top(rs[j])
	})
	for start := 0; start < len(rs); {
		anchor := top(rs[start])
		lineBottom := bottom(rs[start])
		end := start + 1
		for end < len(rs) {
			blockTop := top(rs[end])
			blockEnd := end
			joins := blockTop-anchor < LineTolerance
			for blockEnd < len(rs) && top(rs[blockEnd]) == blockTop {
				if min(lineBottom, bottom(rs[blockEnd]))-blockTop > LineTolerance {
					joins = true
				}
				blockEnd++
			}
			if !joins {
				break
			}
			for _, r := range rs[end:blockEnd] {
				lineBottom = max(lineBottom, bottom(r))
			}
			end = blockEnd
		}
		line := rs[start:end]
		sort.SliceStable(line, func(i, j int) bool {
			return left(line[i]) < left(line[j])
		})
		start = end
	}
}

func top(r Recognition) int {
	if len(r.Box) == 0 {
		return 0
	}
	m := r.Box[0].Y
	for _, p := range r.Box[1:] {
		if p.Y < m {
			m = p.Y
		}
	}
	return m
}

func left(r Recognition) int {
	if len(r.Box) == 0 {
		return 0
	}
	m := r.Box[0].X
	for _, p := range r.Box[1:] {
		if p.X < m {
			m = p.X
		}
	}
	return m
}

func bottom(r Recognition) int {
	if len(r.Box) == 0 {
		return 0
	}
	m := r.Box[0].Y
	for _, p := range r.Box[1:] {
		if p.Y > m {
			m = p.Y
		}
	}
	return m
}
