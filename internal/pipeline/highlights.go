package pipeline

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipforge/internal/store"
)

const titleWordLimit = 8

// SelectHighlights ranks segments by duration, longest first, and returns up
// to n of them. Equal durations keep their transcript order.
func SelectHighlights(segments []store.Segment, n int) []store.Segment {
	if n <= 0 || len(segments) == 0 {
		return nil
	}
	ranked := slices.Clone(segments)
	slices.SortStableFunc(ranked, func(a, b store.Segment) int {
		da, db := a.EndSec-a.StartSec, b.EndSec-b.StartSec
		switch {
		case da > db:
			return -1
		case da < db:
			return 1
		}
		return 0
	})
	return ranked[:min(n, len(ranked))]
}

// ClipTitle builds a short title-cased label from segment text.
func ClipTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	truncated := len(words) > titleWordLimit
	if truncated {
		words = words[:titleWordLimit]
	}
	title := cases.Title(language.English, cases.NoLower).String(strings.Join(words, " "))
	if truncated {
		title += "…"
	}
	return title
}

// clampWindow bounds a segment to a known project duration. It reports false
// when nothing of the window remains.
func clampWindow(seg store.Segment, duration float64) (float64, float64, bool) {
	start, end := max(seg.StartSec, 0), seg.EndSec
	if duration > 0 {
		end = min(end, duration)
	}
	return start, end, end > start
}
