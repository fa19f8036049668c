package transcription

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// MockSegmentSeconds is the fixed span of each mock segment.
	MockSegmentSeconds = 30.0
	// MockMaxSegments caps the mock transcript length.
	MockMaxSegments = 200
	// MockProviderName identifies mock transcripts.
	MockProviderName = "mock"
)

// Mock synthesizes a deterministic transcript of fixed-length sequential
// segments covering [0, durationSec). Each segment names its index and time
// range. Unknown or non-positive durations produce no segments.
func Mock(durationSec float64) Result {
	result := Result{Provider: MockProviderName, Language: "en"}
	if durationSec <= 0 || math.IsNaN(durationSec) || math.IsInf(durationSec, 0) {
		result.Segments = []Segment{}
		return result
	}

	count := int(math.Ceil(durationSec / MockSegmentSeconds))
	count = min(count, MockMaxSegments)

	segments := make([]Segment, 0, count)
	texts := make([]string, 0, count)
	for i := range count {
		start := float64(i) * MockSegmentSeconds
		end := math.Min(start+MockSegmentSeconds, durationSec)
		text := fmt.Sprintf("Segment %d (%ss-%ss)", i, formatSec(start), formatSec(end))
		segments = append(segments, Segment{
			ID:       "seg_" + strconv.Itoa(i),
			StartSec: start,
			EndSec:   end,
			Text:     text,
		})
		texts = append(texts, text)
	}
	result.Segments = segments
	result.Text = strings.Join(texts, " ")
	return result
}

func formatSec(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
