package transcoder

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Interval is a closed silence window in seconds.
type Interval struct {
	StartSec float64
	EndSec   float64
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[0-9]+(?:\.[0-9]+)?)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[0-9]+(?:\.[0-9]+)?)`)
)

// ParseSilence extracts ordered silence intervals from silencedetect output.
// Each silence_start pairs with the next silence_end; a start with no end
// before the stream finishes is dropped.
func ParseSilence(text string) []Interval {
	intervals := make([]Interval, 0)
	var (
		pending    float64
		hasPending bool
	)
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				pending = max(v, 0)
				hasPending = true
			}
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && hasPending {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if v >= pending {
				intervals = append(intervals, Interval{StartSec: pending, EndSec: v})
			}
			hasPending = false
		}
	}
	return intervals
}
