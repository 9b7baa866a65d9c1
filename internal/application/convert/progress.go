package convert

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var timestampPattern = regexp.MustCompile(`time=([0-9:.]+)`)

// NextProgress maps one line of encoder diagnostics to an updated progress
// percentage. The result never drops below prev, and while the encoder is
// still running it is capped at 99 so that only a stage transition can
// report full completion. With an unknown duration the line is ignored.
func NextProgress(prev int, duration float64, line string) int {
	match := timestampPattern.FindStringSubmatch(line)
	if match == nil {
		return prev
	}

	seconds, ok := parseTimestamp(match[1])
	if !ok || duration <= 0 {
		return prev
	}

	ratio := seconds / duration
	if ratio > 0.99 {
		ratio = 0.99
	}

	percent := int(math.Round(ratio * 100))
	if percent > prev {
		return percent
	}
	return prev
}

func parseTimestamp(value string) (float64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}

	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
