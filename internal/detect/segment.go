package detect

import (
	"github.com/calloway/cadence/internal/model"
)

// splitSegments breaks a date-sorted transaction run into segments wherever
// the gap between neighbors exceeds the segmentation threshold. The
// threshold is the larger of SegmentGapDays and SegmentGapFactor times the
// group's own rough mean interval, so slow cadences (quarterly, yearly) are
// not shredded by their normal spacing.
func splitSegments(cfg *Config, txns []model.Transaction) [][]model.Transaction {
	if len(txns) == 0 {
		return nil
	}
	if len(txns) == 1 {
		return [][]model.Transaction{txns}
	}

	gaps := dayGaps(txns)
	var sum float64
	for _, g := range gaps {
		sum += g
	}
	meanInterval := sum / float64(len(gaps))

	threshold := cfg.SegmentGapDays
	if scaled := cfg.SegmentGapFactor * meanInterval; scaled > threshold {
		threshold = scaled
	}

	var segments [][]model.Transaction
	start := 0
	for i := 1; i < len(txns); i++ {
		if daysBetween(txns[i-1].Date, txns[i].Date) > threshold {
			segments = append(segments, txns[start:i])
			start = i
		}
	}
	segments = append(segments, txns[start:])

	return segments
}

// lastSegment returns the most recent run of activity. Older segments are
// lapsed recurrences and must never resurface as active patterns.
func lastSegment(cfg *Config, txns []model.Transaction) []model.Transaction {
	segments := splitSegments(cfg, txns)
	if len(segments) == 0 {
		return nil
	}
	return segments[len(segments)-1]
}
