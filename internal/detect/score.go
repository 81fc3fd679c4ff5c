package detect

import (
	"math"
	"time"

	"github.com/calloway/cadence/internal/model"
	"github.com/calloway/cadence/internal/stats"
)

// validation carries the outcome of pattern validation with the reasons any
// hard check failed.
type validation struct {
	reasons []string
	valid   bool
}

// validatePattern applies the hard acceptance checks: the group's dates must
// honor the inferred anchor, the amounts must cluster tightly around their
// median, and the group must not contain an unexplained internal gap.
// checkAmounts is false for the variable-amount path, where loose amounts
// are the whole point.
func validatePattern(cfg *Config, txns []model.Transaction, cadence model.Cadence, checkAmounts bool) validation {
	v := validation{valid: true}

	if !anchorsConsistent(cfg, txns, cadence) {
		v.valid = false
		v.reasons = append(v.reasons, "dates drift from inferred anchor")
	}

	if checkAmounts {
		if cv := amountCV(txns); cv > cfg.MaxAmountCV {
			v.valid = false
			v.reasons = append(v.reasons, "amounts too dispersed")
		}
	}

	if hasOrphanGap(cfg, txns, cadence) {
		v.valid = false
		v.reasons = append(v.reasons, "unexplained gap inside group")
	}

	return v
}

func anchorsConsistent(cfg *Config, txns []model.Transaction, cadence model.Cadence) bool {
	switch {
	case anchorsToDayOfMonth(cadence.Frequency) && cadence.DayOfMonth > 0:
		hits := 0
		for _, txn := range txns {
			day := anchorDay(txn.Date.Year(), int(txn.Date.Month()), txn.Date.Day())
			if monthDayDistance(day, cadence.DayOfMonth) <= cfg.AnchorDayTolerance {
				hits++
			}
		}
		return float64(hits) >= cfg.AnchorMinFraction*float64(len(txns))
	case anchorsToWeekday(cadence.Frequency) && cadence.DayOfWeek >= 0:
		hits := 0
		for _, txn := range txns {
			if weekdayDistance(int(txn.Date.Weekday()), cadence.DayOfWeek) <= cfg.AnchorWeekdayTolerance {
				hits++
			}
		}
		return float64(hits) >= cfg.AnchorMinFraction*float64(len(txns))
	}
	return true
}

// monthDayDistance is circular over a nominal 31-day month so that day 1 and
// day 31 sit two apart, not thirty.
func monthDayDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrapped := 31 - d; wrapped < d {
		d = wrapped
	}
	return d
}

func weekdayDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrapped := 7 - d; wrapped < d {
		d = wrapped
	}
	return d
}

// hasOrphanGap reports an internal gap far larger than the cadence explains.
// The group survived segmentation, but segmentation thresholds are generous;
// a monthly group hiding a five-month hole is not currently recurring.
func hasOrphanGap(cfg *Config, txns []model.Transaction, cadence model.Cadence) bool {
	limit := cfg.OrphanGapFactor * cadence.MedianInterval
	if limit < cfg.OrphanGapFloorDays {
		limit = cfg.OrphanGapFloorDays
	}
	for _, gap := range dayGaps(txns) {
		if gap > limit {
			return true
		}
	}
	return false
}

// scorePattern combines interval regularity, amount consistency, and
// occurrence count into a confidence score in [0, 1]. Occurrence count uses
// n/(n+2) for diminishing returns; twelve occurrences should not be six
// times more convincing than two.
func scorePattern(cfg *Config, txns []model.Transaction, cadence model.Cadence) float64 {
	regularity := 0.0
	if cadence.MedianInterval > 0 {
		regularity = clamp01(1 - cadence.MAD/cadence.MedianInterval)
	}

	consistency := clamp01(1 - amountCV(txns)/cfg.AmountCVCeiling)

	n := float64(len(txns))
	occurrences := n / (n + 2)

	return 0.45*regularity + 0.35*consistency + 0.2*occurrences
}

// isRecent gates out patterns whose last occurrence is stale relative to
// their own cadence. Biweekly gets a fixed floor so a single missed paycheck
// cycle is tolerated.
func isRecent(cfg *Config, lastDate time.Time, cadence model.Cadence, now time.Time) bool {
	limit := cfg.RecencyFactor * cadence.MedianInterval
	if cadence.Frequency == model.FrequencyBiweekly && limit < cfg.BiweeklyRecencyFloorDays {
		limit = cfg.BiweeklyRecencyFloorDays
	}
	return daysBetween(lastDate, now) <= limit
}

// amountCV returns the coefficient of variation of the group's amounts
// around their median.
func amountCV(txns []model.Transaction) float64 {
	amounts := amountsOf(txns)
	median := stats.Median(amounts)
	if median <= 0 {
		return 0
	}
	return math.Sqrt(stats.Variance(amounts, median)) / median
}

func amountsOf(txns []model.Transaction) []float64 {
	amounts := make([]float64, len(txns))
	for i, txn := range txns {
		amounts[i] = txn.Amount
	}
	return amounts
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
