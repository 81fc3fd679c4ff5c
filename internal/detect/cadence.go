package detect

import (
	"github.com/calloway/cadence/internal/model"
	"github.com/calloway/cadence/internal/stats"
)

// frequencyBucket maps a median-interval window onto a discrete frequency.
type frequencyBucket struct {
	frequency model.Frequency
	minDays   float64
	maxDays   float64
}

// Intervals that fall between buckets fail inference outright; mislabeling
// an irregular merchant is worse than skipping it.
var frequencyBuckets = []frequencyBucket{
	{model.FrequencyDaily, 0.5, 1.5},
	{model.FrequencyWeekly, 5.5, 9},
	{model.FrequencyBiweekly, 11, 17},
	{model.FrequencyMonthly, 26, 35},
	{model.FrequencyBimonthly, 55, 70},
	{model.FrequencyQuarterly, 80, 100},
	{model.FrequencyYearly, 330, 400},
}

func bucketFor(medianInterval float64) (model.Frequency, bool) {
	for _, b := range frequencyBuckets {
		if medianInterval >= b.minDays && medianInterval <= b.maxDays {
			return b.frequency, true
		}
	}
	return "", false
}

func anchorsToDayOfMonth(freq model.Frequency) bool {
	switch freq {
	case model.FrequencyMonthly, model.FrequencyBimonthly, model.FrequencyQuarterly, model.FrequencyYearly:
		return true
	}
	return false
}

func anchorsToWeekday(freq model.Frequency) bool {
	return freq == model.FrequencyWeekly || freq == model.FrequencyBiweekly
}

// inferCadenceFromDates infers a cadence from a date-sorted transaction run.
// Needs at least three transactions: a single gap carries no spread
// information, so median/MAD on it would be fiction.
func inferCadenceFromDates(txns []model.Transaction) (model.Cadence, bool) {
	if len(txns) < 3 {
		return model.Cadence{}, false
	}

	gaps := dayGaps(txns)
	medianInterval := stats.Median(gaps)
	if medianInterval <= 0 {
		return model.Cadence{}, false
	}
	mad := stats.MedianAbsoluteDeviation(gaps, medianInterval)

	freq, ok := bucketFor(medianInterval)
	if !ok {
		return model.Cadence{}, false
	}

	cadence := model.Cadence{
		Frequency:      freq,
		MedianInterval: medianInterval,
		MAD:            mad,
		DayOfWeek:      -1,
	}

	switch {
	case anchorsToDayOfMonth(freq):
		cadence.DayOfMonth = dominantDayOfMonth(txns)
	case anchorsToWeekday(freq):
		cadence.DayOfWeek = dominantDayOfWeek(txns)
	}

	return cadence, true
}

// inferCadence resolves a cadence for an amount group, widening the evidence
// pool when the group alone is too small. The pools are tried in a fixed
// order and the first success wins:
//  1. the amount group itself,
//  2. every same-rounded-amount transaction across the whole candidate group,
//  3. the whole candidate group regardless of amount,
//  4. the full segment.
func inferCadence(group *candidateGroup, segment, amountTxns []model.Transaction) (model.Cadence, bool) {
	if cadence, ok := inferCadenceFromDates(amountTxns); ok {
		return cadence, true
	}

	cents := roundCents(amountTxns[0].Amount)
	var sameAmount []model.Transaction
	for _, txn := range group.txns {
		if roundCents(txn.Amount) == cents {
			sameAmount = append(sameAmount, txn)
		}
	}

	pools := [][]model.Transaction{sameAmount, group.txns, segment}
	for _, pool := range pools {
		if cadence, ok := inferCadenceFromDates(pool); ok {
			return cadence, true
		}
	}

	return model.Cadence{}, false
}

// dominantDayOfMonth returns the most common calendar day across the
// transactions. A transaction on the last day of a short month counts as
// day 31 so that Jan 31 / Feb 28 / Mar 31 sequences agree on one anchor.
func dominantDayOfMonth(txns []model.Transaction) int {
	counts := make(map[int]int)
	for _, txn := range txns {
		counts[anchorDay(txn.Date.Year(), int(txn.Date.Month()), txn.Date.Day())]++
	}

	best, bestCount := 0, 0
	for day, count := range counts {
		if count > bestCount || (count == bestCount && day > best) {
			best, bestCount = day, count
		}
	}
	return best
}

// anchorDay maps a date's day to its anchor value, treating month-end as 31.
func anchorDay(year, month, day int) int {
	if day == lastDayOfMonth(year, month) {
		return 31
	}
	return day
}

func lastDayOfMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	}
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 29
	}
	return 28
}

// dominantDayOfWeek returns the most common weekday (0=Sunday).
func dominantDayOfWeek(txns []model.Transaction) int {
	counts := make(map[int]int)
	for _, txn := range txns {
		counts[int(txn.Date.Weekday())]++
	}

	best, bestCount := -1, 0
	for day := 0; day < 7; day++ {
		if counts[day] > bestCount {
			best, bestCount = day, counts[day]
		}
	}
	return best
}
