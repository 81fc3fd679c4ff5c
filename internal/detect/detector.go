package detect

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/calloway/cadence/internal/model"
	"github.com/calloway/cadence/internal/stats"
)

// Detector runs the full recurring-pattern detection pipeline over an
// in-memory transaction snapshot. It is stateless and deterministic: the
// same snapshot, lookback, and reference time always produce the same
// patterns.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect finds all currently recurring patterns in the transaction set.
// The reference time now is explicit so callers and tests control the clock.
// Candidate groups are independent, so they fan out across a worker pool;
// output ordering is normalized afterwards.
func (d *Detector) Detect(ctx context.Context, transactions []model.Transaction, lookbackMonths int, now time.Time) []model.RecurringPattern {
	if lookbackMonths <= 0 {
		lookbackMonths = 12
	}
	cutoff := now.AddDate(0, -lookbackMonths, 0)

	eligible := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if txn.Date.Before(cutoff) || txn.Date.After(now) {
			continue
		}
		eligible = append(eligible, txn)
	}

	groups := groupCandidates(&d.cfg, eligible)
	if len(groups) == 0 {
		return nil
	}

	workers := d.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	groupCh := make(chan candidateGroup)
	resultCh := make(chan []model.RecurringPattern, len(groups))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range groupCh {
				resultCh <- d.analyzeGroup(&group, now)
			}
		}()
	}

	for _, group := range groups {
		select {
		case <-ctx.Done():
			// Stop feeding; in-flight groups still drain.
		case groupCh <- group:
			continue
		}
		break
	}
	close(groupCh)
	wg.Wait()
	close(resultCh)

	var patterns []model.RecurringPattern
	for batch := range resultCh {
		patterns = append(patterns, batch...)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].MerchantGroupID != patterns[j].MerchantGroupID {
			return patterns[i].MerchantGroupID < patterns[j].MerchantGroupID
		}
		return patterns[i].ExpectedAmount < patterns[j].ExpectedAmount
	})

	slog.Debug("Detection pass complete",
		"transactions", len(eligible),
		"candidate_groups", len(groups),
		"patterns", len(patterns))

	return patterns
}

// analyzeGroup runs one candidate group through segmentation, amount
// grouping, cadence inference, validation, scoring, and suppression.
func (d *Detector) analyzeGroup(group *candidateGroup, now time.Time) []model.RecurringPattern {
	cfg := &d.cfg

	segment := lastSegment(cfg, group.txns)
	if len(segment) < 2 {
		return nil
	}

	amountGroups := groupByExactAmount(cfg, segment)
	if len(amountGroups) == 0 {
		amountGroups = groupBySimilarAmount(cfg, segment)
	}
	if len(amountGroups) == 0 {
		if pattern := d.analyzeVariableAmount(group, segment, now); pattern != nil {
			return []model.RecurringPattern{*pattern}
		}
		return nil
	}

	var patterns []model.RecurringPattern
	seen := make(map[int64]bool) // one pattern per expected amount

	for _, ag := range amountGroups {
		pattern := d.evaluateAmountGroup(group, segment, ag, now)
		if pattern == nil {
			continue
		}
		key := roundCents(pattern.ExpectedAmount)
		if seen[key] {
			continue
		}
		seen[key] = true
		patterns = append(patterns, *pattern)
	}

	return patterns
}

func (d *Detector) evaluateAmountGroup(group *candidateGroup, segment []model.Transaction, ag amountGroup, now time.Time) *model.RecurringPattern {
	cfg := &d.cfg

	cadence, ok := inferCadence(group, segment, ag.txns)
	if !ok {
		return nil
	}

	if v := validatePattern(cfg, ag.txns, cadence, true); !v.valid {
		slog.Debug("Pattern rejected by validation",
			"merchant", group.merchantName,
			"reasons", v.reasons)
		return nil
	}

	score := scorePattern(cfg, ag.txns, cadence)
	if score < cfg.MinConfidence {
		return nil
	}

	lastDate := ag.txns[len(ag.txns)-1].Date
	if !isRecent(cfg, lastDate, cadence, now) {
		return nil
	}

	amounts := amountsOf(ag.txns)
	expectedAmount := stats.Median(amounts)
	amountVariance := stats.Variance(amounts, expectedAmount)

	rs := retailScore(cfg, group.merchantName, expectedAmount, amountVariance, cadence)
	if rs > cfg.RetailCutoff && !retailOverride(cfg, len(ag.txns), expectedAmount, amountVariance, cadence) {
		slog.Debug("Pattern suppressed as retail",
			"merchant", group.merchantName,
			"retail_score", rs)
		return nil
	}

	return d.buildPattern(group, ag.txns, cadence, expectedAmount, amountVariance, score)
}

// analyzeVariableAmount is the fallback for merchants that never cluster by
// amount: utilities whose bills differ materially each cycle. It looks for a
// cadence across the whole segment and accepts only when the amount spread
// sits in a utility-like band or the name clearly is not retail.
func (d *Detector) analyzeVariableAmount(group *candidateGroup, segment []model.Transaction, now time.Time) *model.RecurringPattern {
	cfg := &d.cfg

	cadence, ok := inferCadenceFromDates(segment)
	if !ok {
		return nil
	}

	if v := validatePattern(cfg, segment, cadence, false); !v.valid {
		return nil
	}

	score := scorePattern(cfg, segment, cadence)
	if score < cfg.MinConfidence {
		return nil
	}

	lastDate := segment[len(segment)-1].Date
	if !isRecent(cfg, lastDate, cadence, now) {
		return nil
	}

	amounts := amountsOf(segment)
	expectedAmount := stats.Median(amounts)
	amountVariance := stats.Variance(amounts, expectedAmount)

	cv := amountCV(segment)
	rs := retailScore(cfg, group.merchantName, expectedAmount, amountVariance, cadence)
	utilityLike := cv >= cfg.UtilityCVMin && cv <= cfg.UtilityCVMax
	if rs > cfg.UtilityRetailCutoff && !utilityLike {
		return nil
	}

	return d.buildPattern(group, segment, cadence, expectedAmount, amountVariance, score)
}

func (d *Detector) buildPattern(group *candidateGroup, txns []model.Transaction, cadence model.Cadence, expectedAmount, amountVariance, score float64) *model.RecurringPattern {
	lastTxn := txns[len(txns)-1]

	ids := make([]string, len(txns))
	for i, txn := range txns {
		ids[i] = txn.ID
	}

	return &model.RecurringPattern{
		MerchantGroupID:    group.merchantGroupID,
		MerchantName:       group.merchantName,
		Frequency:          cadence.Frequency,
		Direction:          group.direction,
		ExpectedAmount:     expectedAmount,
		AmountVariance:     amountVariance,
		ConfidenceScore:    score,
		CategoryID:         dominantCategory(txns),
		AccountID:          lastTxn.AccountID,
		CreditCardID:       lastTxn.CreditCardID,
		OccurrenceCount:    len(txns),
		Interval:           1,
		DayOfMonth:         cadence.DayOfMonth,
		DayOfWeek:          cadence.DayOfWeek,
		LastOccurrenceDate: lastTxn.Date,
		NextExpectedDate:   model.NextExpectedDate(lastTxn.Date, cadence.Frequency, 1, cadence.DayOfMonth, cadence.DayOfWeek),
		TransactionIDs:     ids,
	}
}

// dominantCategory picks the most common real (non-system, non-buffer)
// category across the group to tag the pattern with.
func dominantCategory(txns []model.Transaction) string {
	counts := make(map[string]int)
	for _, txn := range txns {
		for _, c := range txn.Categories {
			if c.IsSystem || c.IsBuffer {
				continue
			}
			counts[c.CategoryID]++
		}
	}

	best, bestCount := "", 0
	for id, count := range counts {
		if count > bestCount || (count == bestCount && id < best) {
			best, bestCount = id, count
		}
	}
	return best
}
