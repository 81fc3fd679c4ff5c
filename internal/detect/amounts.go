package detect

import (
	"math"
	"sort"

	"github.com/calloway/cadence/internal/model"
)

// amountGroup is a subset of a segment sharing an exact or similar amount,
// sorted ascending by date.
type amountGroup struct {
	txns  []model.Transaction
	exact bool
}

func roundCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// groupByExactAmount buckets a segment by cent-rounded amount. Buckets of
// MinExactGroupSize or more become candidate groups. Two-transaction buckets
// are promoted only when the segment is large enough and carries multiple
// distinct amounts, which is the signature of a recent price change.
func groupByExactAmount(cfg *Config, segment []model.Transaction) []amountGroup {
	buckets := make(map[int64][]model.Transaction)
	for _, txn := range segment {
		cents := roundCents(txn.Amount)
		buckets[cents] = append(buckets[cents], txn)
	}

	keys := make([]int64, 0, len(buckets))
	for cents := range buckets {
		keys = append(keys, cents)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	distinctAmounts := len(buckets)

	var groups []amountGroup
	for _, cents := range keys {
		bucket := buckets[cents]
		switch {
		case len(bucket) >= cfg.MinExactGroupSize:
			groups = append(groups, amountGroup{txns: bucket, exact: true})
		case len(bucket) == 2 && len(segment) >= cfg.PromoteSegmentSize && distinctAmounts >= 2:
			groups = append(groups, amountGroup{txns: bucket, exact: true})
		}
	}

	for i := range groups {
		sortByDate(groups[i].txns)
	}

	return groups
}

// groupBySimilarAmount clusters transactions whose amounts sit within a
// small relative tolerance of each other. Used only when exact grouping
// found nothing; it catches bills that drift a little cycle to cycle.
func groupBySimilarAmount(cfg *Config, segment []model.Transaction) []amountGroup {
	if len(segment) == 0 {
		return nil
	}

	byAmount := make([]model.Transaction, len(segment))
	copy(byAmount, segment)
	sort.Slice(byAmount, func(i, j int) bool {
		if byAmount[i].Amount != byAmount[j].Amount {
			return byAmount[i].Amount < byAmount[j].Amount
		}
		return byAmount[i].Date.Before(byAmount[j].Date)
	})

	var groups []amountGroup
	var cluster []model.Transaction
	base := byAmount[0].Amount

	flush := func() {
		if len(cluster) >= cfg.MinSimilarGroupSize {
			sorted := make([]model.Transaction, len(cluster))
			copy(sorted, cluster)
			sortByDate(sorted)
			groups = append(groups, amountGroup{txns: sorted})
		}
	}

	for _, txn := range byAmount {
		if len(cluster) == 0 || withinTolerance(txn.Amount, base, cfg.SimilarAmountTolerance) {
			cluster = append(cluster, txn)
			continue
		}
		flush()
		cluster = []model.Transaction{txn}
		base = txn.Amount
	}
	flush()

	return groups
}

func withinTolerance(amount, base, tolerance float64) bool {
	if base == 0 {
		return amount == 0
	}
	return math.Abs(amount-base)/math.Abs(base) <= tolerance
}

func sortByDate(txns []model.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
}
