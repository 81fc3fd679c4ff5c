package detect

import (
	"sort"
	"time"

	"github.com/calloway/cadence/internal/model"
)

// candidateGroup is one (merchant, direction, settlement account) bucket of
// chronologically sorted transactions.
type candidateGroup struct {
	merchantGroupID string
	merchantName    string
	settlementID    string
	direction       model.TransactionDirection
	txns            []model.Transaction
}

type groupKey struct {
	merchantGroupID string
	settlementID    string
	direction       model.TransactionDirection
}

// groupCandidates partitions eligible transactions into candidate groups.
// Transactions without a merchant group, or linked only to system/buffer
// categories, are excluded; so are groups too small to ever form a pattern.
func groupCandidates(cfg *Config, txns []model.Transaction) []candidateGroup {
	buckets := make(map[groupKey][]model.Transaction)

	for _, txn := range txns {
		if txn.MerchantGroupID == "" {
			continue
		}
		if !txn.HasRealCategory() {
			continue
		}
		key := groupKey{
			merchantGroupID: txn.MerchantGroupID,
			settlementID:    txn.SettlementID(),
			direction:       txn.Direction,
		}
		buckets[key] = append(buckets[key], txn)
	}

	groups := make([]candidateGroup, 0, len(buckets))
	for key, bucket := range buckets {
		if len(bucket) < cfg.MinGroupSize {
			continue
		}
		sort.Slice(bucket, func(i, j int) bool {
			return bucket[i].Date.Before(bucket[j].Date)
		})
		groups = append(groups, candidateGroup{
			merchantGroupID: key.merchantGroupID,
			merchantName:    bucket[len(bucket)-1].MerchantName,
			settlementID:    key.settlementID,
			direction:       key.direction,
			txns:            bucket,
		})
	}

	// Stable order keeps runs reproducible regardless of map iteration.
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].merchantGroupID != groups[j].merchantGroupID {
			return groups[i].merchantGroupID < groups[j].merchantGroupID
		}
		if groups[i].settlementID != groups[j].settlementID {
			return groups[i].settlementID < groups[j].settlementID
		}
		return groups[i].direction < groups[j].direction
	})

	return groups
}

// daysBetween returns the whole-day distance from a to b, ignoring any time
// component on either date.
func daysBetween(a, b time.Time) float64 {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return db.Sub(da).Hours() / 24
}

// dayGaps returns consecutive day gaps for date-sorted transactions.
func dayGaps(txns []model.Transaction) []float64 {
	if len(txns) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(txns)-1)
	for i := 1; i < len(txns); i++ {
		gaps = append(gaps, daysBetween(txns[i-1].Date, txns[i].Date))
	}
	return gaps
}
