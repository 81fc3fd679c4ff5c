// Package detect implements recurring-transaction detection: it mines a flat
// transaction history for merchants that charge (or pay) on a regular
// cadence, inferring each pattern's frequency, expected amount, and next
// occurrence while rejecting coincidental repeat purchases.
package detect

// Config holds every tunable heuristic the detector uses. All thresholds
// were tuned empirically; treat them as adjustable, not exact.
type Config struct {
	// RetailKeywords down-weight merchants whose names look like ordinary
	// retail or dining rather than a subscription or bill.
	RetailKeywords []string

	// MinGroupSize is the minimum transaction count for a merchant group to
	// be considered at all.
	MinGroupSize int

	// SegmentGapDays is the minimum day gap that always starts a new
	// segment. SegmentGapFactor scales the group's rough mean interval; the
	// effective threshold is the larger of the two.
	SegmentGapDays   float64
	SegmentGapFactor float64

	// MinExactGroupSize is the minimum bucket size for exact-amount groups.
	// Buckets of 2 are still promoted when the segment has at least
	// PromoteSegmentSize transactions across 2+ distinct amounts (a merchant
	// whose price recently changed).
	MinExactGroupSize   int
	PromoteSegmentSize  int
	MinSimilarGroupSize int

	// SimilarAmountTolerance is the relative tolerance for the
	// similar-amount fallback grouping (utility bills that drift).
	SimilarAmountTolerance float64

	// AnchorDayTolerance bounds how far a transaction may land from the
	// inferred day-of-month anchor. AnchorWeekdayTolerance does the same
	// for weekly anchors. AnchorMinFraction is the share of transactions
	// that must sit within tolerance.
	AnchorDayTolerance     int
	AnchorWeekdayTolerance int
	AnchorMinFraction      float64

	// MaxAmountCV is the largest coefficient of variation an exact or
	// similar amount group may have and still validate.
	MaxAmountCV float64

	// AmountCVCeiling is where amount-consistency scoring bottoms out.
	AmountCVCeiling float64

	// OrphanGapFactor flags a group as currently orphaned when its largest
	// internal gap exceeds this multiple of the median interval
	// (never below OrphanGapFloorDays).
	OrphanGapFactor    float64
	OrphanGapFloorDays float64

	// MinConfidence is the acceptance threshold for the final score.
	MinConfidence float64

	// RecencyFactor bounds how stale the last occurrence may be, as a
	// multiple of the median interval. Biweekly cadences get a fixed floor
	// so one missed paycheck cycle does not kill the pattern.
	RecencyFactor            float64
	BiweeklyRecencyFloorDays float64

	// RetailCutoff discards candidates whose retail score exceeds it.
	// The override thresholds accept strong signals regardless: at least
	// OverrideMinOccurrences occurrences with interval jitter below
	// OverrideMaxJitter and amount variance below OverrideMaxVarianceRatio
	// of the squared expected amount.
	RetailCutoff             float64
	OverrideMinOccurrences   int
	OverrideMaxJitter        float64
	OverrideMaxVarianceRatio float64

	// UtilityCVMin/Max is the coefficient-of-variation band that marks a
	// variable-amount pattern as utility-like; UtilityRetailCutoff is the
	// retail-score bound applied to variable-amount candidates.
	UtilityCVMin        float64
	UtilityCVMax        float64
	UtilityRetailCutoff float64

	// Workers is the number of goroutines analyzing candidate groups.
	Workers int
}

// DefaultConfig returns the tuned default configuration.
func DefaultConfig() Config {
	return Config{
		RetailKeywords: []string{
			"grocery", "market", "supermarket", "foods", "restaurant",
			"cafe", "coffee", "pizza", "burger", "taco", "grill", "deli",
			"bakery", "diner", "liquor", "gas", "fuel", "convenience",
			"pharmacy", "dollar", "mart", "store", "shop", "outlet",
			"wholesale", "depot",
		},
		MinGroupSize:             3,
		SegmentGapDays:           60,
		SegmentGapFactor:         3,
		MinExactGroupSize:        3,
		PromoteSegmentSize:       4,
		MinSimilarGroupSize:      3,
		SimilarAmountTolerance:   0.05,
		AnchorDayTolerance:       3,
		AnchorWeekdayTolerance:   1,
		AnchorMinFraction:        0.66,
		MaxAmountCV:              0.2,
		AmountCVCeiling:          0.3,
		OrphanGapFactor:          3,
		OrphanGapFloorDays:       20,
		MinConfidence:            0.5,
		RecencyFactor:            1.5,
		BiweeklyRecencyFloorDays: 30,
		RetailCutoff:             0.6,
		OverrideMinOccurrences:   4,
		OverrideMaxJitter:        0.15,
		OverrideMaxVarianceRatio: 0.01,
		UtilityCVMin:             0.1,
		UtilityCVMax:             0.4,
		UtilityRetailCutoff:      0.6,
		Workers:                  4,
	}
}
