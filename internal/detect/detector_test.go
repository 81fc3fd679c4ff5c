package detect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/calloway/cadence/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// monthlyCharges builds n monthly transactions for one merchant, one per
// month starting at start, all on the same calendar day.
func monthlyCharges(merchant string, start time.Time, n int, amount float64) []model.Transaction {
	txns := make([]model.Transaction, 0, n)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, i, 0)
		txns = append(txns, model.Transaction{
			ID:              fmt.Sprintf("%s-%d", merchant, i),
			Date:            d,
			Name:            merchant,
			MerchantName:    merchant,
			MerchantGroupID: merchant,
			AccountID:       "acct-1",
			Amount:          amount,
			Direction:       model.DirectionExpense,
		})
	}
	return txns
}

func TestDetectMonthlySubscription(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	txns := monthlyCharges("netflix", day(2024, time.January, 15), 6, 15.99)
	now := day(2024, time.June, 20)

	patterns := detector.Detect(context.Background(), txns, 12, now)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, "netflix", p.MerchantGroupID)
	assert.Equal(t, model.FrequencyMonthly, p.Frequency)
	assert.Equal(t, model.DirectionExpense, p.Direction)
	assert.InDelta(t, 15.99, p.ExpectedAmount, 0.001)
	assert.InDelta(t, 0, p.AmountVariance, 0.001)
	assert.Equal(t, 6, p.OccurrenceCount)
	assert.Equal(t, 15, p.DayOfMonth)
	assert.Equal(t, day(2024, time.June, 15), p.LastOccurrenceDate)
	assert.Equal(t, day(2024, time.July, 15), p.NextExpectedDate)
	assert.GreaterOrEqual(t, p.ConfidenceScore, 0.5)
	assert.Len(t, p.TransactionIDs, 6)
}

func TestDetectDeterministic(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	now := day(2024, time.June, 20)

	var txns []model.Transaction
	txns = append(txns, monthlyCharges("netflix", day(2024, time.January, 15), 6, 15.99)...)
	txns = append(txns, monthlyCharges("spotify", day(2024, time.January, 3), 6, 9.99)...)
	txns = append(txns, monthlyCharges("gym-co", day(2024, time.January, 28), 6, 45.00)...)

	first := detector.Detect(context.Background(), txns, 12, now)

	// Reversed input order must not change the output.
	reversed := make([]model.Transaction, len(txns))
	for i, txn := range txns {
		reversed[len(txns)-1-i] = txn
	}
	second := detector.Detect(context.Background(), reversed, 12, now)

	assert.Equal(t, first, second)
}

func TestDetectRequiresMinimumEvidence(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	txns := monthlyCharges("netflix", day(2024, time.April, 15), 2, 15.99)
	now := day(2024, time.June, 1)

	patterns := detector.Detect(context.Background(), txns, 12, now)
	assert.Empty(t, patterns)
}

func TestDetectIgnoresTransactionsWithoutMerchantGroup(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	txns := monthlyCharges("netflix", day(2024, time.January, 15), 6, 15.99)
	for i := range txns {
		txns[i].MerchantGroupID = ""
	}
	now := day(2024, time.June, 20)

	patterns := detector.Detect(context.Background(), txns, 12, now)
	assert.Empty(t, patterns)
}

func TestDetectIgnoresSystemCategoryTransactions(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	txns := monthlyCharges("envelope-transfer", day(2024, time.January, 15), 6, 200.00)
	for i := range txns {
		txns[i].Categories = []model.CategoryAssignment{
			{CategoryID: "transfer", IsSystem: true},
		}
	}
	now := day(2024, time.June, 20)

	patterns := detector.Detect(context.Background(), txns, 12, now)
	assert.Empty(t, patterns)
}

func TestDetectLapsedSubscriptionStaysDead(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	// Cancelled in April; eight months of silence since.
	txns := monthlyCharges("old-news", day(2023, time.January, 10), 4, 12.00)
	now := day(2023, time.December, 15)

	patterns := detector.Detect(context.Background(), txns, 12, now)
	assert.Empty(t, patterns)
}

func TestDetectResubscriptionUsesLastSegmentOnly(t *testing.T) {
	detector := NewDetector(DefaultConfig())

	// Old run, long gap, then a fresh run at a new price.
	var txns []model.Transaction
	txns = append(txns, monthlyCharges("streamco", day(2023, time.January, 5), 4, 11.99)...)
	txns = append(txns, monthlyCharges("streamco", day(2024, time.January, 5), 4, 14.99)...)
	now := day(2024, time.April, 10)

	patterns := detector.Detect(context.Background(), txns, 18, now)

	require.Len(t, patterns, 1)
	assert.InDelta(t, 14.99, patterns[0].ExpectedAmount, 0.001)
	assert.Equal(t, 4, patterns[0].OccurrenceCount)
}

func TestDetectSplitsMultipleSubscriptionsPerMerchant(t *testing.T) {
	detector := NewDetector(DefaultConfig())

	var txns []model.Transaction
	txns = append(txns, monthlyCharges("appletv", day(2024, time.January, 10), 6, 9.99)...)
	for i, txn := range monthlyCharges("appletv", day(2024, time.January, 22), 6, 19.99) {
		txn.ID = fmt.Sprintf("appletv-b-%d", i)
		txns = append(txns, txn)
	}
	now := day(2024, time.June, 25)

	patterns := detector.Detect(context.Background(), txns, 12, now)

	require.Len(t, patterns, 2)
	assert.InDelta(t, 9.99, patterns[0].ExpectedAmount, 0.001)
	assert.InDelta(t, 19.99, patterns[1].ExpectedAmount, 0.001)
	assert.Equal(t, model.FrequencyMonthly, patterns[0].Frequency)
	assert.Equal(t, model.FrequencyMonthly, patterns[1].Frequency)
}

func TestDetectPriceChangeKeepsNewAmount(t *testing.T) {
	detector := NewDetector(DefaultConfig())

	// Two charges at the old price, two at the new one. Only the new-price
	// pattern is both promotable and recent.
	var txns []model.Transaction
	txns = append(txns, monthlyCharges("musicbox", day(2024, time.January, 8), 2, 9.99)...)
	for i, txn := range monthlyCharges("musicbox", day(2024, time.March, 8), 2, 12.99) {
		txn.ID = fmt.Sprintf("musicbox-new-%d", i)
		txns = append(txns, txn)
	}
	now := day(2024, time.April, 12)

	patterns := detector.Detect(context.Background(), txns, 12, now)

	require.Len(t, patterns, 1)
	assert.InDelta(t, 12.99, patterns[0].ExpectedAmount, 0.001)
}

func TestDetectSuppressesRetail(t *testing.T) {
	detector := NewDetector(DefaultConfig())

	// Near-weekly grocery runs with similar but jittery amounts. The cadence
	// is real; the merchant is not a bill.
	dates := []time.Time{
		day(2024, time.January, 1),  // Monday
		day(2024, time.January, 6),  // Saturday
		day(2024, time.January, 15), // Monday
		day(2024, time.January, 21), // Sunday
		day(2024, time.January, 31), // Wednesday
		day(2024, time.February, 5), // Monday
	}
	amounts := []float64{50.12, 49.80, 50.95, 49.10, 50.40, 50.66}

	txns := make([]model.Transaction, len(dates))
	for i := range dates {
		txns[i] = model.Transaction{
			ID:              fmt.Sprintf("grocery-%d", i),
			Date:            dates[i],
			MerchantName:    "Neighborhood Grocery Market",
			MerchantGroupID: "neighborhood-grocery-market",
			AccountID:       "acct-1",
			Amount:          amounts[i],
			Direction:       model.DirectionExpense,
		}
	}
	now := day(2024, time.February, 10)

	patterns := detector.Detect(context.Background(), txns, 12, now)
	assert.Empty(t, patterns)
}

func TestDetectStalePatternRejected(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	txns := monthlyCharges("quiet-sub", day(2024, time.July, 15), 4, 7.99)
	// Last charge mid-October; by late February it is long stale.
	now := day(2025, time.February, 20)

	patterns := detector.Detect(context.Background(), txns, 12, now)
	assert.Empty(t, patterns)
}

func TestDetectVariableAmountUtility(t *testing.T) {
	detector := NewDetector(DefaultConfig())

	amounts := []float64{80.00, 87.00, 95.00, 103.00, 110.00}
	txns := make([]model.Transaction, len(amounts))
	for i, amount := range amounts {
		txns[i] = model.Transaction{
			ID:              fmt.Sprintf("power-%d", i),
			Date:            day(2024, time.January, 10).AddDate(0, i, 0),
			MerchantName:    "City Power and Light",
			MerchantGroupID: "city-power-and-light",
			AccountID:       "acct-1",
			Amount:          amount,
			Direction:       model.DirectionExpense,
		}
	}
	now := day(2024, time.May, 14)

	patterns := detector.Detect(context.Background(), txns, 12, now)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, model.FrequencyMonthly, p.Frequency)
	assert.InDelta(t, 95.00, p.ExpectedAmount, 0.001)
	assert.Equal(t, 5, p.OccurrenceCount)
	assert.Equal(t, 10, p.DayOfMonth)
}

func TestDetectBiweeklyPaycheck(t *testing.T) {
	detector := NewDetector(DefaultConfig())

	start := day(2024, time.January, 5) // Friday
	txns := make([]model.Transaction, 6)
	for i := range txns {
		txns[i] = model.Transaction{
			ID:              fmt.Sprintf("payroll-%d", i),
			Date:            start.AddDate(0, 0, 14*i),
			MerchantName:    "Acme Corp Payroll",
			MerchantGroupID: "acme-corp-payroll",
			AccountID:       "acct-1",
			Amount:          2400.00,
			Direction:       model.DirectionIncome,
		}
	}
	now := day(2024, time.March, 20)

	patterns := detector.Detect(context.Background(), txns, 12, now)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, model.FrequencyBiweekly, p.Frequency)
	assert.Equal(t, model.DirectionIncome, p.Direction)
	assert.Equal(t, int(time.Friday), p.DayOfWeek)
	assert.InDelta(t, 2400.00, p.ExpectedAmount, 0.001)
}

func TestDetectHonorsContextCancellation(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	txns := monthlyCharges("netflix", day(2024, time.January, 15), 6, 15.99)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Must return promptly without panicking; partial output is acceptable.
	assert.NotPanics(t, func() {
		detector.Detect(ctx, txns, 12, day(2024, time.June, 20))
	})
}

func TestDominantCategory(t *testing.T) {
	txns := []model.Transaction{
		{Categories: []model.CategoryAssignment{{CategoryID: "subscriptions"}}},
		{Categories: []model.CategoryAssignment{{CategoryID: "subscriptions"}}},
		{Categories: []model.CategoryAssignment{{CategoryID: "entertainment"}}},
		{Categories: []model.CategoryAssignment{{CategoryID: "transfer", IsSystem: true}}},
	}
	assert.Equal(t, "subscriptions", dominantCategory(txns))

	assert.Empty(t, dominantCategory([]model.Transaction{{}}))
}
