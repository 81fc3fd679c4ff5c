package detect

import (
	"testing"
	"time"

	"github.com/calloway/cadence/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		name     string
		interval float64
		want     model.Frequency
		ok       bool
	}{
		{"daily", 1, model.FrequencyDaily, true},
		{"weekly", 7, model.FrequencyWeekly, true},
		{"biweekly", 14, model.FrequencyBiweekly, true},
		{"monthly low edge", 26, model.FrequencyMonthly, true},
		{"monthly high edge", 35, model.FrequencyMonthly, true},
		{"bimonthly", 61, model.FrequencyBimonthly, true},
		{"quarterly", 91, model.FrequencyQuarterly, true},
		{"yearly", 365, model.FrequencyYearly, true},
		{"between weekly and biweekly", 10, "", false},
		{"between monthly and bimonthly", 45, "", false},
		{"beyond yearly", 500, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freq, ok := bucketFor(tt.interval)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, freq)
			}
		})
	}
}

func TestInferCadenceFromDates(t *testing.T) {
	t.Run("too few transactions", func(t *testing.T) {
		txns := monthlyCharges("x", day(2024, time.January, 15), 2, 10)
		_, ok := inferCadenceFromDates(txns)
		assert.False(t, ok)
	})

	t.Run("monthly with day anchor", func(t *testing.T) {
		txns := monthlyCharges("x", day(2024, time.January, 15), 5, 10)
		cadence, ok := inferCadenceFromDates(txns)
		require.True(t, ok)
		assert.Equal(t, model.FrequencyMonthly, cadence.Frequency)
		assert.Equal(t, 15, cadence.DayOfMonth)
		assert.Equal(t, -1, cadence.DayOfWeek)
	})

	t.Run("weekly with weekday anchor", func(t *testing.T) {
		start := day(2024, time.January, 3) // Wednesday
		txns := make([]model.Transaction, 4)
		for i := range txns {
			txns[i] = model.Transaction{Date: start.AddDate(0, 0, 7*i)}
		}
		cadence, ok := inferCadenceFromDates(txns)
		require.True(t, ok)
		assert.Equal(t, model.FrequencyWeekly, cadence.Frequency)
		assert.Equal(t, int(time.Wednesday), cadence.DayOfWeek)
		assert.Equal(t, 0, cadence.DayOfMonth)
	})

	t.Run("unbucketable interval fails", func(t *testing.T) {
		txns := make([]model.Transaction, 4)
		for i := range txns {
			txns[i] = model.Transaction{Date: day(2024, time.January, 1).AddDate(0, 0, 45*i)}
		}
		_, ok := inferCadenceFromDates(txns)
		assert.False(t, ok)
	})

	t.Run("same-day duplicates fail", func(t *testing.T) {
		txns := make([]model.Transaction, 3)
		for i := range txns {
			txns[i] = model.Transaction{Date: day(2024, time.January, 1)}
		}
		_, ok := inferCadenceFromDates(txns)
		assert.False(t, ok)
	})
}

func TestInferCadenceWidensEvidencePool(t *testing.T) {
	// Two transactions at the promoted amount cannot carry a cadence alone;
	// the whole candidate group can.
	group := &candidateGroup{
		txns: append(
			monthlyCharges("m", day(2024, time.January, 8), 2, 9.99),
			monthlyCharges("m", day(2024, time.March, 8), 2, 12.99)...),
	}
	segment := group.txns
	amountTxns := segment[2:]

	cadence, ok := inferCadence(group, segment, amountTxns)
	require.True(t, ok)
	assert.Equal(t, model.FrequencyMonthly, cadence.Frequency)
	assert.Equal(t, 8, cadence.DayOfMonth)
}

func TestDominantDayOfMonth(t *testing.T) {
	t.Run("plain majority", func(t *testing.T) {
		txns := []model.Transaction{
			{Date: day(2024, time.January, 15)},
			{Date: day(2024, time.February, 15)},
			{Date: day(2024, time.March, 16)},
		}
		assert.Equal(t, 15, dominantDayOfMonth(txns))
	})

	t.Run("month end counts as 31", func(t *testing.T) {
		txns := []model.Transaction{
			{Date: day(2024, time.January, 31)},
			{Date: day(2024, time.February, 29)}, // leap month end
			{Date: day(2024, time.April, 30)},
		}
		assert.Equal(t, 31, dominantDayOfMonth(txns))
	})

	t.Run("tie prefers larger day", func(t *testing.T) {
		txns := []model.Transaction{
			{Date: day(2024, time.January, 5)},
			{Date: day(2024, time.February, 20)},
		}
		assert.Equal(t, 20, dominantDayOfMonth(txns))
	})
}

func TestDominantDayOfWeek(t *testing.T) {
	txns := []model.Transaction{
		{Date: day(2024, time.January, 5)},  // Friday
		{Date: day(2024, time.January, 12)}, // Friday
		{Date: day(2024, time.January, 15)}, // Monday
	}
	assert.Equal(t, int(time.Friday), dominantDayOfWeek(txns))
}

func TestAnchorDay(t *testing.T) {
	assert.Equal(t, 31, anchorDay(2023, 2, 28))
	assert.Equal(t, 28, anchorDay(2024, 2, 28)) // leap year: 28 is not month end
	assert.Equal(t, 31, anchorDay(2024, 2, 29))
	assert.Equal(t, 15, anchorDay(2024, 2, 15))
	assert.Equal(t, 31, anchorDay(2024, 4, 30))
}

func TestLastDayOfMonth(t *testing.T) {
	assert.Equal(t, 31, lastDayOfMonth(2024, 1))
	assert.Equal(t, 29, lastDayOfMonth(2024, 2))
	assert.Equal(t, 28, lastDayOfMonth(2023, 2))
	assert.Equal(t, 28, lastDayOfMonth(2100, 2)) // century, not leap
	assert.Equal(t, 29, lastDayOfMonth(2000, 2)) // quad-century, leap
	assert.Equal(t, 30, lastDayOfMonth(2024, 11))
}
