package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/calloway/cadence/internal/common"
	"github.com/calloway/cadence/internal/model"
	"github.com/calloway/cadence/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testTransaction(id string, date time.Time, amount float64) model.Transaction {
	return model.Transaction{
		ID:              id,
		Date:            date,
		Name:            "NETFLIX.COM",
		MerchantName:    "Netflix",
		MerchantGroupID: "netflix",
		AccountID:       "acct-1",
		Amount:          amount,
		Direction:       model.DirectionExpense,
	}
}

func testRecurring(amount float64) *model.RecurringTransaction {
	return &model.RecurringTransaction{
		MerchantGroupID:    "netflix",
		MerchantName:       "Netflix",
		Frequency:          model.FrequencyMonthly,
		Direction:          model.DirectionExpense,
		ExpectedAmount:     amount,
		ConfidenceScore:    0.9,
		AccountID:          "acct-1",
		OccurrenceCount:    6,
		Interval:           1,
		DayOfMonth:         15,
		DayOfWeek:          -1,
		LastOccurrenceDate: day(2024, time.June, 15),
		NextExpectedDate:   day(2024, time.July, 15),
		IsActive:           true,
		ReminderEnabled:    true,
	}
}

func TestSaveAndGetTransactions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	txns := []model.Transaction{
		testTransaction("t1", day(2024, time.May, 15), 15.99),
		testTransaction("t2", day(2024, time.June, 15), 15.99),
	}
	txns[0].Categories = []model.CategoryAssignment{{CategoryID: "subscriptions"}}

	require.NoError(t, store.SaveTransactions(ctx, txns))

	got, err := store.GetTransactions(ctx, "", 12, day(2024, time.June, 20))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "netflix", got[0].MerchantGroupID)
	assert.Equal(t, model.DirectionExpense, got[0].Direction)
	require.Len(t, got[0].Categories, 1)
	assert.Equal(t, "subscriptions", got[0].Categories[0].CategoryID)
	assert.Empty(t, got[1].Categories)
	assert.NotEmpty(t, got[0].Hash)
}

func TestSaveTransactionsIgnoresDuplicates(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	txns := []model.Transaction{testTransaction("t1", day(2024, time.May, 15), 15.99)}
	require.NoError(t, store.SaveTransactions(ctx, txns))
	require.NoError(t, store.SaveTransactions(ctx, txns))

	got, err := store.GetTransactions(ctx, "", 12, day(2024, time.June, 1))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveTransactionsValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.SaveTransactions(ctx, []model.Transaction{})
	assert.Error(t, err)

	bad := testTransaction("t1", day(2024, time.May, 15), 15.99)
	bad.CreditCardID = "cc-1" // both settlement ids set
	err = store.SaveTransactions(ctx, []model.Transaction{bad})
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestGetTransactionsScopeAndWindow(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	inScope := testTransaction("t1", day(2024, time.May, 15), 15.99)
	otherAccount := testTransaction("t2", day(2024, time.May, 16), 20.00)
	otherAccount.AccountID = "acct-2"
	tooOld := testTransaction("t3", day(2022, time.January, 1), 15.99)

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{inScope, otherAccount, tooOld}))

	got, err := store.GetTransactions(ctx, "acct-1", 12, day(2024, time.June, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	all, err := store.GetTransactions(ctx, "", 12, day(2024, time.June, 1))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFindMatchingTransaction(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{
		testTransaction("t1", day(2024, time.June, 16), 15.99),
	}))

	t.Run("match within window and tolerance", func(t *testing.T) {
		match, err := store.FindMatchingTransaction(ctx, "netflix", model.DirectionExpense,
			"acct-1", day(2024, time.June, 15), 3, 15.99, 5)
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, "t1", match.ID)
	})

	t.Run("no match outside date window", func(t *testing.T) {
		match, err := store.FindMatchingTransaction(ctx, "netflix", model.DirectionExpense,
			"acct-1", day(2024, time.June, 25), 3, 15.99, 5)
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("no match outside amount tolerance", func(t *testing.T) {
		match, err := store.FindMatchingTransaction(ctx, "netflix", model.DirectionExpense,
			"acct-1", day(2024, time.June, 15), 3, 50.00, 5)
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("no match for wrong settlement account", func(t *testing.T) {
		match, err := store.FindMatchingTransaction(ctx, "netflix", model.DirectionExpense,
			"acct-9", day(2024, time.June, 15), 3, 15.99, 5)
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("closest of several wins", func(t *testing.T) {
		require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{
			testTransaction("t2", day(2024, time.June, 14), 15.99),
		}))
		match, err := store.FindMatchingTransaction(ctx, "netflix", model.DirectionExpense,
			"acct-1", day(2024, time.June, 14), 3, 15.99, 5)
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, "t2", match.ID)
	})
}

func TestSaveOrUpdatePatternUpsert(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	record := testRecurring(15.99)
	require.NoError(t, store.SaveOrUpdatePattern(ctx, record))
	require.NotEmpty(t, record.ID)

	// Tracker moves lifecycle state.
	stored, err := store.GetPattern(ctx, record.ID)
	require.NoError(t, err)
	stored.MissedStreak = 1
	stored.OccurrenceCount = 9
	require.NoError(t, store.UpdatePattern(ctx, stored))

	// A re-detection refreshes metadata but not lifecycle state.
	again := testRecurring(15.99)
	again.ConfidenceScore = 0.95
	again.NextExpectedDate = day(2024, time.August, 15)
	require.NoError(t, store.SaveOrUpdatePattern(ctx, again))

	final, err := store.GetPattern(ctx, record.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, final.ConfidenceScore, 0.001)
	assert.Equal(t, day(2024, time.August, 15), final.NextExpectedDate.UTC())
	assert.Equal(t, 1, final.MissedStreak)
	assert.Equal(t, 9, final.OccurrenceCount)

	// Same key resolves to one row.
	all, err := store.ListAllPatterns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPatternIDStable(t *testing.T) {
	a := testRecurring(15.99)
	b := testRecurring(15.99)
	assert.Equal(t, patternID(a), patternID(b))

	c := testRecurring(19.99)
	assert.NotEqual(t, patternID(a), patternID(c))
}

func TestListActivePatterns(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	active := testRecurring(15.99)
	require.NoError(t, store.SaveOrUpdatePattern(ctx, active))

	dead := testRecurring(49.99)
	dead.MerchantGroupID = "old-gym"
	dead.MerchantName = "Old Gym"
	require.NoError(t, store.SaveOrUpdatePattern(ctx, dead))

	stored, err := store.GetPattern(ctx, dead.ID)
	require.NoError(t, err)
	stored.IsActive = false
	stored.StatusReason = model.StatusReasonMissedTwice
	require.NoError(t, store.UpdatePattern(ctx, stored))

	activeList, err := store.ListActivePatterns(ctx, "")
	require.NoError(t, err)
	require.Len(t, activeList, 1)
	assert.Equal(t, "netflix", activeList[0].MerchantGroupID)

	allList, err := store.ListAllPatterns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, allList, 2)
}

func TestUpdatePatternIfStreakGuard(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	record := testRecurring(15.99)
	require.NoError(t, store.SaveOrUpdatePattern(ctx, record))

	stored, err := store.GetPattern(ctx, record.ID)
	require.NoError(t, err)

	stored.MissedStreak = 1
	ok, err := store.UpdatePatternIfStreak(ctx, stored, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	// Replaying the same transition must lose the guard.
	ok, err = store.UpdatePatternIfStreak(ctx, stored, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	final, err := store.GetPattern(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, final.MissedStreak)
}

func TestSetReminderEnabled(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	record := testRecurring(15.99)
	require.NoError(t, store.SaveOrUpdatePattern(ctx, record))

	require.NoError(t, store.SetReminderEnabled(ctx, record.ID, false))

	stored, err := store.GetPattern(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, stored.ReminderEnabled)

	assert.Error(t, store.SetReminderEnabled(ctx, "no-such-id", true))
}

func TestAccountBalances(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.GetAccountBalance(ctx, "acct-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.UpsertAccountBalance(ctx, "acct-1", 250.75))
	balance, err := store.GetAccountBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.InDelta(t, 250.75, balance, 0.001)

	require.NoError(t, store.UpsertAccountBalance(ctx, "acct-1", 100.00))
	balance, err = store.GetAccountBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.InDelta(t, 100.00, balance, 0.001)
}

func TestReminderPreferences(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Unset preference falls back to the storage default.
	days, err := store.GetReminderDaysBefore(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, days)

	require.NoError(t, store.SetReminderDaysBefore(ctx, "user-1", 5))
	days, err = store.GetReminderDaysBefore(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, days)

	assert.Error(t, store.SetReminderDaysBefore(ctx, "user-1", -1))
}

func TestNotificationOutbox(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	n := service.Notification{
		UserID:       "user-1",
		PatternID:    "p1",
		AccountScope: "acct-1",
		MerchantName: "Netflix",
		Kind:         service.NotificationMissed,
		Amount:       15.99,
		DueDate:      day(2024, time.June, 15),
	}
	require.NoError(t, store.Notify(ctx, n))
	require.NoError(t, store.Notify(ctx, n))

	count, err := store.CountNotifications(ctx, "p1", service.NotificationMissed)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountNotifications(ctx, "p1", service.NotificationUpcoming)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Missing pattern id is rejected.
	assert.Error(t, store.Notify(ctx, service.Notification{Kind: service.NotificationMissed}))
}
