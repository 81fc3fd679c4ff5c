package model

import "time"

// StatusReason explains why a recurring transaction was deactivated.
type StatusReason string

const (
	// StatusReasonMissedTwice indicates two consecutive missed occurrences.
	StatusReasonMissedTwice StatusReason = "missed_twice"
)

// RecurringPattern is the detector's output: a merchant charge or income
// stream judged to be actively recurring. Patterns are rebuilt from scratch
// on every detection run; long-term lifecycle lives on RecurringTransaction.
type RecurringPattern struct {
	LastOccurrenceDate time.Time
	NextExpectedDate   time.Time
	MerchantGroupID    string
	MerchantName       string
	CategoryID         string // Most common real category, may be empty
	AccountID          string
	CreditCardID       string
	Frequency          Frequency
	Direction          TransactionDirection
	TransactionIDs     []string // Provenance
	ExpectedAmount     float64  // Median of the amount group
	AmountVariance     float64
	ConfidenceScore    float64 // 0-1
	OccurrenceCount    int
	Interval           int
	DayOfMonth         int // 0 when the cadence has no month-day anchor
	DayOfWeek          int // -1 when the cadence has no weekday anchor
}

// RecurringTransaction is the persisted form of a pattern, owned by storage
// and mutated by the missed-occurrence tracker.
type RecurringTransaction struct {
	LastOccurrenceDate time.Time
	NextExpectedDate   time.Time
	LastMissedDate     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ID                 string
	UserID             string
	MerchantGroupID    string
	MerchantName       string
	CategoryID         string
	AccountID          string
	CreditCardID       string
	Frequency          Frequency
	Direction          TransactionDirection
	StatusReason       StatusReason // Empty while active
	ExpectedAmount     float64
	AmountVariance     float64
	ConfidenceScore    float64
	// OccurrenceCount here is cumulative across the record's lifetime and
	// advances as the tracker confirms occurrences. It is distinct from the
	// detection-time count on RecurringPattern.
	OccurrenceCount int
	Interval        int // Cadence multiplier, 1 for a plain monthly/weekly/etc.
	DayOfMonth      int
	DayOfWeek       int
	MissedStreak    int
	IsActive        bool
	ReminderEnabled bool
}

// SettlementID returns the identifier of the settling account.
func (r *RecurringTransaction) SettlementID() string {
	if r.AccountID != "" {
		return r.AccountID
	}
	return r.CreditCardID
}
