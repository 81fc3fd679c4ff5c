package model

// Frequency is a discrete recurrence cadence bucket.
type Frequency string

const (
	// FrequencyDaily repeats every day.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats every ~7 days.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyBiweekly repeats every ~14 days.
	FrequencyBiweekly Frequency = "biweekly"
	// FrequencyMonthly repeats every ~30 days.
	FrequencyMonthly Frequency = "monthly"
	// FrequencyBimonthly repeats every ~60 days.
	FrequencyBimonthly Frequency = "bimonthly"
	// FrequencyQuarterly repeats every ~90 days.
	FrequencyQuarterly Frequency = "quarterly"
	// FrequencyYearly repeats every ~365 days.
	FrequencyYearly Frequency = "yearly"
)

// ApproxDays returns the nominal length of one cadence step in days.
func (f Frequency) ApproxDays() float64 {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencyMonthly:
		return 30
	case FrequencyBimonthly:
		return 61
	case FrequencyQuarterly:
		return 91
	case FrequencyYearly:
		return 365
	}
	return 30
}

// Cadence describes the inferred timing of a recurring pattern.
// MedianInterval is in days and always positive; DayOfMonth and DayOfWeek
// are set only when the frequency anchors to one.
type Cadence struct {
	Frequency      Frequency
	MedianInterval float64
	MAD            float64
	DayOfMonth     int // 1-31, 0 when not applicable
	DayOfWeek      int // 0=Sunday..6, -1 when not applicable
}
