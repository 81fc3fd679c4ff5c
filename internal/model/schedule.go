package model

import "time"

// NextExpectedDate advances lastDate by one cadence step times interval.
// For month-granularity frequencies the target day-of-month is clamped to
// the last valid day of the resulting month, so Jan 31 + 1 month lands on
// Feb 28/29, never Mar 2. Weekly frequencies realign onto dayOfWeek when
// one is given (0=Sunday, -1 to skip).
func NextExpectedDate(lastDate time.Time, frequency Frequency, interval, dayOfMonth, dayOfWeek int) time.Time {
	if interval < 1 {
		interval = 1
	}

	switch frequency {
	case FrequencyDaily:
		return lastDate.AddDate(0, 0, interval)
	case FrequencyWeekly:
		return alignWeekday(lastDate.AddDate(0, 0, 7*interval), dayOfWeek)
	case FrequencyBiweekly:
		return alignWeekday(lastDate.AddDate(0, 0, 14*interval), dayOfWeek)
	case FrequencyMonthly:
		return addMonthsClamped(lastDate, interval, dayOfMonth)
	case FrequencyBimonthly:
		return addMonthsClamped(lastDate, 2*interval, dayOfMonth)
	case FrequencyQuarterly:
		return addMonthsClamped(lastDate, 3*interval, dayOfMonth)
	case FrequencyYearly:
		return addMonthsClamped(lastDate, 12*interval, dayOfMonth)
	}

	// Unknown frequency: fall back to one nominal step.
	return lastDate.AddDate(0, 0, int(frequency.ApproxDays())*interval)
}

// addMonthsClamped moves forward by whole months and pins the day.
// time.AddDate would normalize Feb 31 into early March; build the date
// explicitly instead.
func addMonthsClamped(from time.Time, months, dayOfMonth int) time.Time {
	year, month := from.Year(), int(from.Month())

	month += months
	year += (month - 1) / 12
	month = (month-1)%12 + 1

	day := dayOfMonth
	if day <= 0 {
		day = from.Day()
	}
	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, from.Location())
}

// alignWeekday nudges date onto the target weekday by the smallest shift.
func alignWeekday(date time.Time, dayOfWeek int) time.Time {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return date
	}
	delta := (dayOfWeek - int(date.Weekday()) + 7) % 7
	if delta > 3 {
		delta -= 7
	}
	return date.AddDate(0, 0, delta)
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
