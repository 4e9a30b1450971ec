/*
schedule.go - Income source recurrence

PURPOSE:
  Computes when an income source is next expected to pay. Schedules are
  day-granular and always UTC; callers persist the result on the income
  source as NextExpectedDate.

FREQUENCIES:
  weekly:       every week on Weekday
  biweekly:     every 14 days from AnchorDate
  monthly:      DayOfMonth each month, clamped to month length
  semi_monthly: FirstDay and SecondDay each month, clamped
  quarterly:    every 3 months from AnchorDate, day clamped
  yearly:       anniversary of AnchorDate, day clamped (Feb 29 -> Feb 28)
  one_time:     AnchorDate exactly once

SEE ALSO:
  - types.go: IncomeSource carries a Schedule
*/
package ledger

import "time"

// =============================================================================
// SCHEDULE FREQUENCY
// =============================================================================

type ScheduleFrequency string

const (
	FreqWeekly      ScheduleFrequency = "weekly"
	FreqBiweekly    ScheduleFrequency = "biweekly"
	FreqMonthly     ScheduleFrequency = "monthly"
	FreqSemiMonthly ScheduleFrequency = "semi_monthly"
	FreqQuarterly   ScheduleFrequency = "quarterly"
	FreqYearly      ScheduleFrequency = "yearly"
	FreqOneTime     ScheduleFrequency = "one_time"
)

func (f ScheduleFrequency) Valid() bool {
	switch f {
	case FreqWeekly, FreqBiweekly, FreqMonthly, FreqSemiMonthly,
		FreqQuarterly, FreqYearly, FreqOneTime:
		return true
	}
	return false
}

// =============================================================================
// SCHEDULE - Frequency plus its frequency-specific configuration
// =============================================================================

type Schedule struct {
	Frequency ScheduleFrequency

	// weekly
	Weekday time.Weekday

	// monthly
	DayOfMonth int

	// semi_monthly: two pay days per month, FirstDay < SecondDay
	FirstDay  int
	SecondDay int

	// biweekly, quarterly, yearly, one_time
	AnchorDate time.Time
}

// Validate checks the frequency-specific configuration.
func (s Schedule) Validate() error {
	switch s.Frequency {
	case FreqWeekly:
		if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
			return &ValidationError{Field: "schedule.weekday", Reason: "must be a weekday 0-6"}
		}
	case FreqMonthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return &ValidationError{Field: "schedule.day_of_month", Reason: "must be between 1 and 31"}
		}
	case FreqSemiMonthly:
		if s.FirstDay < 1 || s.SecondDay > 31 {
			return &ValidationError{Field: "schedule.first_day/second_day", Reason: "must be between 1 and 31"}
		}
		if s.FirstDay >= s.SecondDay {
			return &ValidationError{Field: "schedule.first_day", Reason: "must be before second_day"}
		}
	case FreqBiweekly, FreqQuarterly, FreqYearly, FreqOneTime:
		if s.AnchorDate.IsZero() {
			return &ValidationError{Field: "schedule.anchor_date", Reason: "required for " + string(s.Frequency)}
		}
	default:
		return &ValidationError{Field: "schedule.frequency", Reason: "unknown frequency " + string(s.Frequency)}
	}
	return nil
}

// NextAfter returns the first expected date strictly after the given day.
// The second return is false when the schedule has no further occurrence
// (a one_time schedule whose date has passed).
func (s Schedule) NextAfter(after time.Time) (time.Time, bool) {
	target := dayOf(after)

	switch s.Frequency {
	case FreqWeekly:
		d := target.AddDate(0, 0, 1)
		for d.Weekday() != s.Weekday {
			d = d.AddDate(0, 0, 1)
		}
		return d, true

	case FreqBiweekly:
		anchor := dayOf(s.AnchorDate)
		if anchor.After(target) {
			return anchor, true
		}
		days := int(target.Sub(anchor).Hours() / 24)
		cycles := days/14 + 1
		return anchor.AddDate(0, 0, cycles*14), true

	case FreqMonthly:
		d := clampedDay(target.Year(), target.Month(), s.DayOfMonth)
		if !d.After(target) {
			d = clampedDay(target.Year(), target.Month()+1, s.DayOfMonth)
		}
		return d, true

	case FreqSemiMonthly:
		first := clampedDay(target.Year(), target.Month(), s.FirstDay)
		second := clampedDay(target.Year(), target.Month(), s.SecondDay)
		switch {
		case first.After(target):
			return first, true
		case second.After(target):
			return second, true
		default:
			return clampedDay(target.Year(), target.Month()+1, s.FirstDay), true
		}

	case FreqQuarterly:
		anchor := dayOf(s.AnchorDate)
		if anchor.After(target) {
			return anchor, true
		}
		months := (target.Year()-anchor.Year())*12 + int(target.Month()-anchor.Month())
		months -= months % 3
		d := clampedDay(anchor.Year(), anchor.Month()+time.Month(months), anchor.Day())
		for !d.After(target) {
			months += 3
			d = clampedDay(anchor.Year(), anchor.Month()+time.Month(months), anchor.Day())
		}
		return d, true

	case FreqYearly:
		anchor := dayOf(s.AnchorDate)
		d := clampedDay(target.Year(), anchor.Month(), anchor.Day())
		if !d.After(target) {
			d = clampedDay(target.Year()+1, anchor.Month(), anchor.Day())
		}
		return d, true

	case FreqOneTime:
		anchor := dayOf(s.AnchorDate)
		if anchor.After(target) {
			return anchor, true
		}
		return time.Time{}, false
	}

	return time.Time{}, false
}

// =============================================================================
// DATE HELPERS
// =============================================================================

// dayOf truncates a timestamp to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// clampedDay builds a date, pulling the day back to the month's last day
// when it overflows (Jan 31 -> Feb 28). Month overflow normalizes into
// the following year, matching time.Date.
func clampedDay(year int, month time.Month, day int) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
