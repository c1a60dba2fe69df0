package domain

import "time"

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CountOn returns the number of readings made on the day of now. A counter
// last reset on another day counts as zero.
func (d DailyReadings) CountOn(now time.Time) int {
	if d.LastReset.IsZero() || !Day(d.LastReset).Equal(Day(now)) {
		return 0
	}
	return d.Count
}

// Remaining returns how many readings are left under limit on the day of now.
func (d DailyReadings) Remaining(limit int, now time.Time) int {
	left := limit - d.CountOn(now)
	if left < 0 {
		return 0
	}
	return left
}
