// Package timing derives the moment a pending event should be published
// from its occurrence time and a profile's automation settings.
package timing

import (
	"time"

	"github.com/groupkit/autopost/internal/profile"
)

// MinPublishBuffer is the hard safety floor: a publish time is never later
// than the occurrence start minus this buffer.
const MinPublishBuffer = 30 * time.Minute

// Calculator computes publish times for a batch of occurrences belonging to
// one profile. Now and LastSuccess are fixed for the whole batch so results
// are stable within a single recalculation.
type Calculator struct {
	// Settings are the profile's automation settings
	Settings profile.AutomationSettings
	// Duration is the profile's event duration
	Duration time.Duration
	// Location is the profile timezone, used for monthly wall-clock math.
	// Nil means UTC.
	Location *time.Location
	// Now is the computation time
	Now time.Time
	// LastSuccess is when automation last created an event for this
	// profile; zero if it never has.
	LastSuccess time.Time
}

// Next returns the publish time for the occurrence starting at occStart.
// prevOccStart is the start of the previous occurrence in the same batch,
// or zero for the first. The second return is false when the occurrence
// must be dropped because its publish time has already passed.
func (c *Calculator) Next(occStart, prevOccStart time.Time) (time.Time, bool) {
	s := c.Settings.Normalize()

	var publish time.Time
	switch s.TimingMode {
	case profile.TimingBefore:
		publish = occStart.Add(-s.Offset())
	case profile.TimingAfter:
		publish = c.afterTime(s, occStart, prevOccStart)
	case profile.TimingMonthly:
		publish = c.monthlyTime(s, occStart)
	default:
		// Unknown mode behaves as "before" with zero offset
		publish = occStart
	}

	// Hard floor: never later than 30 minutes before the occurrence
	if latest := occStart.Add(-MinPublishBuffer); publish.After(latest) {
		publish = latest
	}

	// A publish time already in the past produces no pending event
	if !publish.After(c.Now) {
		return time.Time{}, false
	}

	return publish.UTC(), true
}

// afterTime implements "publish shortly after the previous event ends".
// The midpoint check is a UX heuristic, not a scheduling guarantee: when the
// offset is large relative to the event cadence, publishing that late would
// land suspiciously close to the next occurrence, so the calculation falls
// back to "before" semantics with the same offset.
func (c *Calculator) afterTime(s profile.AutomationSettings, occStart, prevOccStart time.Time) time.Time {
	var prevEnd time.Time
	if prevOccStart.IsZero() {
		// First occurrence in the batch: anchor on the last successful
		// event, or on now if automation has never produced one.
		anchor := c.LastSuccess
		if anchor.IsZero() {
			anchor = c.Now
		}
		prevEnd = anchor.Add(c.Duration)
	} else {
		prevEnd = prevOccStart.Add(c.Duration)
	}

	publish := prevEnd.Add(s.Offset())

	prevRef := prevOccStart
	if prevRef.IsZero() {
		prevRef = c.Now
	}
	midpoint := prevRef.Add(occStart.Sub(prevRef) / 2)
	if publish.After(midpoint) {
		publish = occStart.Add(-s.Offset())
	}

	return publish
}

// monthlyTime publishes on a fixed day/hour/minute of the calendar month
// containing the occurrence, shifting to the previous month when that moment
// would not precede the occurrence start. The day is clamped to the target
// month's length either way.
func (c *Calculator) monthlyTime(s profile.AutomationSettings, occStart time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}

	local := occStart.In(loc)
	publish := monthlyMoment(local.Year(), local.Month(), s, loc)

	if !publish.Before(occStart) {
		prev := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -1, 0)
		publish = monthlyMoment(prev.Year(), prev.Month(), s, loc)
	}

	return publish
}

func monthlyMoment(year int, month time.Month, s profile.AutomationSettings, loc *time.Location) time.Time {
	day := s.MonthlyDay
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, s.MonthlyHour, s.MonthlyMinute, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
