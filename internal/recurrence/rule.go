// Package recurrence expands abstract recurrence rules ("every 2nd Tuesday
// at 18:00") into concrete future occurrence instants.
package recurrence

import (
	"strings"
	"time"
)

// Kind identifies the recurrence pattern of a rule
type Kind string

const (
	// KindEvery fires on every occurrence of the weekday
	KindEvery Kind = "every"
	// KindEveryOther fires on every second occurrence of the weekday,
	// anchored to a fixed reference week rather than to "now"
	KindEveryOther Kind = "everyOther"
	// KindNth fires on the Nth occurrence of the weekday in a month
	KindNth Kind = "nth"
	// KindLast fires on the final occurrence of the weekday in a month
	KindLast Kind = "last"
	// KindAnnual fires once a year on a fixed calendar date
	KindAnnual Kind = "annual"
)

// Rule describes one recurring slot. Hour and minute are wall-clock values
// in the profile's timezone.
type Rule struct {
	Kind       Kind         `json:"kind" yaml:"kind"`
	Weekday    time.Weekday `json:"weekday" yaml:"weekday"`       // weekly kinds
	Occurrence int          `json:"occurrence" yaml:"occurrence"` // nth: 1-4
	Month      time.Month   `json:"month" yaml:"month"`           // annual
	Day        int          `json:"day" yaml:"day"`               // annual; clamped to month length
	Hour       int          `json:"hour" yaml:"hour"`
	Minute     int          `json:"minute" yaml:"minute"`
}

// Normalize clamps all fields to valid ranges. Invalid input is corrected,
// never rejected.
func (r Rule) Normalize() Rule {
	r.Hour = clampInt(r.Hour, 0, 23)
	r.Minute = clampInt(r.Minute, 0, 59)
	r.Occurrence = clampInt(r.Occurrence, 1, 4)
	r.Month = time.Month(clampInt(int(r.Month), 1, 12))
	r.Day = clampInt(r.Day, 1, 31)
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		r.Weekday = time.Sunday
	}

	switch r.Kind {
	case KindEvery, KindEveryOther, KindNth, KindLast, KindAnnual:
	default:
		r.Kind = KindEvery
	}

	return r
}

// ParseWeekday maps a named day to its time.Weekday. Matching is
// case-insensitive; unknown names fall back to Sunday.
func ParseWeekday(name string) time.Weekday {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "monday":
		return time.Monday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	default:
		return time.Sunday
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
