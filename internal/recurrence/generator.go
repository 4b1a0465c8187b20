package recurrence

import (
	"sort"
	"time"
)

// Occurrence is one concrete future instant produced by expanding a rule.
// Occurrences are recomputed on demand and never persisted.
type Occurrence struct {
	// Start is the occurrence instant in UTC
	Start time.Time
	// Rule is the rule that produced this occurrence
	Rule Rule
	// Index is which occurrence of the weekday this is within its month (1-based)
	Index int
	// IsLast reports whether this is the final such weekday in its month
	IsLast bool
}

// parityAnchor fixes the week parity for everyOther rules. It is a Monday,
// so parity is stable regardless of when generation runs.
var parityAnchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Generate expands rules into future occurrences within monthsAhead calendar
// months, sorted ascending and de-duplicated by instant. Wall-clock times are
// interpreted in the given IANA timezone and converted to UTC; an unknown
// timezone falls back to UTC. Only occurrences strictly after now are
// returned. Empty rules yield an empty result.
func Generate(rules []Rule, monthsAhead int, timezone string, now time.Time) []Occurrence {
	if len(rules) == 0 || monthsAhead <= 0 {
		return nil
	}

	loc := loadLocation(timezone)

	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		normalized[i] = r.Normalize()
	}

	localNow := now.In(loc)
	horizon := localNow.AddDate(0, monthsAhead, 0)

	seen := make(map[int64]bool)
	var out []Occurrence

	// Walk calendar days rather than adding week increments so month
	// boundaries and DST transitions are respected.
	day := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(horizon); day = day.AddDate(0, 0, 1) {
		for _, rule := range normalized {
			if !matches(rule, day) {
				continue
			}

			start := time.Date(day.Year(), day.Month(), day.Day(), rule.Hour, rule.Minute, 0, 0, loc).UTC()
			if !start.After(now) {
				continue
			}
			if seen[start.Unix()] {
				continue
			}
			seen[start.Unix()] = true

			out = append(out, Occurrence{
				Start:  start,
				Rule:   rule,
				Index:  (day.Day()-1)/7 + 1,
				IsLast: day.Day()+7 > daysInMonth(day.Year(), day.Month()),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// matches reports whether the rule produces an occurrence on the given
// calendar day (midnight in the profile timezone).
func matches(rule Rule, day time.Time) bool {
	switch rule.Kind {
	case KindAnnual:
		if day.Month() != rule.Month {
			return false
		}
		target := rule.Day
		if last := daysInMonth(day.Year(), day.Month()); target > last {
			target = last
		}
		return day.Day() == target
	case KindEvery:
		return day.Weekday() == rule.Weekday
	case KindEveryOther:
		return day.Weekday() == rule.Weekday && weekIndex(day)%2 == 0
	case KindNth:
		return day.Weekday() == rule.Weekday && (day.Day()-1)/7+1 == rule.Occurrence
	case KindLast:
		return day.Weekday() == rule.Weekday && day.Day()+7 > daysInMonth(day.Year(), day.Month())
	default:
		return false
	}
}

// weekIndex counts Monday-based weeks elapsed since the parity anchor.
// Comparing calendar dates in UTC keeps the count independent of the
// profile timezone.
func weekIndex(day time.Time) int {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	days := int(d.Sub(parityAnchor).Hours() / 24)
	if days < 0 {
		days -= 6
	}
	return days / 7
}

// daysInMonth returns the number of days in the given month. Day zero of the
// following month normalizes to the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func loadLocation(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
