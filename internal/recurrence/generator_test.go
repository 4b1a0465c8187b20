package recurrence

import (
	"testing"
	"time"
)

func TestGenerate_NthSecondTuesday(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rules := []Rule{{Kind: KindNth, Occurrence: 2, Weekday: time.Tuesday, Hour: 18, Minute: 0}}

	occs := Generate(rules, 3, "UTC", now)
	if len(occs) != 3 {
		t.Fatalf("Expected 3 occurrences, got %d", len(occs))
	}

	want := []time.Time{
		time.Date(2025, time.March, 11, 18, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 8, 18, 0, 0, 0, time.UTC),
		time.Date(2025, time.May, 13, 18, 0, 0, 0, time.UTC),
	}
	for i, occ := range occs {
		if !occ.Start.Equal(want[i]) {
			t.Errorf("Occurrence %d: got %v, want %v", i, occ.Start, want[i])
		}
		if occ.Start.Weekday() != time.Tuesday {
			t.Errorf("Occurrence %d is not a Tuesday", i)
		}
		if occ.Index != 2 {
			t.Errorf("Occurrence %d: index %d, want 2", i, occ.Index)
		}
	}
}

func TestGenerate_AnnualClampsShortMonths(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	rules := []Rule{{Kind: KindAnnual, Month: time.February, Day: 30, Hour: 12, Minute: 0}}

	occs := Generate(rules, 26, "UTC", now)
	if len(occs) != 3 {
		t.Fatalf("Expected 3 occurrences, got %d", len(occs))
	}

	want := []time.Time{
		time.Date(2026, time.February, 28, 12, 0, 0, 0, time.UTC),
		time.Date(2027, time.February, 28, 12, 0, 0, 0, time.UTC),
		time.Date(2028, time.February, 29, 12, 0, 0, 0, time.UTC), // leap year
	}
	for i, occ := range occs {
		if !occ.Start.Equal(want[i]) {
			t.Errorf("Occurrence %d: got %v, want %v", i, occ.Start, want[i])
		}
	}
}

func TestGenerate_EveryFriday(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rules := []Rule{{Kind: KindEvery, Weekday: time.Friday, Hour: 19, Minute: 0}}

	occs := Generate(rules, 3, "UTC", now)
	if len(occs) == 0 {
		t.Fatal("Expected occurrences")
	}

	first := time.Date(2025, time.March, 7, 19, 0, 0, 0, time.UTC)
	if !occs[0].Start.Equal(first) {
		t.Errorf("First occurrence: got %v, want %v", occs[0].Start, first)
	}

	for i := 1; i < len(occs); i++ {
		if got := occs[i].Start.Sub(occs[i-1].Start); got != 7*24*time.Hour {
			t.Errorf("Spacing between occurrence %d and %d: got %v, want 168h", i-1, i, got)
		}
	}
}

func TestGenerate_EveryOtherParityIsAnchored(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rules := []Rule{{Kind: KindEveryOther, Weekday: time.Wednesday, Hour: 20, Minute: 30}}

	occs := Generate(rules, 3, "UTC", now)
	if len(occs) < 3 {
		t.Fatalf("Expected at least 3 occurrences, got %d", len(occs))
	}
	for i := 1; i < len(occs); i++ {
		if got := occs[i].Start.Sub(occs[i-1].Start); got != 14*24*time.Hour {
			t.Errorf("Spacing between occurrence %d and %d: got %v, want 336h", i-1, i, got)
		}
	}

	// Generating a week later must stay on the same parity, not re-anchor
	later := Generate(rules, 3, "UTC", now.AddDate(0, 0, 7))
	if len(later) == 0 {
		t.Fatal("Expected occurrences from later generation")
	}
	found := false
	for _, occ := range occs {
		if occ.Start.Equal(later[0].Start) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Later generation re-anchored parity: first occurrence %v not in original set", later[0].Start)
	}
}

func TestGenerate_LastFriday(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rules := []Rule{{Kind: KindLast, Weekday: time.Friday, Hour: 18, Minute: 0}}

	occs := Generate(rules, 1, "UTC", now)
	if len(occs) != 1 {
		t.Fatalf("Expected 1 occurrence, got %d", len(occs))
	}

	want := time.Date(2025, time.March, 28, 18, 0, 0, 0, time.UTC)
	if !occs[0].Start.Equal(want) {
		t.Errorf("Last Friday: got %v, want %v", occs[0].Start, want)
	}
	if !occs[0].IsLast {
		t.Error("Expected IsLast to be set")
	}
}

func TestGenerate_EmptyRules(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	if occs := Generate(nil, 3, "UTC", now); len(occs) != 0 {
		t.Errorf("Expected no occurrences for empty rules, got %d", len(occs))
	}
}

func TestGenerate_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rules := []Rule{{Kind: KindEvery, Weekday: time.Friday, Hour: 19, Minute: 0}}

	utc := Generate(rules, 1, "UTC", now)
	bogus := Generate(rules, 1, "Mars/Olympus", now)

	if len(utc) != len(bogus) {
		t.Fatalf("Occurrence count mismatch: utc=%d bogus=%d", len(utc), len(bogus))
	}
	for i := range utc {
		if !utc[i].Start.Equal(bogus[i].Start) {
			t.Errorf("Occurrence %d: got %v, want %v", i, bogus[i].Start, utc[i].Start)
		}
	}
}

func TestGenerate_StrictlyFuture(t *testing.T) {
	// Now is exactly a Friday 19:00 occurrence; it must not be included
	now := time.Date(2025, time.March, 7, 19, 0, 0, 0, time.UTC)
	rules := []Rule{{Kind: KindEvery, Weekday: time.Friday, Hour: 19, Minute: 0}}

	occs := Generate(rules, 1, "UTC", now)
	if len(occs) == 0 {
		t.Fatal("Expected occurrences")
	}
	want := time.Date(2025, time.March, 14, 19, 0, 0, 0, time.UTC)
	if !occs[0].Start.Equal(want) {
		t.Errorf("First occurrence: got %v, want %v", occs[0].Start, want)
	}
}

func TestGenerate_DeduplicatesAcrossRules(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rules := []Rule{
		{Kind: KindEvery, Weekday: time.Friday, Hour: 19, Minute: 0},
		{Kind: KindNth, Occurrence: 1, Weekday: time.Friday, Hour: 19, Minute: 0},
	}

	occs := Generate(rules, 2, "UTC", now)
	seen := make(map[int64]bool)
	for _, occ := range occs {
		if seen[occ.Start.Unix()] {
			t.Fatalf("Duplicate occurrence at %v", occ.Start)
		}
		seen[occ.Start.Unix()] = true
	}

	for i := 1; i < len(occs); i++ {
		if !occs[i].Start.After(occs[i-1].Start) {
			t.Errorf("Occurrences not sorted ascending at index %d", i)
		}
	}
}

func TestGenerate_DSTKeepsWallClock(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("Timezone data unavailable: %v", err)
	}

	// US DST starts 2025-03-09
	now := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	rules := []Rule{{Kind: KindEvery, Weekday: time.Sunday, Hour: 18, Minute: 0}}

	occs := Generate(rules, 1, "America/New_York", now)
	if len(occs) < 2 {
		t.Fatalf("Expected at least 2 occurrences, got %d", len(occs))
	}

	for i, occ := range occs {
		local := occ.Start.In(loc)
		if local.Hour() != 18 || local.Minute() != 0 {
			t.Errorf("Occurrence %d: wall clock %02d:%02d, want 18:00", i, local.Hour(), local.Minute())
		}
	}

	// First Sunday after DST starts: 18:00 EDT == 22:00 UTC
	want := time.Date(2025, time.March, 9, 22, 0, 0, 0, time.UTC)
	if !occs[0].Start.Equal(want) {
		t.Errorf("First occurrence: got %v, want %v", occs[0].Start, want)
	}
}

func TestNormalize_Clamps(t *testing.T) {
	r := Rule{Kind: "sometimes", Weekday: 12, Occurrence: 9, Month: 15, Day: 45, Hour: 30, Minute: -5}
	n := r.Normalize()

	if n.Kind != KindEvery {
		t.Errorf("Kind: got %s, want %s", n.Kind, KindEvery)
	}
	if n.Weekday != time.Sunday {
		t.Errorf("Weekday: got %v, want Sunday", n.Weekday)
	}
	if n.Occurrence != 4 {
		t.Errorf("Occurrence: got %d, want 4", n.Occurrence)
	}
	if n.Month != time.December {
		t.Errorf("Month: got %v, want December", n.Month)
	}
	if n.Day != 31 {
		t.Errorf("Day: got %d, want 31", n.Day)
	}
	if n.Hour != 23 {
		t.Errorf("Hour: got %d, want 23", n.Hour)
	}
	if n.Minute != 0 {
		t.Errorf("Minute: got %d, want 0", n.Minute)
	}
}

func TestParseWeekday(t *testing.T) {
	if got := ParseWeekday("Tuesday"); got != time.Tuesday {
		t.Errorf("ParseWeekday(Tuesday): got %v", got)
	}
	if got := ParseWeekday(" friday "); got != time.Friday {
		t.Errorf("ParseWeekday(friday): got %v", got)
	}
	if got := ParseWeekday("someday"); got != time.Sunday {
		t.Errorf("ParseWeekday(someday): got %v, want Sunday fallback", got)
	}
}
