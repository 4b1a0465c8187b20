// Package profile models event profiles, their automation settings, and the
// live catalog the host keeps in memory.
package profile

import (
	"time"

	"github.com/groupkit/autopost/internal/recurrence"
)

// TimingMode selects how a publish time is derived from an occurrence
type TimingMode string

const (
	// TimingBefore publishes a fixed offset before the occurrence starts
	TimingBefore TimingMode = "before"
	// TimingAfter publishes shortly after the previous event ends
	TimingAfter TimingMode = "after"
	// TimingMonthly publishes on a fixed day of the month
	TimingMonthly TimingMode = "monthly"
)

// RepeatMode controls how many events automation may create
type RepeatMode string

const (
	// RepeatIndefinite keeps creating events with no ceiling
	RepeatIndefinite RepeatMode = "indefinite"
	// RepeatCount stops once RepeatCount events have been created
	RepeatCount RepeatMode = "count"
)

// DefaultDurationMinutes is assumed when a profile has no duration
const DefaultDurationMinutes = 120

// AutomationSettings configures automated publishing for one profile.
// All fields have defaults; invalid input is clamped, never rejected.
type AutomationSettings struct {
	Enabled       bool       `json:"enabled" yaml:"enabled"`
	TimingMode    TimingMode `json:"timingMode" yaml:"timing_mode"`
	DaysOffset    int        `json:"daysOffset" yaml:"days_offset"`
	HoursOffset   int        `json:"hoursOffset" yaml:"hours_offset"`
	MinutesOffset int        `json:"minutesOffset" yaml:"minutes_offset"`
	MonthlyDay    int        `json:"monthlyDay" yaml:"monthly_day"`
	MonthlyHour   int        `json:"monthlyHour" yaml:"monthly_hour"`
	MonthlyMinute int        `json:"monthlyMinute" yaml:"monthly_minute"`
	RepeatMode    RepeatMode `json:"repeatMode" yaml:"repeat_mode"`
	RepeatCount   int        `json:"repeatCount" yaml:"repeat_count"`
}

// DefaultAutomationSettings returns settings with automation disabled and
// every field at its documented default.
func DefaultAutomationSettings() AutomationSettings {
	return AutomationSettings{
		Enabled:     false,
		TimingMode:  TimingBefore,
		MonthlyDay:  1,
		MonthlyHour: 12,
		RepeatMode:  RepeatIndefinite,
		RepeatCount: 10,
	}
}

// Normalize clamps all numeric fields into their valid ranges and falls back
// on unknown repeat modes. An unknown timing mode is preserved as-is: the
// publish-time calculator treats it as "before with zero offset", which is
// not the same as applying the configured offset.
func (s AutomationSettings) Normalize() AutomationSettings {
	s.DaysOffset = clampInt(s.DaysOffset, 0, 30)
	s.HoursOffset = clampInt(s.HoursOffset, 0, 23)
	s.MinutesOffset = clampInt(s.MinutesOffset, 0, 59)
	s.MonthlyDay = clampInt(s.MonthlyDay, 1, 31)
	s.MonthlyHour = clampInt(s.MonthlyHour, 0, 23)
	s.MonthlyMinute = clampInt(s.MonthlyMinute, 0, 59)
	s.RepeatCount = clampInt(s.RepeatCount, 1, 100)

	switch s.RepeatMode {
	case RepeatIndefinite, RepeatCount:
	default:
		s.RepeatMode = RepeatIndefinite
	}

	return s
}

// Offset returns the combined days/hours/minutes offset as a duration
func (s AutomationSettings) Offset() time.Duration {
	return time.Duration(s.DaysOffset)*24*time.Hour +
		time.Duration(s.HoursOffset)*time.Hour +
		time.Duration(s.MinutesOffset)*time.Minute
}

// Profile is one event profile as defined by the host. Resolution reads the
// live catalog at publish time, so profile edits after a pending event was
// computed still take effect.
type Profile struct {
	Name             string             `json:"name" yaml:"name"`
	Description      string             `json:"description" yaml:"description"`
	Category         string             `json:"category" yaml:"category"`
	AccessType       string             `json:"accessType" yaml:"access_type"`
	Languages        []string           `json:"languages" yaml:"languages"`
	Platforms        []string           `json:"platforms" yaml:"platforms"`
	Tags             []string           `json:"tags" yaml:"tags"`
	ImageID          string             `json:"imageId" yaml:"image_id"`
	ImageURL         string             `json:"imageUrl" yaml:"image_url"`
	RoleIDs          []string           `json:"roleIds" yaml:"role_ids"`
	SendNotification bool               `json:"sendNotification" yaml:"send_notification"`
	Duration         int                `json:"duration" yaml:"duration"` // minutes
	Timezone         string             `json:"timezone" yaml:"timezone"`
	Patterns         []recurrence.Rule  `json:"patterns" yaml:"patterns"`
	Automation       AutomationSettings `json:"automation" yaml:"automation"`
}

// DurationMinutes returns the profile duration, defaulting when unset
func (p *Profile) DurationMinutes() int {
	if p == nil || p.Duration <= 0 {
		return DefaultDurationMinutes
	}
	return p.Duration
}

// TimezoneName returns the profile timezone, defaulting to UTC
func (p *Profile) TimezoneName() string {
	if p == nil || p.Timezone == "" {
		return "UTC"
	}
	return p.Timezone
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
