// Package pending holds the durable records of events that have been
// computed but not yet published, plus the per-profile automation counters.
package pending

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a pending event
type Status string

const (
	// StatusScheduled indicates the event is waiting for its publish time
	StatusScheduled Status = "scheduled"
	// StatusMissed indicates the publish time passed without publishing
	StatusMissed Status = "missed"
	// StatusPublished indicates the event was created on the remote service
	StatusPublished Status = "published"
	// StatusCancelled indicates the event will never be published
	StatusCancelled Status = "cancelled"
)

// Overrides is a partial event payload pinned onto a pending event by a
// user. Non-nil fields take precedence over the profile definition when the
// payload is resolved at publish time.
type Overrides struct {
	Title            *string    `json:"title,omitempty"`
	Description      *string    `json:"description,omitempty"`
	Category         *string    `json:"category,omitempty"`
	AccessType       *string    `json:"accessType,omitempty"`
	Languages        []string   `json:"languages,omitempty"`
	Platforms        []string   `json:"platforms,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	ImageID          *string    `json:"imageId,omitempty"`
	ImageURL         *string    `json:"imageUrl,omitempty"`
	RoleIDs          []string   `json:"roleIds,omitempty"`
	SendNotification *bool      `json:"sendCreationNotification,omitempty"`
	DurationMinutes  *int       `json:"durationMinutes,omitempty"`
	Timezone         *string    `json:"timezone,omitempty"`
	EventStartsAt    *time.Time `json:"eventStartsAt,omitempty"`
}

// Event is the durable unit of automation work
type Event struct {
	// ID uniquely identifies the pending event
	ID string `json:"id"`
	// GroupID is the remote group the event will be created in
	GroupID string `json:"groupId"`
	// ProfileKey identifies the profile within the group
	ProfileKey string `json:"profileKey"`
	// ScheduledPublishTime is when the event should be created (UTC)
	ScheduledPublishTime time.Time `json:"scheduledPublishTime"`
	// EventStartsAt is the occurrence instant the event represents (UTC)
	EventStartsAt time.Time `json:"eventStartsAt"`
	// ManualOverrides are user-pinned payload fields; nil when untouched
	ManualOverrides *Overrides `json:"manualOverrides"`
	// Status is the lifecycle state
	Status Status `json:"status"`
	// MissedAt records when the event was marked missed; nil otherwise
	MissedAt *time.Time `json:"missedAt"`
}

// NewEvent creates a scheduled pending event for one occurrence
func NewEvent(groupID, profileKey string, publishAt, startsAt time.Time) *Event {
	return &Event{
		ID:                   uuid.New().String(),
		GroupID:              groupID,
		ProfileKey:           profileKey,
		ScheduledPublishTime: publishAt.UTC(),
		EventStartsAt:        startsAt.UTC(),
		Status:               StatusScheduled,
	}
}

// Active reports whether the event still needs attention: anything that is
// neither published nor cancelled.
func (e *Event) Active() bool {
	return e.Status != StatusPublished && e.Status != StatusCancelled
}

// BelongsTo reports whether the event references the given profile
func (e *Event) BelongsTo(groupID, profileKey string) bool {
	return e.GroupID == groupID && e.ProfileKey == profileKey
}

// StateKey returns the event's automation-state key
func (e *Event) StateKey() string {
	return StateKey(e.GroupID, e.ProfileKey)
}

// StateKey builds the automation-state key for a profile
func StateKey(groupID, profileKey string) string {
	return groupID + "::" + profileKey
}

// ProfileState tracks automation progress for one profile
type ProfileState struct {
	// EventsCreated counts events automation has successfully created
	EventsCreated int `json:"eventsCreated"`
	// LastSuccess is when the last event was created; nil if never
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	// LastEventID is the remote id of the last created event
	LastEventID string `json:"lastEventId,omitempty"`
}

// DefaultDisplayLimit caps how many pending events a consumer should display
const DefaultDisplayLimit = 10

// Settings is the small settings document stored alongside pending events
type Settings struct {
	DisplayLimit int `json:"displayLimit"`
}
