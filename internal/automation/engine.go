// Package automation is the orchestrator: it recalculates pending events
// when a profile changes, drives the timer engine, resolves live payloads at
// publish time, and exposes the lifecycle actions for missed events.
package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/groupkit/autopost/internal/clock"
	"github.com/groupkit/autopost/internal/logger"
	"github.com/groupkit/autopost/internal/metrics"
	"github.com/groupkit/autopost/internal/pending"
	"github.com/groupkit/autopost/internal/profile"
	"github.com/groupkit/autopost/internal/recurrence"
	"github.com/groupkit/autopost/internal/scheduler"
	"github.com/groupkit/autopost/internal/storage"
	"github.com/groupkit/autopost/internal/timing"
)

// ErrEventNotFound is returned for lifecycle actions on unknown event ids
var ErrEventNotFound = errors.New("pending event not found")

// rescheduleFallback is used when a missed event cannot be re-derived from
// its profile's timing settings
const rescheduleFallback = 5 * time.Minute

// MissedAction is a user decision about a missed pending event
type MissedAction string

const (
	// MissedPostNow publishes the event immediately, bypassing the timer
	MissedPostNow MissedAction = "postNow"
	// MissedReschedule computes a fresh publish time and re-arms
	MissedReschedule MissedAction = "reschedule"
	// MissedCancel removes the pending event entirely
	MissedCancel MissedAction = "cancel"
)

// CreateEventFunc is the external event-creation collaborator. It returns
// the remote event id on success; any error triggers the retry loop.
type CreateEventFunc func(ctx context.Context, groupID string, payload EventPayload, startUTC, endUTC time.Time) (string, error)

// Notifications are the host callbacks fired on lifecycle transitions,
// intended for UI badges and toasts. Either may be nil.
type Notifications struct {
	EventMissed  func(ev *pending.Event)
	EventCreated func(ev *pending.Event, eventID string)
}

// Config tunes the orchestrator
type Config struct {
	// MonthsAhead bounds the occurrence generation horizon
	MonthsAhead int
	// MaxPerRecalc caps how many new pending events one recalculation
	// may create
	MaxPerRecalc int
	// Timers configures the underlying timer engine
	Timers scheduler.Config
}

// DefaultConfig returns the production orchestrator configuration
func DefaultConfig() Config {
	return Config{
		MonthsAhead:  3,
		MaxPerRecalc: 10,
		Timers:       scheduler.DefaultConfig(),
	}
}

// Status summarizes automation progress for one profile
type Status struct {
	EventsCreated int        `json:"eventsCreated"`
	LastSuccess   *time.Time `json:"lastSuccess,omitempty"`
	LastEventID   string     `json:"lastEventId,omitempty"`
	PendingCount  int        `json:"pendingCount"`
	MissedCount   int        `json:"missedCount"`
}

// Engine owns all mutable automation state: the pending event store, the
// timer engine, and the cached profile catalog reference. One engine per
// data directory; the mutex serializes orchestration operations.
type Engine struct {
	mu sync.Mutex

	cfg         Config
	store       *pending.Store
	catalog     *profile.Catalog
	createEvent CreateEventFunc
	notify      Notifications
	clk         clock.Clock
	log         logger.Logger
	met         *metrics.Collector
	sched       *scheduler.TimerEngine
}

// New creates an engine over the given document backend and profile catalog.
// A nil clock defaults to the system clock; a nil collector defaults to the
// global one.
func New(cfg Config, docs storage.DocumentStore, catalog *profile.Catalog, createEvent CreateEventFunc, notify Notifications, clk clock.Clock, log logger.Logger, met *metrics.Collector) *Engine {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if met == nil {
		met = metrics.Default()
	}

	e := &Engine{
		cfg:         cfg,
		store:       pending.NewStore(docs, log),
		catalog:     catalog,
		createEvent: createEvent,
		notify:      notify,
		clk:         clk,
		log:         log.WithComponent(logger.ComponentEngine),
		met:         met,
	}
	e.sched = scheduler.New(cfg.Timers, clk, log, e.store.Get, e.publish, e.markMissed)
	return e
}

// Initialize loads persisted state, transitions events whose publish time
// passed while the process was down to missed (one batched persist, one
// notification each), and arms timers for the rest.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	e.store.Load(ctx)

	now := e.clk.Now()
	var missed []*pending.Event
	var toArm []string
	for _, ev := range e.store.All() {
		if ev.Status != pending.StatusScheduled {
			continue
		}
		if !ev.ScheduledPublishTime.After(now) {
			t := now.UTC()
			ev.Status = pending.StatusMissed
			ev.MissedAt = &t
			e.store.Update(ev.ID, func(live *pending.Event) {
				live.Status = pending.StatusMissed
				live.MissedAt = &t
			})
			missed = append(missed, ev)
		} else {
			toArm = append(toArm, ev.ID)
		}
	}

	var err error
	if len(missed) > 0 {
		err = e.store.SaveEvents(ctx)
	}
	e.mu.Unlock()

	for _, ev := range missed {
		e.met.RecordMissed()
		if e.notify.EventMissed != nil {
			e.notify.EventMissed(ev)
		}
	}
	for _, id := range toArm {
		e.sched.Arm(id)
	}

	e.log.Info("Automation engine initialized",
		"armed", len(toArm),
		"missed_on_startup", len(missed))
	return err
}

// RecalculateForProfile rebuilds the pending events for one profile. Events
// with manual overrides survive; everything else for the profile is replaced.
// Passing a nil profile (or one with automation disabled) clears the
// profile's non-overridden events without creating new ones.
func (e *Engine) RecalculateForProfile(ctx context.Context, groupID, profileKey string, p *profile.Profile) error {
	e.mu.Lock()

	if p != nil {
		e.catalog.Put(groupID, profileKey, p)
	}

	existing := e.store.ForProfile(groupID, profileKey)
	for _, ev := range existing {
		e.sched.Cancel(ev.ID)
	}
	e.store.RemoveWhere(func(ev *pending.Event) bool {
		return ev.BelongsTo(groupID, profileKey) && ev.ManualOverrides == nil
	})

	if p == nil || !p.Automation.Enabled {
		err := e.store.SaveEvents(ctx)
		e.mu.Unlock()
		e.log.Info("Automation disabled for profile", "group_id", groupID, "profile_key", profileKey)
		return err
	}

	s := p.Automation.Normalize()
	state := e.store.State(groupID, profileKey)

	// The repeat ceiling counts events already created plus overridden
	// survivors still pending
	remaining := -1
	if s.RepeatMode == profile.RepeatCount {
		surviving := 0
		for _, ev := range e.store.ForProfile(groupID, profileKey) {
			if ev.Active() {
				surviving++
			}
		}
		remaining = s.RepeatCount - state.EventsCreated - surviving
		if remaining <= 0 {
			err := e.store.SaveEvents(ctx)
			e.mu.Unlock()
			e.log.Info("Repeat ceiling reached, no new events",
				"group_id", groupID,
				"profile_key", profileKey,
				"events_created", state.EventsCreated)
			return err
		}
	}

	now := e.clk.Now()
	occs := recurrence.Generate(p.Patterns, e.cfg.MonthsAhead, p.TimezoneName(), now)

	loc, locErr := time.LoadLocation(p.TimezoneName())
	if locErr != nil {
		loc = time.UTC
	}
	var lastSuccess time.Time
	if state.LastSuccess != nil {
		lastSuccess = *state.LastSuccess
	}
	calc := timing.Calculator{
		Settings:    p.Automation,
		Duration:    time.Duration(p.DurationMinutes()) * time.Minute,
		Location:    loc,
		Now:         now,
		LastSuccess: lastSuccess,
	}

	var created []*pending.Event
	var prev time.Time
	for _, occ := range occs {
		if len(created) >= e.cfg.MaxPerRecalc {
			break
		}
		if remaining >= 0 && len(created) >= remaining {
			break
		}
		publishAt, ok := calc.Next(occ.Start, prev)
		if !ok {
			// Dropped occurrences do not anchor after-mode chaining; until
			// one sticks, the lastSuccess/now anchor applies
			continue
		}
		prev = occ.Start
		created = append(created, pending.NewEvent(groupID, profileKey, publishAt, occ.Start))
	}

	e.store.Add(created...)
	err := e.store.SaveEvents(ctx)
	e.mu.Unlock()

	for _, ev := range created {
		e.sched.Arm(ev.ID)
	}
	e.met.RecordRecalculation()

	e.log.Info("Recalculated pending events",
		"group_id", groupID,
		"profile_key", profileKey,
		"occurrences", len(occs),
		"new_events", len(created))
	return err
}

// RemoveProfile drops a profile and every pending event referencing it,
// overridden or not
func (e *Engine) RemoveProfile(ctx context.Context, groupID, profileKey string) error {
	e.mu.Lock()

	existing := e.store.ForProfile(groupID, profileKey)
	for _, ev := range existing {
		e.sched.Cancel(ev.ID)
	}
	e.store.RemoveWhere(func(ev *pending.Event) bool {
		return ev.BelongsTo(groupID, profileKey)
	})
	e.catalog.Remove(groupID, profileKey)

	err := e.store.SaveEvents(ctx)
	e.mu.Unlock()

	e.log.Info("Removed profile", "group_id", groupID, "profile_key", profileKey, "events_dropped", len(existing))
	return err
}

// ResolveEventDetails builds the live payload for a pending event from the
// current profile definition plus any manual overrides. The second return is
// false when the referenced profile no longer exists.
func (e *Engine) ResolveEventDetails(id string) (EventPayload, bool) {
	ev, ok := e.store.Get(id)
	if !ok {
		return EventPayload{}, false
	}
	p, ok := e.catalog.Get(ev.GroupID, ev.ProfileKey)
	if !ok {
		return EventPayload{}, false
	}
	return buildPayload(p, ev.ManualOverrides), true
}

// HandleMissedEvent applies a user decision to a missed pending event
func (e *Engine) HandleMissedEvent(ctx context.Context, id string, action MissedAction) error {
	e.mu.Lock()
	ev, ok := e.store.Get(id)
	if !ok {
		e.mu.Unlock()
		return ErrEventNotFound
	}

	switch action {
	case MissedPostNow:
		e.store.Update(ev.ID, func(live *pending.Event) {
			live.Status = pending.StatusScheduled
			live.MissedAt = nil
		})
		err := e.store.SaveEvents(ctx)
		e.mu.Unlock()
		if err != nil {
			return err
		}
		e.sched.Dispatch(ev.ID)
		return nil

	case MissedReschedule:
		now := e.clk.Now()
		// Only "before" mode re-derives cleanly from a missed state; other
		// modes get a pragmatic near-future slot
		newPublish := now.Add(rescheduleFallback)
		if p, found := e.catalog.Get(ev.GroupID, ev.ProfileKey); found && p.Automation.TimingMode == profile.TimingBefore {
			if candidate := ev.EventStartsAt.Add(-p.Automation.Normalize().Offset()); candidate.After(now) {
				newPublish = candidate
			}
		}
		e.store.Update(ev.ID, func(live *pending.Event) {
			live.ScheduledPublishTime = newPublish.UTC()
			live.Status = pending.StatusScheduled
			live.MissedAt = nil
		})
		err := e.store.SaveEvents(ctx)
		e.mu.Unlock()
		if err != nil {
			return err
		}
		e.sched.Arm(ev.ID)
		return nil

	case MissedCancel:
		e.store.Remove(ev.ID)
		err := e.store.SaveEvents(ctx)
		e.mu.Unlock()
		e.sched.Cancel(ev.ID)
		e.met.RecordCancelled()
		return err

	default:
		e.mu.Unlock()
		return fmt.Errorf("unknown missed-event action: %s", action)
	}
}

// UpdateOverrides pins manual overrides onto a pending event. When the
// override moves the occurrence start, the publish time is recomputed:
// "before" mode re-derives from the profile offset, other modes keep the
// original gap between publish and start.
func (e *Engine) UpdateOverrides(ctx context.Context, id string, ov *pending.Overrides) error {
	e.mu.Lock()
	ev, ok := e.store.Get(id)
	if !ok {
		e.mu.Unlock()
		return ErrEventNotFound
	}

	oldStart := ev.EventStartsAt
	oldPublish := ev.ScheduledPublishTime

	startChanged := ov != nil && ov.EventStartsAt != nil && !ov.EventStartsAt.Equal(oldStart)
	nowMissed := false
	rearm := false

	var newStart, newPublish time.Time
	if startChanged {
		newStart = ov.EventStartsAt.UTC()
		if p, found := e.catalog.Get(ev.GroupID, ev.ProfileKey); found && p.Automation.TimingMode == profile.TimingBefore {
			newPublish = newStart.Add(-p.Automation.Normalize().Offset())
		} else {
			newPublish = newStart.Add(oldPublish.Sub(oldStart))
		}
		nowMissed = !newPublish.After(e.clk.Now())
		rearm = !nowMissed
	}

	t := e.clk.Now().UTC()
	e.store.Update(id, func(live *pending.Event) {
		live.ManualOverrides = ov
		if !startChanged {
			return
		}
		live.EventStartsAt = newStart
		live.ScheduledPublishTime = newPublish.UTC()
		if nowMissed {
			live.Status = pending.StatusMissed
			live.MissedAt = &t
		} else if live.Status == pending.StatusMissed {
			live.Status = pending.StatusScheduled
			live.MissedAt = nil
		}
	})

	err := e.store.SaveEvents(ctx)
	e.mu.Unlock()

	if nowMissed {
		e.sched.Cancel(id)
		e.met.RecordMissed()
	}
	if rearm {
		e.sched.Arm(id)
	}
	return err
}

// PendingEvents lists pending events, optionally for one group and
// optionally restricted to active ones
func (e *Engine) PendingEvents(groupID string, activeOnly bool) []*pending.Event {
	return e.store.List(groupID, activeOnly)
}

// MissedCount counts missed events, optionally for one group
func (e *Engine) MissedCount(groupID string) int {
	return e.store.MissedCount(groupID)
}

// ProfileStatus reports automation progress for one profile
func (e *Engine) ProfileStatus(groupID, profileKey string) Status {
	state := e.store.State(groupID, profileKey)

	pendingCount := 0
	missedCount := 0
	for _, ev := range e.store.ForProfile(groupID, profileKey) {
		switch ev.Status {
		case pending.StatusScheduled:
			pendingCount++
		case pending.StatusMissed:
			missedCount++
		}
	}

	return Status{
		EventsCreated: state.EventsCreated,
		LastSuccess:   state.LastSuccess,
		LastEventID:   state.LastEventID,
		PendingCount:  pendingCount,
		MissedCount:   missedCount,
	}
}

// Settings returns the persisted display settings
func (e *Engine) Settings() pending.Settings {
	return e.store.Settings()
}

// UpdateDisplayLimit updates and persists the display limit
func (e *Engine) UpdateDisplayLimit(ctx context.Context, limit int) error {
	return e.store.SetDisplayLimit(ctx, limit)
}

// ResetState zeroes a profile's automation counters and persists
func (e *Engine) ResetState(ctx context.Context, groupID, profileKey string) error {
	e.store.ResetState(groupID, profileKey)
	return e.store.SaveState(ctx)
}

// CancelAll removes every live timer without touching event state
func (e *Engine) CancelAll() {
	e.sched.CancelAll()
}

// Close cancels every live timer. Persisted state is untouched.
func (e *Engine) Close() {
	e.sched.CancelAll()
}

// publish is the timer engine's publish hook: resolve the live payload,
// call the external collaborator, and record the outcome. A returned error
// puts the event into the retry loop.
func (e *Engine) publish(id string) error {
	ctx := context.Background()

	e.mu.Lock()
	ev, ok := e.store.Get(id)
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if ev.Status == pending.StatusPublished || ev.Status == pending.StatusCancelled {
		e.mu.Unlock()
		return nil
	}

	p, found := e.catalog.Get(ev.GroupID, ev.ProfileKey)
	if !found {
		// Orphaned: the profile was deleted while this event was pending
		e.store.Update(id, func(live *pending.Event) {
			live.Status = pending.StatusCancelled
		})
		_ = e.store.SaveEvents(ctx)
		e.mu.Unlock()
		e.met.RecordCancelled()
		e.log.Warn("Cancelled orphaned pending event",
			"pending_event_id", id,
			"group_id", ev.GroupID,
			"profile_key", ev.ProfileKey)
		return nil
	}

	payload := buildPayload(p, ev.ManualOverrides)

	start := ev.EventStartsAt
	durationMinutes := p.DurationMinutes()
	if ov := ev.ManualOverrides; ov != nil {
		if ov.EventStartsAt != nil {
			start = ov.EventStartsAt.UTC()
		}
		if ov.DurationMinutes != nil && *ov.DurationMinutes > 0 {
			durationMinutes = *ov.DurationMinutes
		}
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	e.mu.Unlock()

	// The external call happens outside the lock so a slow collaborator
	// cannot stall other orchestration operations
	eventID, err := e.createEvent(ctx, ev.GroupID, payload, start, end)
	if err != nil {
		e.met.RecordRetry()
		return fmt.Errorf("failed to create event: %w", err)
	}

	e.mu.Lock()
	ev.Status = pending.StatusPublished
	e.store.Update(id, func(live *pending.Event) {
		live.Status = pending.StatusPublished
	})
	e.store.RecordSuccess(ev.GroupID, ev.ProfileKey, eventID, e.clk.Now())
	_ = e.store.SaveEvents(ctx)
	_ = e.store.SaveState(ctx)
	e.mu.Unlock()

	e.met.RecordPublished()
	if e.notify.EventCreated != nil {
		e.notify.EventCreated(ev, eventID)
	}
	e.log.Info("Published pending event",
		"pending_event_id", id,
		"event_id", eventID,
		"group_id", ev.GroupID,
		"profile_key", ev.ProfileKey)
	return nil
}

// markMissed is the timer engine's past-due hook
func (e *Engine) markMissed(ev *pending.Event) {
	e.mu.Lock()
	t := e.clk.Now().UTC()
	transitioned := false
	e.store.Update(ev.ID, func(live *pending.Event) {
		if live.Status != pending.StatusScheduled {
			return
		}
		live.Status = pending.StatusMissed
		live.MissedAt = &t
		transitioned = true
	})
	if !transitioned {
		e.mu.Unlock()
		return
	}
	_ = e.store.SaveEvents(context.Background())
	e.mu.Unlock()

	ev.Status = pending.StatusMissed
	ev.MissedAt = &t

	e.met.RecordMissed()
	if e.notify.EventMissed != nil {
		e.notify.EventMissed(ev)
	}
	e.log.Warn("Pending event missed its publish time",
		"pending_event_id", ev.ID,
		"scheduled_publish_time", ev.ScheduledPublishTime)
}
