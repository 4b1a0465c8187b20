// Package scheduler owns the wall-clock wake-ups for pending events: one
// live timer per event, re-armed on long horizons, retried on publish
// failure, and always cancelled before a replacement is armed.
package scheduler

import (
	"sync"
	"time"

	"github.com/groupkit/autopost/internal/clock"
	"github.com/groupkit/autopost/internal/logger"
	"github.com/groupkit/autopost/internal/pending"
)

// PublishFunc executes the publish procedure for a pending event. A non-nil
// error arms the fixed-interval retry timer; retries are unlimited.
type PublishFunc func(id string) error

// LookupFunc fetches the current pending event for an id so re-checks always
// evaluate fresh state
type LookupFunc func(id string) (*pending.Event, bool)

// MissedFunc is invoked when an event's publish time has already passed at
// arming time
type MissedFunc func(ev *pending.Event)

// Config tunes the timer engine. The defaults implement the documented
// behavior; tests shrink them to milliseconds.
type Config struct {
	// ExactHorizon is the longest delay armed as a single exact timer
	ExactHorizon time.Duration
	// RecheckDelay is the coarse re-check interval for longer horizons
	RecheckDelay time.Duration
	// RetryDelay is the fixed wait between publish attempts after a failure
	RetryDelay time.Duration
}

// DefaultConfig returns the production timer configuration
func DefaultConfig() Config {
	return Config{
		ExactHorizon: 24 * time.Hour,
		RecheckDelay: time.Hour,
		RetryDelay:   15 * time.Minute,
	}
}

// TimerEngine maintains at most one live timer per pending event id
type TimerEngine struct {
	mu     sync.Mutex
	timers map[string]*time.Timer

	cfg      Config
	clk      clock.Clock
	log      logger.Logger
	lookup   LookupFunc
	publish  PublishFunc
	onMissed MissedFunc
}

// New creates a timer engine. lookup, publish, and onMissed are the
// orchestrator's hooks; the engine itself never mutates event state beyond
// reporting misses through onMissed.
func New(cfg Config, clk clock.Clock, log logger.Logger, lookup LookupFunc, publish PublishFunc, onMissed MissedFunc) *TimerEngine {
	if log == nil {
		log = logger.NewNop()
	}
	return &TimerEngine{
		timers:   make(map[string]*time.Timer),
		cfg:      cfg,
		clk:      clk,
		log:      log.WithComponent(logger.ComponentScheduler),
		lookup:   lookup,
		publish:  publish,
		onMissed: onMissed,
	}
}

// Arm evaluates a pending event and arms the appropriate timer. Any previous
// timer for the id is cancelled first, so re-arming is always safe.
func (te *TimerEngine) Arm(id string) {
	te.Cancel(id)

	ev, ok := te.lookup(id)
	if !ok || ev.Status != pending.StatusScheduled {
		return
	}

	delay := ev.ScheduledPublishTime.Sub(te.clk.Now())
	if delay <= 0 {
		// Already past due, typically an event missed while the process
		// was not running
		te.onMissed(ev)
		return
	}

	if delay > te.cfg.ExactHorizon {
		// Too far out for a single timer; re-check later with fresh state
		// so host clock changes are picked up
		te.set(id, te.cfg.RecheckDelay, func() { te.Arm(id) })
		te.log.Debug("Armed re-check timer", "pending_event_id", id, "publish_in", delay)
		return
	}

	te.set(id, delay, func() { te.fire(id) })
	te.log.Debug("Armed publish timer", "pending_event_id", id, "publish_in", delay)
}

// Dispatch runs the publish procedure for an event immediately, bypassing
// any armed timer. Failures still enter the retry loop.
func (te *TimerEngine) Dispatch(id string) {
	te.Cancel(id)
	te.fire(id)
}

// Cancel removes the live timer for an id, if any. Event status is the
// caller's responsibility.
func (te *TimerEngine) Cancel(id string) {
	te.mu.Lock()
	defer te.mu.Unlock()

	if timer, ok := te.timers[id]; ok {
		timer.Stop()
		delete(te.timers, id)
	}
}

// CancelAll removes every live timer
func (te *TimerEngine) CancelAll() {
	te.mu.Lock()
	defer te.mu.Unlock()

	for id, timer := range te.timers {
		timer.Stop()
		delete(te.timers, id)
	}
}

// Armed reports whether an id currently has a live timer
func (te *TimerEngine) Armed(id string) bool {
	te.mu.Lock()
	defer te.mu.Unlock()
	_, ok := te.timers[id]
	return ok
}

// Count returns the number of live timers
func (te *TimerEngine) Count() int {
	te.mu.Lock()
	defer te.mu.Unlock()
	return len(te.timers)
}

// fire runs one publish attempt and arms the retry timer on failure
func (te *TimerEngine) fire(id string) {
	if err := te.publish(id); err != nil {
		te.log.Warn("Publish failed, will retry",
			"pending_event_id", id,
			"retry_in", te.cfg.RetryDelay,
			"error", err)
		te.set(id, te.cfg.RetryDelay, func() { te.fire(id) })
	}
}

// set replaces the live timer for an id. The fired callback checks it is
// still the current timer before running, so a superseded timer can never
// double-fire.
func (te *TimerEngine) set(id string, delay time.Duration, fn func()) {
	te.mu.Lock()
	defer te.mu.Unlock()

	if prev, ok := te.timers[id]; ok {
		prev.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		te.mu.Lock()
		current := te.timers[id] == timer
		if current {
			delete(te.timers, id)
		}
		te.mu.Unlock()

		if current {
			fn()
		}
	})
	te.timers[id] = timer
}
