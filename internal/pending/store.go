package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/groupkit/autopost/internal/logger"
	"github.com/groupkit/autopost/internal/storage"
)

// pendingDocument is the persisted shape of the pending-events document
type pendingDocument struct {
	Events   []*Event `json:"events"`
	Settings Settings `json:"settings"`
}

// stateDocument is the persisted shape of the automation-state document
type stateDocument struct {
	Profiles map[string]*ProfileState `json:"profiles"`
}

// Store owns the two persisted documents: pending events (plus display
// settings) and per-profile automation state. The in-memory copy is the
// source of truth; every mutation is followed by a full document rewrite.
// Missing or corrupt documents degrade to empty defaults, never to a failed
// startup.
//
// Queries hand out copies and field mutations go through Update, so timer
// goroutines and host queries never touch the same Event concurrently.
type Store struct {
	mu     sync.RWMutex
	docs   storage.DocumentStore
	log    logger.Logger
	events []*Event
	sett   Settings
	states map[string]*ProfileState
}

// NewStore creates a store over the given document backend
func NewStore(docs storage.DocumentStore, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		docs:   docs,
		log:    log.WithComponent(logger.ComponentStore),
		sett:   Settings{DisplayLimit: DefaultDisplayLimit},
		states: make(map[string]*ProfileState),
	}
}

// Load reads both documents from the backend. It never fails: unreadable or
// malformed documents are logged and replaced with empty defaults.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	s.sett = Settings{DisplayLimit: DefaultDisplayLimit}
	s.states = make(map[string]*ProfileState)

	if data, err := s.docs.Load(ctx, storage.KeyPendingEvents); err == nil {
		var doc pendingDocument
		if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
			s.log.Warn("Pending events document is malformed, starting empty", "error", jsonErr)
		} else {
			s.events = doc.Events
			if doc.Settings.DisplayLimit > 0 {
				s.sett = doc.Settings
			}
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("Failed to load pending events, starting empty", "error", err)
	}

	if data, err := s.docs.Load(ctx, storage.KeyAutomationState); err == nil {
		var doc stateDocument
		if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
			s.log.Warn("Automation state document is malformed, starting empty", "error", jsonErr)
		} else if doc.Profiles != nil {
			s.states = doc.Profiles
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("Failed to load automation state, starting empty", "error", err)
	}

	s.log.Debug("Store loaded", "pending_events", len(s.events), "profiles", len(s.states))
}

// SaveEvents rewrites the pending-events document in full
func (s *Store) SaveEvents(ctx context.Context) error {
	s.mu.RLock()
	doc := pendingDocument{Events: s.events, Settings: s.sett}
	if doc.Events == nil {
		doc.Events = []*Event{}
	}
	data, err := json.Marshal(doc)
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal pending events: %w", err)
	}
	if err := s.docs.Save(ctx, storage.KeyPendingEvents, data); err != nil {
		s.log.Error("Failed to save pending events", "error", err)
		return err
	}
	return nil
}

// SaveState rewrites the automation-state document in full
func (s *Store) SaveState(ctx context.Context) error {
	s.mu.RLock()
	data, err := json.Marshal(stateDocument{Profiles: s.states})
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal automation state: %w", err)
	}
	if err := s.docs.Save(ctx, storage.KeyAutomationState, data); err != nil {
		s.log.Error("Failed to save automation state", "error", err)
		return err
	}
	return nil
}

// cloneEvent returns a shallow copy. Pointer fields are only ever replaced
// wholesale by Update, never written through, so sharing them is safe.
func cloneEvent(e *Event) *Event {
	c := *e
	return &c
}

// Get returns a copy of the pending event with the given id
func (s *Store) Get(id string) (*Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.ID == id {
			return cloneEvent(e), true
		}
	}
	return nil, false
}

// Update applies fn to the live event with the given id under the store
// lock, reporting whether the event exists. All field mutations must go
// through here so queries never observe a half-written event.
func (s *Store) Update(id string, fn func(*Event)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			fn(e)
			return true
		}
	}
	return false
}

// Add appends pending events
func (s *Store) Add(events ...*Event) {
	s.mu.Lock()
	s.events = append(s.events, events...)
	s.mu.Unlock()
}

// Remove deletes the pending event with the given id, reporting whether it
// was present
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.events {
		if e.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveWhere deletes all events matching the predicate and returns how many
// were removed
func (s *Store) RemoveWhere(match func(*Event) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if match(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed
}

// All returns a copied snapshot of every pending event
func (s *Store) All() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Event, len(s.events))
	for i, e := range s.events {
		out[i] = cloneEvent(e)
	}
	return out
}

// List returns pending events, optionally filtered by group and restricted
// to active ones (not published/cancelled). An empty groupID matches all
// groups.
func (s *Store) List(groupID string, activeOnly bool) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.events {
		if groupID != "" && e.GroupID != groupID {
			continue
		}
		if activeOnly && !e.Active() {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	return out
}

// ForProfile returns every pending event referencing the given profile
func (s *Store) ForProfile(groupID, profileKey string) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.events {
		if e.BelongsTo(groupID, profileKey) {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}

// MissedCount counts missed events, optionally for one group
func (s *Store) MissedCount(groupID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.events {
		if e.Status != StatusMissed {
			continue
		}
		if groupID != "" && e.GroupID != groupID {
			continue
		}
		n++
	}
	return n
}

// Settings returns the current display settings
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sett
}

// SetDisplayLimit updates the display limit and persists the document
func (s *Store) SetDisplayLimit(ctx context.Context, limit int) error {
	if limit < 1 {
		limit = DefaultDisplayLimit
	}
	s.mu.Lock()
	s.sett.DisplayLimit = limit
	s.mu.Unlock()
	return s.SaveEvents(ctx)
}

// State returns a copy of the automation state for a profile; the zero
// value when automation has never run for it
func (s *Store) State(groupID, profileKey string) ProfileState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.states[StateKey(groupID, profileKey)]; ok {
		return *st
	}
	return ProfileState{}
}

// RecordSuccess bumps the created counter and remembers the last success
func (s *Store) RecordSuccess(groupID, profileKey, eventID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := StateKey(groupID, profileKey)
	st, ok := s.states[key]
	if !ok {
		st = &ProfileState{}
		s.states[key] = st
	}
	st.EventsCreated++
	t := at.UTC()
	st.LastSuccess = &t
	st.LastEventID = eventID
}

// ResetState zeroes a profile's automation counters
func (s *Store) ResetState(groupID, profileKey string) {
	s.mu.Lock()
	s.states[StateKey(groupID, profileKey)] = &ProfileState{}
	s.mu.Unlock()
}
