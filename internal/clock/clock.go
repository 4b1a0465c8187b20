// Package clock abstracts the wall clock so scheduling decisions can be
// tested against a controllable time source.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the host wall clock
type System struct{}

// NewSystem returns the real wall clock
func NewSystem() System { return System{} }

// Now returns the current wall-clock time
func (System) Now() time.Time { return time.Now() }

// Fake is a controllable time source for tests
type Fake struct {
	mu      sync.Mutex
	current time.Time
}

// NewFake returns a fake clock initialised to the supplied time
func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

// Now returns the current instant tracked by the clock
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Set updates the clock to the provided time
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
}

// Advance moves the clock forward by the provided duration and returns the
// updated time
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	f.current = f.current.Add(d)
	updated := f.current
	f.mu.Unlock()
	return updated
}
