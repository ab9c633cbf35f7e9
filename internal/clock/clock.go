// Package clock supplies wall-clock time and civil-date arithmetic.
//
// Civil dates are represented as time.Time values at midnight UTC of the
// calendar day observed in the configured location, so they compare and
// subtract exactly and store identically in every database driver.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current instant and the location civil dates are read in.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type systemClock struct {
	loc *time.Location
}

// New returns a Clock backed by time.Now. A nil location means UTC.
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time           { return time.Now() }
func (c systemClock) Location() *time.Location { return c.loc }

// FixedClock always reports the same instant. Tests advance it with Set.
type FixedClock struct {
	mu  sync.RWMutex
	now time.Time
	loc *time.Location
}

// Fixed returns a FixedClock at t, reading civil dates in UTC.
func Fixed(t time.Time) *FixedClock {
	return &FixedClock{now: t, loc: time.UTC}
}

func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *FixedClock) Location() *time.Location { return c.loc }

// In returns a copy of the clock reading civil dates in loc.
func (c *FixedClock) In(loc *time.Location) *FixedClock {
	return &FixedClock{now: c.Now(), loc: loc}
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// DateOf returns the civil date of t observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date of c.Now().
func Today(c Clock) time.Time {
	return DateOf(c.Now(), c.Location())
}

// AddDays shifts a civil date by n calendar days.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b. Both must be civil dates.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
