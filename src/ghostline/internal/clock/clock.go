package clock

import (
	"time"
)

// Clock is an interface that abstracts the functionality for measuring and displaying time.
type Clock interface {
	// Now returns the current local time.
	Now() time.Time
	// Sleep pauses the current goroutine for at least the duration d. A negative or zero duration causes Sleep to return immediately.
	Sleep(duration time.Duration)
	// NewTimer creates a Timer that will send the current time on its channel after at least duration d.
	NewTimer(duration time.Duration) Timer
}

// Timer is the subset of *time.Timer used by callers of Clock.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type clock struct{}

// New creates a new instance of Clock.
func New() Clock {
	return clock{}
}

func (clock) Now() time.Time {
	return time.Now()
}

func (clock) Sleep(duration time.Duration) {
	time.Sleep(duration)
}

func (clock) NewTimer(duration time.Duration) Timer {
	return &timer{t: time.NewTimer(duration)}
}

type timer struct {
	t *time.Timer
}

func (t *timer) C() <-chan time.Time {
	return t.t.C
}

func (t *timer) Stop() bool {
	return t.t.Stop()
}
