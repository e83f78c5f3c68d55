package clock

import "time"

// Clock abstracts "now" so that date-window validation can be tested
// deterministically. Validation must read the clock once per request and
// thread the value through every check.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// NewRealClock returns a Clock backed by time.Now.
func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

// MockClock is a settable Clock for tests.
type MockClock struct {
	current time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

func (c *MockClock) Now() time.Time {
	return c.current
}

func (c *MockClock) Set(t time.Time) {
	c.current = t
}

func (c *MockClock) Add(d time.Duration) {
	c.current = c.current.Add(d)
}
