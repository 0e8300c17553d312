package clock

import "time"

// Clock abstracts time so session expiry and lifecycle timestamps stay
// testable without real time.
type Clock interface {
	Now() time.Time
}

type clock struct{}

func (c *clock) Now() time.Time {
	return time.Now()
}

func New() Clock {
	return &clock{}
}

// Mock is a settable clock for tests.
type Mock struct {
	now time.Time
}

func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

func (m *Mock) Now() time.Time {
	return m.now
}

// Advance moves the mock clock forward.
func (m *Mock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}
