package clock

import "time"

// Clock abstracts wall-clock time so queue timing is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock returns a Clock backed by the system clock in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}
