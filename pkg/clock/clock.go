package clock

import "time"

// BusinessZone is the fixed UTC+05:30 offset every calendar-day computation
// in the engine uses, independent of the host timezone.
var BusinessZone = time.FixedZone("IST", 5*60*60+30*60)

// Clock allows injecting time in domain/services.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock that always returns the same instant (useful for tests).
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// DayKey formats t as YYYYMMDD in the business zone.
func DayKey(t time.Time) string {
	return t.In(BusinessZone).Format("20060102")
}
