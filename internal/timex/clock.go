package timex

import "time"

// Clock returns the current time. Components take a Clock instead of calling
// time.Now so tests can drive them.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// System is the wall clock.
var System Clock = ClockFunc(time.Now)

// TimeOfDayLayout is the "HH:MM:SS" layout used for the stored login time.
const TimeOfDayLayout = "15:04:05"

// FormatTimeOfDay renders t as HH:MM:SS in t's location.
func FormatTimeOfDay(t time.Time) string {
	return t.Format(TimeOfDayLayout)
}
