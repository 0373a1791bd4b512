package clock

import (
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/civil"
)

// DefaultFallback is the fixed UTC-8 offset the bot has always used for reward days.
var DefaultFallback = time.FixedZone("PST", -8*60*60)

// Clock is the source of "now" for reward timing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// LocalDay returns the calendar date of t in loc.
func LocalDay(t time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(t.In(loc))
}

// Calendar answers local-day questions in one fixed reference timezone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the named zone. Unknown or malformed names fall back to fallback,
// or DefaultFallback when fallback is nil.
func NewCalendar(name string, fallback *time.Location) *Calendar {
	if fallback == nil {
		fallback = DefaultFallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil || name == "" {
		loc = fallback
	}
	return &Calendar{loc: loc}
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) LocalDay(t time.Time) civil.Date {
	return LocalDay(t, c.loc)
}

// SameDay reports whether a and b fall on the same local day.
func (c *Calendar) SameDay(a, b time.Time) bool {
	return c.LocalDay(a) == c.LocalDay(b)
}

// IsDayBefore reports whether a's local day is exactly one day before b's.
func (c *Calendar) IsDayBefore(a, b time.Time) bool {
	return c.LocalDay(b).DaysSince(c.LocalDay(a)) == 1
}

// DayStart returns the instant t's local day began.
func (c *Calendar) DayStart(t time.Time) time.Time {
	return c.LocalDay(t).In(c.loc)
}

// NextDayStart returns the instant the local day after t begins.
func (c *Calendar) NextDayStart(t time.Time) time.Time {
	return c.LocalDay(t).AddDays(1).In(c.loc)
}
