package dates

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// ParseRecurring extracts the month and day of a recurring date. Day-for-month
// is checked against a leap year, so "1990-02-29" is accepted while
// "2024-02-30" and "2024-04-31" are rejected with ErrInvalid.
func ParseRecurring(v Value, loc *time.Location) (MonthDay, error) {
	return v.recurring(loc)
}

// Parse is ParseRecurring for callers that only need a yes/no answer. Bad
// values are logged and reported as absent.
func Parse(v Value, loc *time.Location) (MonthDay, bool) {
	md, err := v.recurring(loc)
	if err != nil {
		if !errors.Is(err, ErrAbsent) {
			logrus.WithFields(logrus.Fields{
				"value": v.String(),
				"kind":  v.Kind().String(),
			}).Warnf("skipping unusable recurring date: %v", err)
		}
		return MonthDay{}, false
	}
	return md, true
}

// Matches reports whether v falls on month/day in any year. Absent and
// invalid values never match.
func Matches(v Value, month time.Month, day int, loc *time.Location) bool {
	md, err := v.recurring(loc)
	if err != nil {
		return false
	}
	return md.Month == month && md.Day == day
}

// SuffixMatcher matches many values against one fixed month/day. Plain ISO
// dates are compared by their "-MM-DD" tail without parsing; anything else
// goes through the general path.
type SuffixMatcher struct {
	target MonthDay
	suffix string
	loc    *time.Location
}

func NewSuffixMatcher(target MonthDay, loc *time.Location) SuffixMatcher {
	return SuffixMatcher{target: target, suffix: target.Suffix(), loc: loc}
}

func (m SuffixMatcher) Target() MonthDay {
	return m.target
}

func (m SuffixMatcher) Match(v Value) bool {
	if v.kind == KindISO && len(v.iso) == len(isoLayout) {
		// a matching tail already implies a valid day for the month
		if v.iso[4:] != m.suffix {
			return false
		}
		_, _, _, ok := splitISODate(v.iso)
		return ok
	}
	return Matches(v, m.target.Month, m.target.Day, m.loc)
}

// At anchors hour:minute of the calendar date d in loc.
func At(d Date, hour, minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

// ReminderTimes returns the two reminder instants for an event starting at
// scheduled: eveningHour:00 on the previous civil day and ten minutes before
// the start.
func ReminderTimes(scheduled time.Time, eveningHour int, loc *time.Location) (evening, tenMinutes time.Time) {
	local := inLoc(scheduled, loc)
	prev := DateOf(local).AddDays(-1)
	evening = At(prev, eveningHour, 0, local.Location())
	tenMinutes = scheduled.Add(-10 * time.Minute)
	return evening, tenMinutes
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Today returns the civil date of clock's current instant in loc.
func Today(clock Clock, loc *time.Location) Date {
	return DateOf(inLoc(clock.Now(), loc))
}
