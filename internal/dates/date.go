// Package dates holds the calendar primitives shared by the scan, scheduling and
// broadcast code: civil dates, recurring month/day matching and local-time anchors.
package dates

import (
	"fmt"
	"time"
)

const isoLayout = "2006-01-02"

// leapReferenceYear is used to validate recurring dates, so Feb 29 is always
// a legal anniversary regardless of the stored year.
const leapReferenceYear = 2000

// Date is a calendar date without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates y/m/d against the real calendar of that year.
func NewDate(year int, month time.Month, day int) (Date, error) {
	if month < time.January || month > time.December {
		return Date{}, fmt.Errorf("%w: month %d", ErrInvalid, month)
	}
	if day < 1 || day > DaysIn(year, month) {
		return Date{}, fmt.Errorf("%w: day %d for %04d-%02d", ErrInvalid, day, year, month)
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// MustDate is NewDate for literals known to be valid.
func MustDate(year int, month time.Month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	y, m, d, ok := splitISODate(s)
	if !ok {
		return Date{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return NewDate(y, time.Month(m), d)
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) MonthDay() MonthDay {
	return MonthDay{Month: d.Month, Day: d.Day}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthDay is the year-less part of a recurring date.
type MonthDay struct {
	Month time.Month
	Day   int
}

// Suffix is the "-MM-DD" tail of an ISO date string with this month and day.
func (md MonthDay) Suffix() string {
	return fmt.Sprintf("-%02d-%02d", int(md.Month), md.Day)
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// Days returns every date from start to end inclusive. It returns nil when end
// is before start.
func Days(start, end Date) []Date {
	if end.Before(start) {
		return nil
	}
	var out []Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// splitISODate parses exactly YYYY-MM-DD with ASCII digits, no range checks.
func splitISODate(s string) (year, month, day int, ok bool) {
	if len(s) != len(isoLayout) || s[4] != '-' || s[7] != '-' {
		return 0, 0, 0, false
	}
	year, ok = atoi(s[0:4])
	if !ok {
		return 0, 0, 0, false
	}
	month, ok = atoi(s[5:7])
	if !ok {
		return 0, 0, 0, false
	}
	day, ok = atoi(s[8:10])
	if !ok {
		return 0, 0, 0, false
	}
	return year, month, day, true
}

func atoi(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
