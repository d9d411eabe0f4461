package dates

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrAbsent    = errors.New("date is absent")
	ErrMalformed = errors.New("malformed date")
	ErrInvalid   = errors.New("invalid date")
)

// Kind tags which representation a Value carries.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindISO
	KindCivil
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindISO:
		return "iso"
	case KindCivil:
		return "civil"
	case KindTimestamp:
		return "timestamp"
	default:
		return "absent"
	}
}

// Value is a date as it arrives from storage or the wire: an ISO string, a
// civil date or an external timestamp. The zero Value is absent.
type Value struct {
	kind  Kind
	iso   string
	civil Date
	ts    time.Time
}

func ISO(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}
	}
	return Value{kind: KindISO, iso: s}
}

func Civil(d Date) Value {
	if d.IsZero() {
		return Value{}
	}
	return Value{kind: KindCivil, civil: d}
}

func Timestamp(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{kind: KindTimestamp, ts: t}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// String is the raw representation, used in logs and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindISO:
		return v.iso
	case KindCivil:
		return v.civil.String()
	case KindTimestamp:
		return v.ts.Format(time.RFC3339)
	default:
		return ""
	}
}

// Normalize converts any representation into a concrete calendar date.
// Timestamps and ISO strings carrying a time of day are read in loc.
func (v Value) Normalize(loc *time.Location) (Date, error) {
	switch v.kind {
	case KindCivil:
		return v.civil, nil
	case KindTimestamp:
		return DateOf(inLoc(v.ts, loc)), nil
	case KindISO:
		if y, m, d, ok := splitISODate(v.iso); ok {
			return NewDate(y, time.Month(m), d)
		}
		t, err := parseInstant(v.iso, loc)
		if err != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrMalformed, v.iso)
		}
		return DateOf(inLoc(t, loc)), nil
	default:
		return Date{}, ErrAbsent
	}
}

// recurring extracts month/day validated against a leap year.
func (v Value) recurring(loc *time.Location) (MonthDay, error) {
	if v.kind == KindISO {
		if _, m, d, ok := splitISODate(v.iso); ok {
			if _, err := NewDate(leapReferenceYear, time.Month(m), d); err != nil {
				return MonthDay{}, fmt.Errorf("%w: %q", ErrInvalid, v.iso)
			}
			return MonthDay{Month: time.Month(m), Day: d}, nil
		}
	}
	d, err := v.Normalize(loc)
	if err != nil {
		return MonthDay{}, err
	}
	return d.MonthDay(), nil
}

func inLoc(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}

func parseInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrMalformed
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindAbsent {
		return []byte("null"), nil
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts a string, unix seconds, or a {"seconds","nanoseconds"}
// object as exported by document stores.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = ISO(s)
		return nil
	case '{':
		var raw struct {
			Seconds     *int64 `json:"seconds"`
			AltSeconds  *int64 `json:"_seconds"`
			Nanoseconds int64  `json:"nanoseconds"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		secs := raw.Seconds
		if secs == nil {
			secs = raw.AltSeconds
		}
		if secs == nil {
			return fmt.Errorf("%w: timestamp object without seconds", ErrMalformed)
		}
		*v = Timestamp(time.Unix(*secs, raw.Nanoseconds).UTC())
		return nil
	default:
		var secs int64
		if err := json.Unmarshal(b, &secs); err != nil {
			return fmt.Errorf("%w: %s", ErrMalformed, string(b))
		}
		*v = Timestamp(time.Unix(secs, 0).UTC())
		return nil
	}
}

func (v Value) Value() (driver.Value, error) {
	switch v.kind {
	case KindISO:
		return v.iso, nil
	case KindCivil:
		return v.civil.String(), nil
	case KindTimestamp:
		return v.ts, nil
	default:
		return nil, nil
	}
}

// Scan reads DATE columns as civil dates and text columns as ISO strings.
func (v *Value) Scan(src interface{}) error {
	switch s := src.(type) {
	case nil:
		*v = Value{}
	case time.Time:
		*v = Civil(DateOf(s))
	case []byte:
		*v = ISO(string(s))
	case string:
		*v = ISO(s)
	default:
		return fmt.Errorf("cannot scan type %T into dates.Value", src)
	}
	return nil
}
