package shared

import "time"

// DateLayout is the wire format of calendar dates (expiration, filters).
const DateLayout = "2006-01-02"

// Clock returns the current instant. Services take one so tests can pin "today".
type Clock func() time.Time

// Day truncates t to midnight of its calendar day in loc and returns it as a UTC
// date, so that two Days compare by calendar day only.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOnly drops the clock part of a stored DATE value.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from a to b (negative when b is before a).
// It works on Unix seconds because Duration saturates past about 292 years.
func DaysBetween(a, b time.Time) int {
	return int((DateOnly(b).Unix() - DateOnly(a).Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// Date is a calendar date that travels as "YYYY-MM-DD" in JSON.
type Date struct {
	time.Time
}

// NewDate wraps t, dropping its clock part.
func NewDate(t time.Time) Date {
	return Date{Time: DateOnly(t)}
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return NewError(ErrValidation, "date invalide, format attendu AAAA-MM-JJ")
	}
	t, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return NewError(ErrValidation, "date invalide, format attendu AAAA-MM-JJ")
	}
	d.Time = t
	return nil
}

// String formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}
