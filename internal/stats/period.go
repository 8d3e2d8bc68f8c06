package stats

import (
	"strings"
	"time"
)

// ParsePeriod reads a period name, defaulting to monthly.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PeriodMonthly, nil
	case PeriodAll, PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// WindowFor returns the calendar window of p around now, in loc. Weeks start on Monday.
func WindowFor(p Period, now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	switch p {
	case PeriodDaily:
		return Window{From: day, To: day.AddDate(0, 0, 1)}
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return Window{From: start, To: start.AddDate(0, 0, 7)}
	case PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return Window{From: start, To: start.AddDate(0, 1, 0)}
	default:
		return Window{}
	}
}
