package reports

import (
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	Day   Period = "day"
	Month Period = "month"
	Year  Period = "year"
)

type Comparison string

const (
	ComparePrevious     Comparison = "previous"
	CompareSameLastYear Comparison = "sameLastYear"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Day, Month, Year:
		return p, nil
	case "":
		return Month, nil
	default:
		return "", fmt.Errorf("invalid period %q: must be day, month or year", s)
	}
}

func ParseComparison(s string) (Comparison, error) {
	switch c := Comparison(strings.TrimSpace(s)); c {
	case ComparePrevious, CompareSameLastYear:
		return c, nil
	case "":
		return ComparePrevious, nil
	default:
		return "", fmt.Errorf("invalid comparison %q: must be previous or sameLastYear", s)
	}
}

// Range is a half-open interval [Start, End) of calendar days in UTC.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// PeriodRange returns the day, month or year containing date.
func PeriodRange(p Period, date time.Time) Range {
	y, m, d := date.Date()
	var start time.Time
	switch p {
	case Day:
		start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return Range{Start: start, End: start.AddDate(0, 0, 1)}
	case Year:
		start = time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: start, End: start.AddDate(1, 0, 0)}
	default:
		start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: start, End: start.AddDate(0, 1, 0)}
	}
}

// ComparisonRange returns the period the current one is compared with and
// its label. Same-last-year on a day period compares with the previous day.
func ComparisonRange(p Period, c Comparison, date time.Time) (Range, string) {
	current := PeriodRange(p, date)
	if c == CompareSameLastYear && p == Month {
		return PeriodRange(Month, current.Start.AddDate(-1, 0, 0)), "vs Same Month Last Year"
	}
	switch p {
	case Day:
		return PeriodRange(Day, current.Start.AddDate(0, 0, -1)), "vs Previous Day"
	case Year:
		return PeriodRange(Year, current.Start.AddDate(-1, 0, 0)), "vs Previous Year"
	default:
		return PeriodRange(Month, current.Start.AddDate(0, -1, 0)), "vs Previous Month"
	}
}

// Shift moves date by n periods, clamping to the first day of the period
// so month arithmetic never overflows into the following month.
func Shift(p Period, date time.Time, n int) time.Time {
	start := PeriodRange(p, date).Start
	switch p {
	case Day:
		return start.AddDate(0, 0, n)
	case Year:
		return start.AddDate(n, 0, 0)
	default:
		return start.AddDate(0, n, 0)
	}
}
