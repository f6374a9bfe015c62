package reminder

import (
	"fmt"
	"strings"
	"time"
)

// DateUnits is the unit of a reminder interval.
type DateUnits string

const (
	Days   DateUnits = "DAYS"
	Weeks  DateUnits = "WEEKS"
	Months DateUnits = "MONTHS"
	Years  DateUnits = "YEARS"
)

// ParseDateUnits parses a stored unit string, falling back to the supplied
// default for empty or unrecognised values.
func ParseDateUnits(s string, fallback DateUnits) DateUnits {
	switch DateUnits(strings.ToUpper(strings.TrimSpace(s))) {
	case Days:
		return Days
	case Weeks:
		return Weeks
	case Months:
		return Months
	case Years:
		return Years
	}
	return fallback
}

// Interval is a signed calendar interval (count + unit).
type Interval struct {
	Count int       `json:"count"`
	Units DateUnits `json:"units"`
}

// AddTo returns date + interval. Months and years use calendar arithmetic
// with AddDate's overflow normalisation (Jan 31 + 1 month = Mar 2/3).
func (i Interval) AddTo(date time.Time) time.Time {
	switch i.Units {
	case Weeks:
		return date.AddDate(0, 0, i.Count*7)
	case Months:
		return date.AddDate(0, i.Count, 0)
	case Years:
		return date.AddDate(i.Count, 0, 0)
	default:
		return date.AddDate(0, 0, i.Count)
	}
}

// SubtractFrom returns date - interval.
func (i Interval) SubtractFrom(date time.Time) time.Time {
	return Interval{Count: -i.Count, Units: i.Units}.AddTo(date)
}

func (i Interval) String() string {
	return fmt.Sprintf("%d %s", i.Count, i.Units)
}

// DateOf strips the time-of-day component, leaving midnight in t's location.
// Due-date and cancel comparisons are all date-only.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MaxDate returns the later of two dates.
func MaxDate(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
