package measurement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time or location. Day buckets are
// always computed through a Date and one explicit location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, errors.New().Wrap(errors.ErrInvalidBootstrapDate, err)
	}
	return DateOf(t, time.UTC), nil
}

// AddDays returns the date n days later, normalising month and year overflow.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC), time.UTC)
}

// At returns the instant of the given wall clock time on d in loc.
func (d Date) At(c ClockTime, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// Start returns local midnight of d in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Range returns the half-open interval [start, end) covering d in loc.
// end is the next local midnight, so days spanning a DST change stay whole.
func (d Date) Range(loc *time.Location) (time.Time, time.Time) {
	return d.Start(loc), d.AddDays(1).Start(loc)
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ClockTime is a wall clock time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" (single digit hours are accepted).
func ParseClockTime(s string) (ClockTime, error) {
	errFactory := errors.New()

	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ClockTime{}, errFactory.WithData(errors.ErrInvalidDailyTime, s)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || len(hh) > 2 || hour < 0 || hour > 23 {
		return ClockTime{}, errFactory.WithData(errors.ErrInvalidDailyTime, s)
	}

	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return ClockTime{}, errFactory.WithData(errors.ErrInvalidDailyTime, s)
	}

	return ClockTime{Hour: hour, Minute: minute}, nil
}

// ParseClockTimes parses every entry, failing on the first malformed one.
// An empty list is also rejected since a cycle could never insert anything.
func ParseClockTimes(values []string) ([]ClockTime, error) {
	if len(values) == 0 {
		return nil, errors.New().WithMessage(errors.ErrInvalidDailyTime, "no daily times configured")
	}

	out := make([]ClockTime, 0, len(values))
	for _, v := range values {
		c, err := ParseClockTime(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, nil
}

// DuplicateClockTimes returns each time listed more than once, in the order
// the repeats appear.
func DuplicateClockTimes(times []ClockTime) []ClockTime {
	seen := make(map[ClockTime]int, len(times))
	var dups []ClockTime
	for _, c := range times {
		seen[c]++
		if seen[c] == 2 {
			dups = append(dups, c)
		}
	}
	return dups
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
