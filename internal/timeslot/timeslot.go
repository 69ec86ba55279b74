// Package timeslot converts 12-hour slot labels into the timestamps used by
// calendar links.
package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidLabel     = errors.New("invalid time label")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Meridiem markers.
const (
	AM = "AM"
	PM = "PM"
)

// Clock is a 24-hour wall clock reading.
type Clock struct {
	Hour   int
	Minute int
}

// ParseLabel converts a slot label in "hh:mm AM|PM" form to a 24-hour clock.
// PM adds 12 unless the hour is 12, and 12 AM becomes hour 0.
func ParseLabel(label string) (Clock, error) {
	clock, period, ok := strings.Cut(strings.TrimSpace(label), " ")
	if !ok {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return Clock{}, fmt.Errorf("%w: hour in %q", ErrInvalidLabel, label)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: minute in %q", ErrInvalidLabel, label)
	}

	switch strings.TrimSpace(period) {
	case PM:
		if hour != 12 {
			hour += 12
		}
	case AM:
		if hour == 12 {
			hour = 0
		}
	default:
		return Clock{}, fmt.Errorf("%w: meridiem in %q", ErrInvalidLabel, label)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

// Label formats the clock back into "hh:mm AM|PM".
func (c Clock) Label() string {
	period := AM
	hour := c.Hour
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		period = PM
	case hour > 12:
		hour -= 12
		period = PM
	}
	return fmt.Sprintf("%02d:%02d %s", hour, c.Minute, period)
}

// Date is a calendar date with a 1-based month.
type Date struct {
	Year  int
	Month int
	Day   int
}

// ISO returns the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseISO parses a YYYY-MM-DD date.
func ParseISO(s string) (Date, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return Date{}, fmt.Errorf("%w: date %q", ErrInvalidTimestamp, s)
	}
	var d Date
	var err error
	if d.Year, err = strconv.Atoi(parts[0]); err != nil {
		return Date{}, fmt.Errorf("%w: year %q", ErrInvalidTimestamp, s)
	}
	if d.Month, err = strconv.Atoi(parts[1]); err != nil {
		return Date{}, fmt.Errorf("%w: month %q", ErrInvalidTimestamp, s)
	}
	if d.Day, err = strconv.Atoi(parts[2]); err != nil {
		return Date{}, fmt.Errorf("%w: day %q", ErrInvalidTimestamp, s)
	}
	return d, nil
}

// Timestamp is a local date-time without zone. Hour may be 24 for an end
// timestamp produced from an 11 PM start; it is never carried into the date.
type Timestamp struct {
	Date
	Hour   int
	Minute int
}

// At combines a date and a clock.
func At(d Date, c Clock) Timestamp {
	return Timestamp{Date: d, Hour: c.Hour, Minute: c.Minute}
}

// NextHour returns the timestamp with the hour incremented by one.
func (t Timestamp) NextHour() Timestamp {
	t.Hour++
	return t
}

// String returns YYYY-MM-DDThh:mm:00.
func (t Timestamp) String() string {
	return fmt.Sprintf("%sT%02d:%02d:00", t.ISO(), t.Hour, t.Minute)
}

// Compact returns the timestamp with hyphens and colons removed,
// e.g. 20260215T153000.
func (t Timestamp) Compact() string {
	return strings.NewReplacer("-", "", ":", "").Replace(t.String())
}

// Clock returns the time-of-day part.
func (t Timestamp) Clock() Clock {
	return Clock{Hour: t.Hour, Minute: t.Minute}
}

// ParseCompact parses a YYYYMMDDThhmmss timestamp.
func ParseCompact(s string) (Timestamp, error) {
	if len(s) != 15 || s[8] != 'T' {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	fields := []string{s[0:4], s[4:6], s[6:8], s[9:11], s[11:13], s[13:15]}
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
		}
		nums[i] = n
	}
	if nums[5] != 0 {
		return Timestamp{}, fmt.Errorf("%w: non-zero seconds in %q", ErrInvalidTimestamp, s)
	}
	return Timestamp{
		Date:   Date{Year: nums[0], Month: nums[1], Day: nums[2]},
		Hour:   nums[3],
		Minute: nums[4],
	}, nil
}

// Range is a start/end pair as used in a calendar link's dates parameter.
type Range struct {
	Start Timestamp
	End   Timestamp
}

// OneHour returns a range that starts at the clock on the given date and
// ends one hour later on the same date.
func OneHour(d Date, c Clock) Range {
	start := At(d, c)
	return Range{Start: start, End: start.NextHour()}
}

// Compact returns "start/end" in compact form.
func (r Range) Compact() string {
	return r.Start.Compact() + "/" + r.End.Compact()
}

// ParseRange parses a compact "start/end" pair.
func ParseRange(s string) (Range, error) {
	start, end, ok := strings.Cut(s, "/")
	if !ok {
		return Range{}, fmt.Errorf("%w: range %q", ErrInvalidTimestamp, s)
	}
	var r Range
	var err error
	if r.Start, err = ParseCompact(start); err != nil {
		return Range{}, err
	}
	if r.End, err = ParseCompact(end); err != nil {
		return Range{}, err
	}
	return r, nil
}
