// Package calendar holds the displayed-month cursor and the month grid the
// scheduling widget renders from.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"discoverycall/internal/timeslot"
)

// Cursor is the month currently displayed. Month is 0-based (0 = January).
type Cursor struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewCursor returns a cursor with month normalized into [0,11], carrying
// whole years into Year.
func NewCursor(month, year int) Cursor {
	year += month / 12
	month %= 12
	if month < 0 {
		month += 12
		year--
	}
	return Cursor{Month: month, Year: year}
}

// Prev moves one month back, wrapping January to December of the prior year.
func (c Cursor) Prev() Cursor {
	if c.Month == 0 {
		return Cursor{Month: 11, Year: c.Year - 1}
	}
	return Cursor{Month: c.Month - 1, Year: c.Year}
}

// Next moves one month forward, wrapping December to January of the next year.
func (c Cursor) Next() Cursor {
	if c.Month == 11 {
		return Cursor{Month: 0, Year: c.Year + 1}
	}
	return Cursor{Month: c.Month + 1, Year: c.Year}
}

// TimeMonth returns the displayed month as a time.Month.
func (c Cursor) TimeMonth() time.Month {
	return time.Month(c.Month + 1)
}

// Date returns the given day of the displayed month.
func (c Cursor) Date(day int) timeslot.Date {
	return timeslot.Date{Year: c.Year, Month: c.Month + 1, Day: day}
}

// Title returns e.g. "February 2026".
func (c Cursor) Title() string {
	return fmt.Sprintf("%s %d", c.TimeMonth(), c.Year)
}

// DaysInMonth returns the number of days in the displayed month.
func (c Cursor) DaysInMonth() int {
	return daysIn(c.TimeMonth(), c.Year)
}

// FirstWeekday returns the weekday of the 1st of the displayed month.
func (c Cursor) FirstWeekday() time.Weekday {
	return time.Date(c.Year, c.TimeMonth(), 1, 0, 0, 0, 0, time.Local).Weekday()
}

// AvailableDays is the set of bookable day-of-month numbers. It carries no
// month or year and applies to whichever month is displayed.
type AvailableDays map[int]struct{}

// NewAvailableDays builds the set from a list of day numbers.
func NewAvailableDays(days ...int) AvailableDays {
	set := make(AvailableDays, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}

// Contains reports whether day is bookable.
func (a AvailableDays) Contains(day int) bool {
	_, ok := a[day]
	return ok
}

// Sorted returns the days in ascending order.
func (a AvailableDays) Sorted() []int {
	out := make([]int, 0, len(a))
	for d := range a {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Weekdays is the Sunday-first grid header.
var Weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Day is one cell of the month grid.
type Day struct {
	Number    int  `json:"number"`
	Available bool `json:"available"`
	Selected  bool `json:"selected"`
}

// Grid is the renderable month view.
type Grid struct {
	Title    string   `json:"title"`
	Weekdays []string `json:"weekdays"`
	Leading  int      `json:"leading"` // empty cells before the 1st
	Days     []Day    `json:"days"`
}

// BuildGrid lays out the displayed month. selected is the chosen day, 0 if none.
func BuildGrid(c Cursor, available AvailableDays, selected int) Grid {
	n := c.DaysInMonth()
	days := make([]Day, 0, n)
	for d := 1; d <= n; d++ {
		days = append(days, Day{
			Number:    d,
			Available: available.Contains(d),
			Selected:  d == selected,
		})
	}
	return Grid{
		Title:    c.Title(),
		Weekdays: Weekdays,
		Leading:  int(c.FirstWeekday()),
		Days:     days,
	}
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
