package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCursorPrev(t *testing.T) {
	for m := 0; m < 12; m++ {
		c := Cursor{Month: m, Year: 2026}
		p := c.Prev()
		assert.Equal(t, (m+11)%12, p.Month, "month %d", m)
		if m == 0 {
			assert.Equal(t, 2025, p.Year)
		} else {
			assert.Equal(t, 2026, p.Year)
		}
	}
}

func TestCursorNext(t *testing.T) {
	for m := 0; m < 12; m++ {
		c := Cursor{Month: m, Year: 2026}
		n := c.Next()
		assert.Equal(t, (m+1)%12, n.Month, "month %d", m)
		if m == 11 {
			assert.Equal(t, 2027, n.Year)
		} else {
			assert.Equal(t, 2026, n.Year)
		}
	}
}

func TestNewCursorNormalizes(t *testing.T) {
	tests := []struct {
		month, year int
		want        Cursor
	}{
		{1, 2026, Cursor{Month: 1, Year: 2026}},
		{12, 2026, Cursor{Month: 0, Year: 2027}},
		{-1, 2026, Cursor{Month: 11, Year: 2025}},
		{25, 2026, Cursor{Month: 1, Year: 2028}},
		{-12, 2026, Cursor{Month: 0, Year: 2025}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewCursor(tt.month, tt.year), "NewCursor(%d, %d)", tt.month, tt.year)
	}
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 28, Cursor{Month: 1, Year: 2026}.DaysInMonth())
	assert.Equal(t, 29, Cursor{Month: 1, Year: 2024}.DaysInMonth())
	assert.Equal(t, 28, Cursor{Month: 1, Year: 1900}.DaysInMonth())
	assert.Equal(t, 29, Cursor{Month: 1, Year: 2000}.DaysInMonth())
	assert.Equal(t, 30, Cursor{Month: 3, Year: 2026}.DaysInMonth())
	assert.Equal(t, 31, Cursor{Month: 11, Year: 2026}.DaysInMonth())
}

func TestBuildGrid(t *testing.T) {
	c := Cursor{Month: 1, Year: 2026}
	g := BuildGrid(c, NewAvailableDays(13, 14, 15, 16, 17), 15)

	assert.Equal(t, "February 2026", g.Title)
	assert.Equal(t, Weekdays, g.Weekdays)
	// February 1st, 2026 is a Sunday.
	assert.Equal(t, int(time.Sunday), g.Leading)
	assert.Len(t, g.Days, 28)

	for _, d := range g.Days {
		assert.Equal(t, d.Number >= 13 && d.Number <= 17, d.Available, "day %d", d.Number)
		assert.Equal(t, d.Number == 15, d.Selected, "day %d", d.Number)
	}

	march := BuildGrid(c.Next(), NewAvailableDays(13), 0)
	assert.Equal(t, "March 2026", march.Title)
	assert.Equal(t, int(time.Sunday), march.Leading)
	assert.Len(t, march.Days, 31)
	assert.True(t, march.Days[12].Available)
}

func TestAvailableDaysSorted(t *testing.T) {
	a := NewAvailableDays(17, 13, 15, 13)
	assert.Equal(t, []int{13, 15, 17}, a.Sorted())
	assert.True(t, a.Contains(15))
	assert.False(t, a.Contains(14))
}

func TestCursorDate(t *testing.T) {
	c := Cursor{Month: 1, Year: 2026}
	assert.Equal(t, "2026-02-15", c.Date(15).ISO())
	assert.Equal(t, "2026-03-01", c.Next().Date(1).ISO())
}
