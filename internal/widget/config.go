package widget

import (
	"fmt"

	"discoverycall/internal/calendar"
	"discoverycall/internal/timeslot"
)

// Reference copy and availability for the discovery-call page.
const (
	DefaultTitle         = "Discovery: Let's Get To Know Each Other"
	DefaultDescription   = "Think of this step as our \"first date\"—but without the awkward silences. This is your no-strings-attached moment to learn how I can help you navigate the real estate world like a pro."
	DefaultEventTitle    = "Discovery Call with Jesse Oñate"
	DefaultEventLocation = "Phone Call"
	DefaultStartMonth    = 1 // February
	DefaultStartYear     = 2026
)

var (
	DefaultAvailableDates = []int{13, 14, 15, 16, 17}
	DefaultTimeSlots      = []string{
		"02:45 PM", "03:15 PM", "03:30 PM", "03:45 PM",
		"04:00 PM", "04:15 PM", "04:30 PM", "04:45 PM",
	}
)

// BookingFunc receives the booking record when a visitor submits the form.
// It is fire-and-forget: the widget ignores how it returns.
type BookingFunc func(BookingRecord)

// Config is everything a host page supplies to the widget.
type Config struct {
	Title             string
	Description       string
	AvailableDates    []int
	TimeSlots         []string
	OnBookingComplete BookingFunc
	EventTitle        string
	EventLocation     string

	// StartCursor is the month shown when the widget is created.
	StartCursor calendar.Cursor
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Title:          DefaultTitle,
		Description:    DefaultDescription,
		AvailableDates: append([]int(nil), DefaultAvailableDates...),
		TimeSlots:      append([]string(nil), DefaultTimeSlots...),
		EventTitle:     DefaultEventTitle,
		EventLocation:  DefaultEventLocation,
		StartCursor:    calendar.Cursor{Month: DefaultStartMonth, Year: DefaultStartYear},
	}
}

// withDefaults fills unset options from DefaultConfig. An empty (but non-nil)
// AvailableDates or TimeSlots is kept as given.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Title == "" {
		c.Title = d.Title
	}
	if c.Description == "" {
		c.Description = d.Description
	}
	if c.AvailableDates == nil {
		c.AvailableDates = d.AvailableDates
	}
	if c.TimeSlots == nil {
		c.TimeSlots = d.TimeSlots
	}
	if c.EventTitle == "" {
		c.EventTitle = d.EventTitle
	}
	if c.EventLocation == "" {
		c.EventLocation = d.EventLocation
	}
	if c.StartCursor == (calendar.Cursor{}) {
		c.StartCursor = d.StartCursor
	}
	c.StartCursor = calendar.NewCursor(c.StartCursor.Month, c.StartCursor.Year)
	return c
}

// Validate checks day numbers and slot labels.
func (c Config) Validate() error {
	for _, d := range c.AvailableDates {
		if d < 1 || d > 31 {
			return fmt.Errorf("available date %d out of range 1..31", d)
		}
	}
	seen := make(map[string]bool, len(c.TimeSlots))
	for _, s := range c.TimeSlots {
		if _, err := timeslot.ParseLabel(s); err != nil {
			return fmt.Errorf("time slot: %w", err)
		}
		if seen[s] {
			return fmt.Errorf("duplicate time slot %q", s)
		}
		seen[s] = true
	}
	return nil
}
