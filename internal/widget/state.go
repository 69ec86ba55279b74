package widget

import (
	"discoverycall/internal/calendar"
)

// View is the widget's visible step.
type View string

const (
	ViewBrowsing  View = "browsing"
	ViewFormEntry View = "form_entry"
)

// Selection is the visitor's chosen day of the displayed month and slot
// label. Date 0 and Time "" mean unset.
type Selection struct {
	Date int    `json:"date,omitempty"`
	Time string `json:"time,omitempty"`
}

// HasDate reports whether a day is selected.
func (s Selection) HasDate() bool { return s.Date > 0 }

// HasTime reports whether a slot is selected.
func (s Selection) HasTime() bool { return s.Time != "" }

// Complete reports whether both a day and a slot are selected.
func (s Selection) Complete() bool { return s.HasDate() && s.HasTime() }

// Contact is the visitor's details from the booking form.
type Contact struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

// State is an immutable snapshot of the widget. Transitions return a new
// State and never modify the receiver.
type State struct {
	View      View            `json:"view"`
	Cursor    calendar.Cursor `json:"cursor"`
	Selection Selection       `json:"selection"`
	Contact   Contact         `json:"contact"`
}

// Initial returns the starting snapshot for a cursor.
func Initial(cursor calendar.Cursor) State {
	return State{View: ViewBrowsing, Cursor: cursor}
}

// BookingRecord summarizes a submission. It is handed to the completion
// callback and not kept by the widget.
type BookingRecord struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Time  string `json:"time"` // hh:mm AM|PM
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
