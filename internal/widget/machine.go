// Package widget implements the appointment-scheduling widget: calendar
// browsing, date and slot selection, the contact form and the hand-off to an
// external calendar link.
package widget

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"discoverycall/internal/calendar"
	"discoverycall/internal/gcal"
	"discoverycall/internal/timeslot"
)

var (
	ErrContactIncomplete = errors.New("name, email and phone are required")
	ErrInvariant         = errors.New("widget invariant violated")
	ErrUnknownAction     = errors.New("unknown action")
)

// ActionKind names a user action.
type ActionKind string

const (
	ActionPrevMonth  ActionKind = "prev_month"
	ActionNextMonth  ActionKind = "next_month"
	ActionPickDate   ActionKind = "pick_date"
	ActionPickTime   ActionKind = "pick_time"
	ActionConfirm    ActionKind = "confirm"
	ActionBack       ActionKind = "back"
	ActionSetContact ActionKind = "set_contact"
	ActionSubmit     ActionKind = "submit"
)

// Actions lists every action kind.
var Actions = []ActionKind{
	ActionPrevMonth, ActionNextMonth, ActionPickDate, ActionPickTime,
	ActionConfirm, ActionBack, ActionSetContact, ActionSubmit,
}

// Action is one user interaction. Day, Time and Contact are read only by the
// kinds that take them.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Day     int        `json:"day,omitempty"`
	Time    string     `json:"time,omitempty"`
	Contact Contact    `json:"contact"`
}

// EffectKind names a side effect the host must carry out.
type EffectKind string

const (
	EffectBookingComplete EffectKind = "booking_complete"
	EffectOpenLink        EffectKind = "open_link"
	EffectNotify          EffectKind = "notify"
)

// TargetBlank opens a link in a new browsing context.
const TargetBlank = "_blank"

// OpeningCalendarMessage is shown when the calendar link is handed off.
const OpeningCalendarMessage = "Opening Google Calendar to confirm your appointment!"

// Effect is a one-way command emitted by a transition.
type Effect struct {
	Kind    EffectKind     `json:"kind"`
	URL     string         `json:"url,omitempty"`
	Target  string         `json:"target,omitempty"`
	Message string         `json:"message,omitempty"`
	Booking *BookingRecord `json:"booking,omitempty"`
}

// transitions lists the actions each view accepts.
var transitions = map[View][]ActionKind{
	ViewBrowsing:  {ActionPrevMonth, ActionNextMonth, ActionPickDate, ActionPickTime, ActionConfirm},
	ViewFormEntry: {ActionSetContact, ActionBack, ActionSubmit},
}

// Machine applies actions to snapshots. It holds only configuration and is
// safe to share.
type Machine struct {
	cfg       Config
	available calendar.AvailableDays
	slots     map[string]bool
	validate  *validator.Validate
}

// NewMachine validates cfg, fills defaults and returns a machine.
func NewMachine(cfg Config) (*Machine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slots := make(map[string]bool, len(cfg.TimeSlots))
	for _, s := range cfg.TimeSlots {
		slots[s] = true
	}
	return &Machine{
		cfg:       cfg,
		available: calendar.NewAvailableDays(cfg.AvailableDates...),
		slots:     slots,
		validate:  validator.New(),
	}, nil
}

// Config returns the effective configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// Initial returns the starting snapshot.
func (m *Machine) Initial() State {
	return Initial(m.cfg.StartCursor)
}

// Known reports whether kind is a valid action kind.
func Known(kind ActionKind) bool {
	for _, k := range Actions {
		if k == kind {
			return true
		}
	}
	return false
}

// Allowed reports whether the view accepts the action kind at all.
func Allowed(v View, kind ActionKind) bool {
	for _, k := range transitions[v] {
		if k == kind {
			return true
		}
	}
	return false
}

// Enabled reports whether the control for kind is active in s.
func (m *Machine) Enabled(s State, kind ActionKind) bool {
	if !Allowed(s.View, kind) {
		return false
	}
	switch kind {
	case ActionPickTime:
		return s.Selection.HasDate()
	case ActionConfirm:
		return s.Selection.Complete()
	case ActionSubmit:
		return s.Selection.Complete() && m.contactComplete(s.Contact)
	}
	return true
}

// EnabledSet returns Enabled for every action kind.
func (m *Machine) EnabledSet(s State) map[ActionKind]bool {
	out := make(map[ActionKind]bool, len(Actions))
	for _, k := range Actions {
		out[k] = m.Enabled(s, k)
	}
	return out
}

// Apply returns the snapshot after a and the effects it emits. Actions whose
// control is disabled return s unchanged with no error. Submitting with an
// incomplete contact returns ErrContactIncomplete and s unchanged.
func (m *Machine) Apply(s State, a Action) (State, []Effect, error) {
	if !Known(a.Kind) {
		return s, nil, fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
	if !Allowed(s.View, a.Kind) {
		return s, nil, nil
	}

	switch a.Kind {
	case ActionPrevMonth:
		s.Cursor = s.Cursor.Prev()
		s.Selection.Date = 0
	case ActionNextMonth:
		s.Cursor = s.Cursor.Next()
		s.Selection.Date = 0
	case ActionPickDate:
		if m.available.Contains(a.Day) && a.Day <= s.Cursor.DaysInMonth() {
			s.Selection.Date = a.Day
		}
	case ActionPickTime:
		if s.Selection.HasDate() && m.slots[a.Time] {
			s.Selection.Time = a.Time
		}
	case ActionConfirm:
		if s.Selection.Complete() {
			s.View = ViewFormEntry
		}
	case ActionBack:
		s.View = ViewBrowsing
	case ActionSetContact:
		s.Contact = a.Contact
	case ActionSubmit:
		return m.submit(s)
	}
	return s, nil, nil
}

func (m *Machine) contactComplete(c Contact) bool {
	return m.validate.Struct(c) == nil
}

func (m *Machine) submit(s State) (State, []Effect, error) {
	if !s.Selection.Complete() {
		return s, nil, fmt.Errorf("%w: submit without date and time", ErrInvariant)
	}
	if err := m.validate.Struct(s.Contact); err != nil {
		return s, nil, fmt.Errorf("%w: %v", ErrContactIncomplete, err)
	}

	rec, when, err := m.Booking(s)
	if err != nil {
		return s, nil, err
	}

	event := gcal.Event{
		Title:    m.cfg.EventTitle,
		Details:  gcal.ConsultationDetails(rec.Name, rec.Email, rec.Phone),
		Location: m.cfg.EventLocation,
		When:     when,
	}

	s.View = ViewBrowsing
	effects := []Effect{
		{Kind: EffectBookingComplete, Booking: &rec},
		{Kind: EffectOpenLink, URL: event.Link(), Target: TargetBlank},
		{Kind: EffectNotify, Message: OpeningCalendarMessage},
	}
	return s, effects, nil
}

// Booking derives the booking record and the one-hour event range from a
// snapshot with a complete selection.
func (m *Machine) Booking(s State) (BookingRecord, timeslot.Range, error) {
	if !s.Selection.Complete() {
		return BookingRecord{}, timeslot.Range{}, fmt.Errorf("%w: incomplete selection", ErrInvariant)
	}
	clock, err := timeslot.ParseLabel(s.Selection.Time)
	if err != nil {
		return BookingRecord{}, timeslot.Range{}, fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	date := s.Cursor.Date(s.Selection.Date)

	rec := BookingRecord{
		Date:  date.ISO(),
		Time:  s.Selection.Time,
		Name:  s.Contact.Name,
		Email: s.Contact.Email,
		Phone: s.Contact.Phone,
	}
	return rec, timeslot.OneHour(date, clock), nil
}

// Summary describes the selection, e.g. "February 15, 2026 at 03:30 PM".
// It is empty until both a day and a slot are chosen.
func Summary(s State) string {
	if !s.Selection.Complete() {
		return ""
	}
	return fmt.Sprintf("%s %d, %d at %s", s.Cursor.TimeMonth(), s.Selection.Date, s.Cursor.Year, s.Selection.Time)
}

// Grid lays out the displayed month for s.
func (m *Machine) Grid(s State) calendar.Grid {
	return calendar.BuildGrid(s.Cursor, m.available, s.Selection.Date)
}
