package widget

import (
	"github.com/rs/zerolog"

	"discoverycall/internal/calendar"
)

// Widget owns one visitor's snapshot and runs the completion callback.
// It is not safe for concurrent use.
type Widget struct {
	machine *Machine
	state   State
	logger  *zerolog.Logger
}

// New creates a widget showing cfg.StartCursor.
func New(cfg Config, logger *zerolog.Logger) (*Widget, error) {
	m, err := NewMachine(cfg)
	if err != nil {
		return nil, err
	}
	return Restore(m, m.Initial(), logger), nil
}

// Restore resumes a widget from a stored snapshot.
func Restore(m *Machine, s State, logger *zerolog.Logger) *Widget {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Widget{machine: m, state: s, logger: logger}
}

// State returns the current snapshot.
func (w *Widget) State() State { return w.state }

// Machine returns the transition rules the widget runs on.
func (w *Widget) Machine() *Machine { return w.machine }

// Dispatch applies a, replaces the snapshot and runs the completion callback
// for every booking effect. The effects are returned for the host to carry out.
func (w *Widget) Dispatch(a Action) ([]Effect, error) {
	next, effects, err := w.machine.Apply(w.state, a)
	if err != nil {
		return nil, err
	}
	w.state = next
	w.Notify(effects)
	return effects, nil
}

// Notify runs the completion callback for every booking effect. Hosts that
// persist the snapshot call it after Machine.Apply once the save succeeded.
func (w *Widget) Notify(effects []Effect) {
	for _, e := range effects {
		if e.Kind == EffectBookingComplete && e.Booking != nil {
			w.notifyBooking(*e.Booking)
		}
	}
}

func (w *Widget) notifyBooking(rec BookingRecord) {
	cb := w.machine.cfg.OnBookingComplete
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Str("date", rec.Date).Msg("booking callback panicked")
		}
	}()
	cb(rec)
}

// PrevMonth shows the previous month and clears the selected day.
func (w *Widget) PrevMonth() State {
	_, _ = w.Dispatch(Action{Kind: ActionPrevMonth})
	return w.state
}

// NextMonth shows the next month and clears the selected day.
func (w *Widget) NextMonth() State {
	_, _ = w.Dispatch(Action{Kind: ActionNextMonth})
	return w.state
}

// PickDate selects day if it is available.
func (w *Widget) PickDate(day int) State {
	_, _ = w.Dispatch(Action{Kind: ActionPickDate, Day: day})
	return w.state
}

// PickTime selects a slot once a day is selected.
func (w *Widget) PickTime(label string) State {
	_, _ = w.Dispatch(Action{Kind: ActionPickTime, Time: label})
	return w.state
}

// Confirm opens the contact form when both day and slot are selected.
func (w *Widget) Confirm() State {
	_, _ = w.Dispatch(Action{Kind: ActionConfirm})
	return w.state
}

// Back returns from the contact form keeping the selection.
func (w *Widget) Back() State {
	_, _ = w.Dispatch(Action{Kind: ActionBack})
	return w.state
}

// SetContact replaces the contact form fields.
func (w *Widget) SetContact(c Contact) State {
	_, _ = w.Dispatch(Action{Kind: ActionSetContact, Contact: c})
	return w.state
}

// Submit completes the booking.
func (w *Widget) Submit() ([]Effect, error) {
	return w.Dispatch(Action{Kind: ActionSubmit})
}

// Grid lays out the displayed month.
func (w *Widget) Grid() calendar.Grid {
	return w.machine.Grid(w.state)
}

// Enabled reports whether the control for kind is active.
func (w *Widget) Enabled(kind ActionKind) bool {
	return w.machine.Enabled(w.state, kind)
}
