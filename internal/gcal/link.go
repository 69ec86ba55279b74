// Package gcal builds Google Calendar "add event" template links.
package gcal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"discoverycall/internal/timeslot"
)

// BaseURL is the template endpoint of the calendar web app.
const BaseURL = "https://calendar.google.com/calendar/render"

var ErrNotTemplateLink = errors.New("not a calendar template link")

// Event is the prefilled content of a template link.
type Event struct {
	Title    string
	Details  string
	Location string
	When     timeslot.Range
}

// Link returns the template URL for the event. Query parameters keep the
// order action, text, dates, details, location. Free-text fields are
// escaped component-style, so a space becomes %20.
func (e Event) Link() string {
	var b strings.Builder
	b.WriteString(BaseURL)
	b.WriteString("?action=TEMPLATE")
	b.WriteString("&text=")
	b.WriteString(EscapeComponent(e.Title))
	b.WriteString("&dates=")
	b.WriteString(e.When.Compact())
	b.WriteString("&details=")
	b.WriteString(EscapeComponent(e.Details))
	b.WriteString("&location=")
	b.WriteString(EscapeComponent(e.Location))
	return b.String()
}

// componentSafe undoes the escapes url.QueryEscape adds beyond
// encodeURIComponent, which leaves !'()* as they are.
var componentSafe = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EscapeComponent percent-encodes s for use as a single query value, the way a
// browser's encodeURIComponent does.
func EscapeComponent(s string) string {
	return componentSafe.Replace(url.QueryEscape(s))
}

// ConsultationDetails is the event description for a phone consultation.
func ConsultationDetails(name, email, phone string) string {
	return fmt.Sprintf("Phone consultation with %s\nEmail: %s\nPhone: %s", name, email, phone)
}

// Parse reads a template link back into an Event.
func Parse(link string) (Event, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Event{}, fmt.Errorf("parse link: %w", err)
	}
	if u.Scheme+"://"+u.Host+u.Path != BaseURL {
		return Event{}, fmt.Errorf("%w: %s", ErrNotTemplateLink, u.Host+u.Path)
	}
	q := u.Query()
	if q.Get("action") != "TEMPLATE" {
		return Event{}, fmt.Errorf("%w: action %q", ErrNotTemplateLink, q.Get("action"))
	}
	when, err := timeslot.ParseRange(q.Get("dates"))
	if err != nil {
		return Event{}, fmt.Errorf("dates: %w", err)
	}
	return Event{
		Title:    q.Get("text"),
		Details:  q.Get("details"),
		Location: q.Get("location"),
		When:     when,
	}, nil
}
