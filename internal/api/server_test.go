package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discoverycall/internal/calendar"
	"discoverycall/internal/events"
	"discoverycall/internal/gcal"
	"discoverycall/internal/metrics"
	"discoverycall/internal/session"
	"discoverycall/internal/widget"
)

type harness struct {
	srv      *Server
	handler  http.Handler
	store    *session.MemoryStore
	bus      *events.EventBus
	metrics  *metrics.Metrics
	bookings []widget.BookingRecord
}

func newHarness(t *testing.T, limiter *Limiter) *harness {
	t.Helper()
	h := &harness{}
	logger := zerolog.New(io.Discard)

	cfg := widget.Config{
		AvailableDates: []int{13, 14, 15, 16, 17},
		StartCursor:    calendar.Cursor{Month: 1, Year: 2026},
		OnBookingComplete: func(r widget.BookingRecord) {
			h.bookings = append(h.bookings, r)
		},
	}
	m, err := widget.NewMachine(cfg)
	require.NoError(t, err)

	h.store = session.NewMemoryStore(0)
	h.bus = events.NewEventBus(&logger)
	h.metrics = metrics.New("test", prometheus.NewRegistry())
	h.srv = NewServer(m, h.store, h.bus, h.metrics, limiter, &logger)
	h.handler = h.srv.Routes()
	return h
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) create(t *testing.T) Snapshot {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func (h *harness) act(t *testing.T, id string, a widget.Action) ActionResponse {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", a)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t, nil)
	var started []events.Event
	h.bus.Subscribe(events.TypeSessionStarted, func(e events.Event) error {
		started = append(started, e)
		return nil
	})

	snap := h.create(t)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, widget.ViewBrowsing, snap.View)
	assert.Equal(t, calendar.Cursor{Month: 1, Year: 2026}, snap.Cursor)
	assert.Equal(t, "February 2026", snap.Grid.Title)
	assert.Len(t, snap.Grid.Days, 28)
	assert.Equal(t, widget.DefaultTitle, snap.Info.Title)
	assert.Equal(t, widget.DefaultTimeSlots, snap.TimeSlots)
	assert.False(t, snap.Enabled[widget.ActionConfirm])
	assert.True(t, snap.Enabled[widget.ActionNextMonth])
	assert.Len(t, started, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsStarted))

	rec := h.do(t, http.MethodGet, "/api/sessions/"+snap.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	h := newHarness(t, nil)
	var opened []events.Event
	h.bus.Subscribe(events.TypeLinkOpened, func(e events.Event) error {
		opened = append(opened, e)
		return nil
	})

	id := h.create(t).ID

	resp := h.act(t, id, widget.Action{Kind: widget.ActionPickDate, Day: 15})
	assert.Equal(t, 15, resp.Snapshot.Selection.Date)
	assert.True(t, resp.Snapshot.Grid.Days[14].Selected)
	assert.Empty(t, resp.Effects)

	h.act(t, id, widget.Action{Kind: widget.ActionPickTime, Time: "03:30 PM"})
	resp = h.act(t, id, widget.Action{Kind: widget.ActionConfirm})
	assert.Equal(t, widget.ViewFormEntry, resp.Snapshot.View)
	assert.Equal(t, "February 15, 2026 at 03:30 PM", resp.Snapshot.Summary)

	// Missing phone is blocked.
	h.act(t, id, widget.Action{Kind: widget.ActionSetContact, Contact: widget.Contact{Name: "Jane Doe", Email: "jane@example.com"}})
	rec := h.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", widget.Action{Kind: widget.ActionSubmit})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, h.bookings)

	h.act(t, id, widget.Action{Kind: widget.ActionSetContact, Contact: widget.Contact{Name: "Jane Doe", Email: "jane@example.com", Phone: "555-0100"}})
	resp = h.act(t, id, widget.Action{Kind: widget.ActionSubmit})

	assert.Equal(t, widget.ViewBrowsing, resp.Snapshot.View)
	require.Len(t, resp.Effects, 3)
	assert.Equal(t, widget.EffectOpenLink, resp.Effects[1].Kind)

	ev, err := gcal.Parse(resp.Effects[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "20260215T153000/20260215T163000", ev.When.Compact())

	require.Len(t, h.bookings, 1)
	assert.Equal(t, widget.BookingRecord{
		Date: "2026-02-15", Time: "03:30 PM", Name: "Jane Doe", Email: "jane@example.com", Phone: "555-0100",
	}, h.bookings[0])

	require.Len(t, opened, 1)
	var payload map[string]string
	require.NoError(t, opened[0].Decode(&payload))
	assert.Equal(t, id, payload["session"])
	assert.Equal(t, resp.Effects[1].URL, payload["url"])

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ActionsTotal.WithLabelValues("submit", metrics.ResultApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ActionsTotal.WithLabelValues("submit", metrics.ResultRejected)))

	stored, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, widget.Selection{Date: 15, Time: "03:30 PM"}, stored.State.Selection)
}

func TestNoopAction(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t).ID

	resp := h.act(t, id, widget.Action{Kind: widget.ActionPickDate, Day: 1})
	assert.Zero(t, resp.Snapshot.Selection.Date)
	assert.NotNil(t, resp.Effects)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ActionsTotal.WithLabelValues("pick_date", metrics.ResultNoop)))
}

func TestActionErrors(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t).ID

	rec := h.do(t, http.MethodPost, "/api/sessions/missing/actions", widget.Action{Kind: widget.ActionNextMonth})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", widget.Action{Kind: "explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/actions", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec = h.do(t, http.MethodGet, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "session not found", body.Error)
}

func TestDeleteSession(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t).ID

	rec := h.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetMachine(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t).ID

	m, err := widget.NewMachine(widget.Config{AvailableDates: []int{2}, Title: "Updated"})
	require.NoError(t, err)
	h.srv.SetMachine(m)

	resp := h.act(t, id, widget.Action{Kind: widget.ActionPickDate, Day: 2})
	assert.Equal(t, 2, resp.Snapshot.Selection.Date)
	assert.Equal(t, "Updated", resp.Snapshot.Info.Title)
}

type failingStore struct {
	session.Store
}

func (failingStore) Save(context.Context, *session.Session) error { return errors.New("disk full") }
func (failingStore) Ping(context.Context) error                   { return errors.New("down") }

func TestStoreFailure(t *testing.T) {
	m, err := widget.NewMachine(widget.Config{})
	require.NoError(t, err)
	srv := NewServer(m, failingStore{}, nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type flakyStore struct {
	*session.MemoryStore
	failSave bool
}

func (f *flakyStore) Save(ctx context.Context, s *session.Session) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, s)
}

func TestSubmitSaveFailureDoesNotBook(t *testing.T) {
	var bookings []widget.BookingRecord
	m, err := widget.NewMachine(widget.Config{
		AvailableDates:    []int{15},
		StartCursor:       calendar.Cursor{Month: 1, Year: 2026},
		OnBookingComplete: func(r widget.BookingRecord) { bookings = append(bookings, r) },
	})
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	bus := events.NewEventBus(&logger)
	var opened int
	bus.Subscribe(events.TypeLinkOpened, func(events.Event) error { opened++; return nil })

	store := &flakyStore{MemoryStore: session.NewMemoryStore(0)}
	mt := metrics.New("test", prometheus.NewRegistry())
	h := &harness{handler: NewServer(m, store, bus, mt, nil, &logger).Routes()}

	id := h.create(t).ID
	h.act(t, id, widget.Action{Kind: widget.ActionPickDate, Day: 15})
	h.act(t, id, widget.Action{Kind: widget.ActionPickTime, Time: "03:30 PM"})
	h.act(t, id, widget.Action{Kind: widget.ActionConfirm})
	h.act(t, id, widget.Action{Kind: widget.ActionSetContact, Contact: widget.Contact{Name: "Jane Doe", Email: "jane@example.com", Phone: "555-0100"}})

	store.failSave = true
	rec := h.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", widget.Action{Kind: widget.ActionSubmit})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, bookings)
	assert.Zero(t, opened)
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.ActionsTotal.WithLabelValues("submit", metrics.ResultError)))

	// The stored snapshot is untouched, so a retry books exactly once.
	store.failSave = false
	resp := h.act(t, id, widget.Action{Kind: widget.ActionSubmit})
	require.Len(t, resp.Effects, 3)
	assert.Len(t, bookings, 1)
	assert.Equal(t, 1, opened)
}

func TestHealthHandler(t *testing.T) {
	ok := HealthHandler(session.NewMemoryStore(0))
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	down := HealthHandler(failingStore{})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
