// Package api exposes the scheduling widget over HTTP so a page can drive it
// one action at a time.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"discoverycall/internal/calendar"
	"discoverycall/internal/events"
	"discoverycall/internal/metrics"
	"discoverycall/internal/session"
	"discoverycall/internal/widget"
)

const lockStripes = 64

// Info is the copy shown beside the calendar.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Snapshot is what a page renders for one session.
type Snapshot struct {
	ID        string                     `json:"id"`
	View      widget.View                `json:"view"`
	Cursor    calendar.Cursor            `json:"cursor"`
	Selection widget.Selection           `json:"selection"`
	Contact   widget.Contact             `json:"contact"`
	Info      Info                       `json:"info"`
	Grid      calendar.Grid              `json:"grid"`
	TimeSlots []string                   `json:"time_slots"`
	Enabled   map[widget.ActionKind]bool `json:"enabled"`
	Summary   string                     `json:"summary,omitempty"`
}

// ActionResponse is returned after dispatching an action.
type ActionResponse struct {
	Snapshot Snapshot        `json:"snapshot"`
	Effects  []widget.Effect `json:"effects"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server handles widget sessions.
type Server struct {
	machine atomic.Pointer[widget.Machine]
	store   session.Store
	bus     *events.EventBus
	metrics *metrics.Metrics
	limiter *Limiter
	logger  *zerolog.Logger
	locks   [lockStripes]sync.Mutex
}

// NewServer creates a server. limiter may be nil to disable rate limiting.
func NewServer(m *widget.Machine, store session.Store, bus *events.EventBus, mt *metrics.Metrics, limiter *Limiter, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Server{store: store, bus: bus, metrics: mt, limiter: limiter, logger: logger}
	s.machine.Store(m)
	return s
}

// SetMachine swaps the widget rules, e.g. after a config reload. Existing
// sessions keep their snapshots and continue under the new rules.
func (s *Server) SetMachine(m *widget.Machine) {
	s.machine.Store(m)
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(s.onRateLimited))
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/actions", s.handleAction)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

func (s *Server) onRateLimited(r *http.Request) {
	if s.metrics != nil {
		s.metrics.IncRateLimited()
	}
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("rate limited")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, strconv.Itoa(ww.Status()), elapsed.Seconds())
		}
		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) lock(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *Server) snapshot(m *widget.Machine, sess *session.Session) Snapshot {
	cfg := m.Config()
	return Snapshot{
		ID:        sess.ID,
		View:      sess.State.View,
		Cursor:    sess.State.Cursor,
		Selection: sess.State.Selection,
		Contact:   sess.State.Contact,
		Info:      Info{Title: cfg.Title, Description: cfg.Description},
		Grid:      m.Grid(sess.State),
		TimeSlots: cfg.TimeSlots,
		Enabled:   m.EnabledSet(sess.State),
		Summary:   widget.Summary(sess.State),
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	m := s.machine.Load()
	sess := session.New(m.Initial())
	if err := s.store.Save(r.Context(), sess); err != nil {
		s.logger.Error().Err(err).Msg("save new session")
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	if s.metrics != nil {
		s.metrics.IncSessionStarted()
	}
	if s.bus != nil {
		if err := s.bus.PublishJSON(events.TypeSessionStarted, map[string]string{"id": sess.ID}); err != nil {
			s.logger.Warn().Err(err).Msg("publish session started")
		}
	}
	writeJSON(w, http.StatusCreated, s.snapshot(m, sess))
}

func (s *Server) loadSession(ctx context.Context, w http.ResponseWriter, id string) (*session.Session, bool) {
	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session", id).Msg("load session")
		writeError(w, http.StatusInternalServerError, "could not load session")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(r.Context(), w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot(s.machine.Load(), sess))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.logger.Error().Err(err).Msg("delete session")
		writeError(w, http.StatusInternalServerError, "could not delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var action widget.Action
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&action); err != nil {
		writeError(w, http.StatusBadRequest, "invalid action body")
		return
	}
	if !widget.Known(action.Kind) {
		s.countAction("unknown", metrics.ResultRejected)
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	sess, ok := s.loadSession(r.Context(), w, id)
	if !ok {
		return
	}

	m := s.machine.Load()
	before := sess.State
	next, effects, err := m.Apply(before, action)
	switch {
	case errors.Is(err, widget.ErrContactIncomplete):
		s.countAction(action.Kind, metrics.ResultRejected)
		writeError(w, http.StatusUnprocessableEntity, widget.ErrContactIncomplete.Error())
		return
	case err != nil:
		s.countAction(action.Kind, metrics.ResultError)
		s.logger.Error().Err(err).Str("session", id).Str("action", string(action.Kind)).Msg("dispatch action")
		writeError(w, http.StatusInternalServerError, "could not apply action")
		return
	}

	sess.State = next
	if err := s.store.Save(r.Context(), sess); err != nil {
		s.countAction(action.Kind, metrics.ResultError)
		s.logger.Error().Err(err).Str("session", id).Str("action", string(action.Kind)).Msg("save session")
		writeError(w, http.StatusInternalServerError, "could not save session")
		return
	}

	if next == before && len(effects) == 0 {
		s.countAction(action.Kind, metrics.ResultNoop)
	} else {
		s.countAction(action.Kind, metrics.ResultApplied)
	}

	// The booking only counts once the snapshot that follows it is stored.
	widget.Restore(m, next, s.logger).Notify(effects)
	s.publishEffects(id, effects)
	if effects == nil {
		effects = []widget.Effect{}
	}
	writeJSON(w, http.StatusOK, ActionResponse{Snapshot: s.snapshot(m, sess), Effects: effects})
}

func (s *Server) publishEffects(id string, effects []widget.Effect) {
	if s.bus == nil {
		return
	}
	for _, e := range effects {
		if e.Kind != widget.EffectOpenLink {
			continue
		}
		payload := map[string]string{"session": id, "url": e.URL}
		if err := s.bus.PublishJSON(events.TypeLinkOpened, payload); err != nil {
			s.logger.Warn().Err(err).Msg("publish link opened")
		}
	}
}

func (s *Server) countAction(kind widget.ActionKind, result string) {
	if s.metrics != nil {
		s.metrics.IncAction(string(kind), result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
