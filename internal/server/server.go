package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"raceline/internal/broadcast"
	"raceline/internal/domain"
	"raceline/internal/engine"
	"raceline/internal/repo"
)

// Config for the live HTTP handler.
type Config struct {
	Engine engine.Engine
	// Hub serves websocket clients at LivePath. Nil disables the endpoint.
	Hub      *broadcast.Hub
	LivePath string
	Log      *zap.SugaredLogger
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	Body apiErrorBody `json:"error"`
}

const maxEventsLimit = 500

// New returns the handler exposing health, the event log and the live feed.
func New(cfg Config) (http.Handler, error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	livePath := cfg.LivePath
	if livePath == "" {
		livePath = "/live"
	}
	if !strings.HasPrefix(livePath, "/") {
		livePath = "/" + livePath
	}
	s := handlers{engine: cfg.Engine, hub: cfg.Hub, log: cfg.Log}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", s.health)
	router.Get("/events", s.events)
	router.Get("/events/{kind}/{id}", s.entityEvents)
	if cfg.Hub != nil {
		router.Handle(livePath, cfg.Hub)
	}
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	return router, nil
}

type handlers struct {
	engine engine.Engine
	hub    *broadcast.Hub
	log    *zap.SugaredLogger
}

type healthBody struct {
	Status      string `json:"status"`
	LastEventID int64  `json:"last_event_id"`
	LiveClients int    `json:"live_clients"`
}

func (s handlers) health(w http.ResponseWriter, r *http.Request) {
	id, err := s.engine.Repos.Events.LatestEventID(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	body := healthBody{Status: "ok", LastEventID: id}
	if s.hub != nil {
		body.LiveClients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, body)
}

type eventsBody struct {
	Events     []domain.Event `json:"events"`
	NextCursor int64          `json:"next_cursor"`
}

// events pages through the change log: ?after=<id>&limit=<n>&entity_kind=<kind>.
// Without after the newest events come first.
func (s handlers) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 50)
	if err != nil || limit <= 0 || limit > maxEventsLimit {
		writeError(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 500")
		return
	}
	after, err := intParam(q.Get("after"), -1)
	if err != nil || (q.Get("after") != "" && after < 0) {
		writeError(w, http.StatusBadRequest, "bad_request", "after must be a non-negative event id")
		return
	}
	var list []domain.Event
	if after >= 0 || q.Get("entity_kind") != "" {
		if after < 0 {
			after = 0
		}
		list, err = s.engine.Repos.Events.EventsAfter(r.Context(), int(limit), after, q.Get("entity_kind"))
	} else {
		list, err = s.engine.Repos.Events.Latest(r.Context(), int(limit))
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	body := eventsBody{Events: list, NextCursor: after}
	if body.Events == nil {
		body.Events = []domain.Event{}
	}
	for _, e := range list {
		if e.ID > body.NextCursor {
			body.NextCursor = e.ID
		}
	}
	if body.NextCursor < 0 {
		body.NextCursor = 0
	}
	writeJSON(w, http.StatusOK, body)
}

func (s handlers) entityEvents(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "id must be a positive integer")
		return
	}
	list, err := s.engine.Repos.Events.ForEntity(r.Context(), chi.URLParam(r, "kind"), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if list == nil {
		list = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, eventsBody{Events: list})
}

func (s handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.log.Errorw("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func intParam(v string, def int64) (int64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, apiError{Body: apiErrorBody{Code: code, Message: msg}})
}
