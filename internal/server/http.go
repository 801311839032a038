package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// Handler returns the HTTP status endpoint:
//
//	GET /healthz        liveness; 503 once the mirror has stopped
//	GET /windows        mirrored windows (?app=, ?title= filters)
//	GET /windows/{id}   one window
//	GET /apps           running applications
//	GET /events         recent events (?limit=)
//	GET /metrics        Prometheus metrics, when configured
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/windows", s.handleWindows)
	r.Get("/windows/{id}", s.handleWindow)
	r.Get("/apps", s.handleApps)
	r.Get("/events", s.handleEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	select {
	case <-s.state.Done():
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "stopped"})
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	windows := model.FilterWindows(s.state.Snapshot().Windows, q.Get("app"), q.Get("title"))
	if windows == nil {
		windows = []model.Window{}
	}
	s.writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	win, ok := s.state.Window(platform.WindowID(id))
	if !ok {
		http.Error(w, "window not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, win.Snapshot())
}

func (s *Server) handleApps(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state.Snapshot().Apps)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.events.Recent(limit))
}
