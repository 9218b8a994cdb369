// Package api exposes the planner board and drag gestures over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"truckplan/internal/calendar"
	"truckplan/internal/metrics"
	"truckplan/internal/planner"
)

// ProfileHeader selects the user profile whose driver order and gestures
// a request works on. The profile query parameter takes precedence.
const ProfileHeader = "X-Planner-Profile"

// HTTPServer serves the planner API.
type HTTPServer struct {
	svc         *planner.Service
	defaultView calendar.ViewMode
	logger      zerolog.Logger
	server      *http.Server
}

// NewHTTPServer builds the router. An unknown defaultView falls back to week.
func NewHTTPServer(port int, svc *planner.Service, defaultView string, logger zerolog.Logger) *HTTPServer {
	mode, err := calendar.ParseViewMode(defaultView)
	if err != nil {
		mode = calendar.ViewWeek
	}
	s := &HTTPServer{
		svc:         svc,
		defaultView: mode,
		logger:      logger.With().Str("component", "http").Logger(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is done.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("planner api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/planner", func(pl chi.Router) {
		pl.Get("/range", s.handleRange)
		pl.Get("/board", s.handleBoard)
		pl.Get("/export.xlsx", s.handleExport)

		pl.Get("/driver-order", s.handleGetDriverOrder)
		pl.Put("/driver-order", s.handlePutDriverOrder)
		pl.Get("/hidden-drivers", s.handleGetHiddenDrivers)
		pl.Put("/hidden-drivers", s.handlePutHiddenDrivers)

		pl.Route("/drag", func(dr chi.Router) {
			dr.Get("/", s.handleActiveDrag)
			dr.Post("/begin", s.handleBeginDrag)
			dr.Post("/drop", s.handleDrop)
			dr.Post("/cancel", s.handleCancelDrag)
		})
	})
	return r
}

// instrument counts requests per route pattern and logs slow or failed ones.
func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.IncHTTPRequest(route, strconv.Itoa(status))

		if status >= http.StatusInternalServerError {
			s.logger.Error().
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Dur("elapsed", time.Since(started)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request failed")
		}
	})
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeRetryable(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Retryable: true})
}

func profileOf(r *http.Request) string {
	if p := r.URL.Query().Get("profile"); p != "" {
		return p
	}
	return r.Header.Get(ProfileHeader)
}
