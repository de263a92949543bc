// Package web exposes a small status API over the current event
// snapshot: /health and /api/events.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"calnotify/internal/app"
	"calnotify/internal/config"
	appLog "calnotify/internal/log"
	"calnotify/internal/timeutil"
)

// Server provides HTTP APIs for health checking and snapshot
// inspection.
type Server struct {
	cfg   *config.Config
	store *app.Store
	mux   *http.ServeMux
}

// NewServer constructs a new Server over the given snapshot store.
func NewServer(cfg *config.Config, store *app.Store) *Server {
	s := &Server{
		cfg:   cfg,
		store: store,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays unauthenticated.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calnotify", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the status API on cfg.Listen until ctx is
// canceled.
func StartServer(ctx context.Context, cfg *config.Config, store *app.Store) error {
	s := NewServer(cfg, store)
	srv := &http.Server{Addr: cfg.Listen, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type eventJSON struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	Location           string  `json:"location,omitempty"`
	Start              string  `json:"start"`
	End                string  `json:"end"`
	MinutesUntilStart  float64 `json:"minutes_until_start"`
	ModifiedOccurrence bool    `json:"modified_occurrence,omitempty"`
	Declined           bool    `json:"declined,omitempty"`
}

type eventsResponse struct {
	FetchedAt string      `json:"fetched_at,omitempty"`
	Events    []eventJSON `json:"events"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.store.Current()
	now := time.Now()

	resp := eventsResponse{Events: make([]eventJSON, 0, len(snap.Events))}
	if !snap.FetchedAt.IsZero() {
		resp.FetchedAt = snap.FetchedAt.Format(time.RFC3339)
	}

	for _, ev := range snap.Events {
		resp.Events = append(resp.Events, eventJSON{
			ID:                 ev.ID,
			Title:              ev.Title,
			Location:           ev.Location,
			Start:              ev.Start.Format(time.RFC3339),
			End:                ev.End.Format(time.RFC3339),
			MinutesUntilStart:  timeutil.MinutesUntil(ev.Start, now),
			ModifiedOccurrence: ev.ModifiedOccurrence,
			Declined:           ev.Declined(),
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		appLog.Error("failed to encode events response", err)
	}
}
