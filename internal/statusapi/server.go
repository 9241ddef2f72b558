// Package statusapi implements an optional, read-only HTTP status surface
// for external dashboards: current agent mode, running task count, and a
// task history report, as JSON. It is off by default and binds to
// 127.0.0.1 only — it is an observability convenience, not a control plane.
package statusapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/history"
)

// StateReader exposes a read-only view of the running session's state,
// satisfied by *statestore.Store's Load (called fresh on every request so
// the endpoint always reflects the latest checkpoint).
type StateReader interface {
	Load() (*core.AgentState, error)
}

// Server is the status HTTP surface.
type Server struct {
	router  chi.Router
	state   StateReader
	history history.Store
	logger  *slog.Logger
}

// New builds a Server. history may be nil, in which case /history reports
// an empty accuracy summary and no records.
func New(state StateReader, hist history.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{state: state, history: hist, logger: logger}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	// Read-only and local by construction (ListenAndServe binds
	// 127.0.0.1), but CORS is still restricted to same-origin GETs in
	// case a future dashboard is served from a different port.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"http://127.0.0.1:*", "http://localhost:*"},
		AllowedMethods: []string{"GET"},
		MaxAge:         300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/status", s.handleStatus)
	r.Get("/tasks", s.handleTasks)
	r.Get("/history", s.handleHistory)
	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Debug("status api request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusResponse is the /status payload.
type statusResponse struct {
	SessionID    string         `json:"session_id"`
	Mode         core.AgentMode `json:"mode"`
	CurrentGoal  string         `json:"current_goal,omitempty"`
	QueuedTasks  int            `json:"queued_tasks"`
	RunningTasks int            `json:"running_tasks"`
	DoneTasks    int            `json:"completed_tasks"`
	FailedTasks  int            `json:"failed_tasks"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state, err := s.state.Load()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{
		SessionID:    state.SessionID,
		Mode:         state.Mode,
		CurrentGoal:  state.CurrentGoal,
		QueuedTasks:  len(state.TaskQueue),
		RunningTasks: len(state.ExecutingTasks),
		DoneTasks:    len(state.CompletedTasks),
		FailedTasks:  len(state.FailedTasks),
		UpdatedAt:    state.UpdatedAt,
	})
}

// tasksResponse is the /tasks payload: every task the session currently
// knows about, bucketed the way AgentState buckets them.
type tasksResponse struct {
	Queued    []*core.Task `json:"queued"`
	Executing []*core.Task `json:"executing"`
	Completed []*core.Task `json:"completed"`
	Failed    []*core.Task `json:"failed"`
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	state, err := s.state.Load()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	resp := tasksResponse{}
	resp.Queued = lookupTasks(state, state.TaskQueue)
	resp.Executing = lookupTasks(state, state.ExecutingTasks)
	resp.Completed = lookupTasks(state, state.CompletedTasks)
	resp.Failed = lookupTasks(state, state.FailedTasks)
	respondJSON(w, http.StatusOK, resp)
}

func lookupTasks(state *core.AgentState, ids []core.TaskID) []*core.Task {
	out := make([]*core.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := state.Tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// historyResponse is the /history payload.
type historyResponse struct {
	Report      string           `json:"report"`
	Accuracy    history.Accuracy `json:"accuracy"`
	RecentSlow  []core.ExecutionRecord `json:"recent_slow,omitempty"`
	RecentFailed []core.ExecutionRecord `json:"recent_failed,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	if s.history == nil {
		respondJSON(w, http.StatusOK, historyResponse{Report: "no task history configured"})
		return
	}
	respondJSON(w, http.StatusOK, historyResponse{
		Report:       s.history.Report(),
		Accuracy:     s.history.EstimationAccuracy(),
		RecentSlow:   s.history.FindSlow(10),
		RecentFailed: s.history.FindFailed(10),
	})
}

// ListenAndServe starts the HTTP server bound to addr. Callers should pass
// a 127.0.0.1 address — this surface is not meant to be exposed beyond the
// local host. The server shuts down gracefully when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting status api", "addr", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
