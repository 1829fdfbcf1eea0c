// Package http exposes the routing engine over a REST API with SSE turn
// streaming, backed by a session manager for persistence and locking.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/batonlabs/baton/internal/logging"
	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/runner"
	"github.com/batonlabs/baton/pkg/session"
)

// Engine defines the routing core surface the server drives.
type Engine interface {
	Start(ctx context.Context, sessionID string, initialContext map[string]any) (*domain.State, error)
	Step(ctx context.Context, state *domain.State) (*domain.State, domain.NextStep, error)
	SubmitInput(ctx context.Context, state *domain.State, input string) (*domain.State, domain.NextStep, error)
}

// Server wires HTTP requests to the engine.
type Server struct {
	engine   Engine
	sessions *session.Manager
	streams  *StreamManager
	logger   *slog.Logger
	info     map[string]string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInfo sets extra fields returned by GET /info.
func WithInfo(info map[string]string) Option {
	return func(s *Server) {
		for k, v := range info {
			s.info[k] = v
		}
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		engine:   engine,
		sessions: sessions,
		streams:  NewStreamManager(),
		logger:   logging.NewNop(),
		info:     map[string]string{"app": "baton-http"},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/events", s.subscribeEvents)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/step", s.step)
			r.Post("/input", s.submitInput)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createSessionRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

type stepRequest struct {
	// Run drives the session until it gates or terminates instead of
	// advancing a single turn.
	Run bool `json:"run,omitempty"`
}

type inputRequest struct {
	Input string `json:"input"`
}

type sessionResponse struct {
	State *domain.State   `json:"state"`
	Next  domain.NextStep `json:"next"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("createSession: invalid request body", "err", err)
		return
	}

	var state *domain.State
	created := false
	err := s.sessions.WithLock(r.Context(), body.SessionID, func(ctx context.Context) error {
		if body.SessionID != "" {
			if _, err := s.sessions.Store().Load(ctx, body.SessionID); err == nil {
				return nil
			} else if !errors.Is(err, domain.ErrSessionNotFound) {
				return err
			}
		}

		var err error
		state, err = s.engine.Start(ctx, body.SessionID, body.Context)
		if err != nil {
			return err
		}
		created = true
		return s.sessions.Store().Save(ctx, state.SessionID, state)
	})
	if err != nil {
		s.respondError(w, err, "createSession")
		return
	}
	if !created {
		http.Error(w, "Session already exists", http.StatusConflict)
		return
	}

	// Headers must land before the status line is written.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	s.respondJSON(w, sessionResponse{State: state, Next: domain.NextStep{Kind: domain.StepInvoke, Participant: state.Current}})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.respondError(w, err, "listSessions")
		return
	}
	s.respondJSON(w, map[string][]string{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, err, "getSession")
		return
	}
	s.respondJSON(w, map[string]*domain.State{"state": state})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, err, "deleteSession")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) step(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body stepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	var state *domain.State
	var next domain.NextStep
	err := s.sessions.WithLock(r.Context(), sessionID, func(ctx context.Context) error {
		var err error
		state, err = s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		prevTurns := len(state.Turns)

		for {
			var stepErr error
			state, next, stepErr = s.engine.Step(ctx, state)
			if stepErr != nil {
				// Fatal routing errors leave a terminated state worth saving.
				if state != nil {
					_ = s.sessions.Store().Save(ctx, sessionID, state)
				}
				return stepErr
			}
			if !body.Run || next.Kind != domain.StepInvoke {
				break
			}
		}

		if err := s.sessions.Store().Save(ctx, sessionID, state); err != nil {
			return err
		}
		s.broadcastTurns(sessionID, state, prevTurns)
		return nil
	})
	if err != nil {
		s.respondError(w, err, "step")
		return
	}

	s.respondJSON(w, sessionResponse{State: state, Next: next})
}

func (s *Server) submitInput(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body inputRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	input := body.Input
	if input != "" {
		clean, err := runner.SanitizeInput(input)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid input: %v", err), http.StatusBadRequest)
			s.logger.Warn("submitInput: input rejected", "err", err, "size", len(input))
			return
		}
		input = clean
	}

	var state *domain.State
	var next domain.NextStep
	err := s.sessions.WithLock(r.Context(), sessionID, func(ctx context.Context) error {
		var err error
		state, err = s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		prevTurns := len(state.Turns)

		state, next, err = s.engine.SubmitInput(ctx, state, input)
		if err != nil {
			return err
		}

		if err := s.sessions.Store().Save(ctx, sessionID, state); err != nil {
			return err
		}
		s.broadcastTurns(sessionID, state, prevTurns)
		return nil
	})
	if err != nil {
		s.respondError(w, err, "submitInput")
		return
	}

	s.respondJSON(w, sessionResponse{State: state, Next: next})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, s.info)
}

func (s *Server) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrSessionTerminated):
		http.Error(w, "Session terminated", http.StatusGone)
	case errors.Is(err, domain.ErrNotAwaitingInput):
		http.Error(w, "Session is not awaiting input", http.StatusConflict)
	default:
		http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
		s.logger.Error("request failed", "op", op, "err", err)
	}
}
