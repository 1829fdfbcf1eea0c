// Package mcp exposes the routing engine as an MCP server, so agent hosts
// can create sessions, advance turns, and resolve human-input gates as
// structured tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/batonlabs/baton"
	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/runner"
	"github.com/batonlabs/baton/pkg/session"
)

// SessionResponse is the structured result shared by all session tools.
type SessionResponse struct {
	State    *domain.State   `json:"state" jsonschema_description:"The full session state"`
	Next     domain.NextStep `json:"next" jsonschema_description:"The routing verdict: invoke, await_input or terminated"`
	Terminal bool            `json:"terminal" jsonschema_description:"True once the session is terminated"`
}

// Engine defines the routing core surface the MCP server drives.
type Engine interface {
	Start(ctx context.Context, sessionID string, initialContext map[string]any) (*domain.State, error)
	Step(ctx context.Context, state *domain.State) (*domain.State, domain.NextStep, error)
	SubmitInput(ctx context.Context, state *domain.State, input string) (*domain.State, domain.NextStep, error)
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	sessions  *session.Manager
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance.
func NewServer(engine Engine, sessions *session.Manager) *Server {
	s := &Server{
		engine:    engine,
		sessions:  sessions,
		mcpServer: server.NewMCPServer("baton-mcp", strings.TrimSpace(baton.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
		return nil
	})

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_session",
		mcp.WithDescription("Create a new routing session. Returns the initial state and who acts first."),
		mcp.WithString("session_id", mcp.Description("Session ID (optional; generated when omitted)")),
		mcp.WithString("context", mcp.Description("JSON object seeding the shared context (optional)")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStartSession))

	stepTool := mcp.NewTool("step_session",
		mcp.WithDescription("Advance the session. With run=true, keeps going until it gates on human input or terminates."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithBoolean("run", mcp.Description("Run until the session settles instead of a single turn")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(stepTool, mcp.NewStructuredToolHandler(s.handleStepSession))

	inputTool := mcp.NewTool("submit_input",
		mcp.WithDescription("Resolve the human-input gate with the given text. Empty input skips the gate."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("input", mcp.Description("The human's text")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(inputTool, mcp.NewStructuredToolHandler(s.handleSubmitInput))

	getTool := mcp.NewTool("get_session",
		mcp.WithDescription("Fetch the current state of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGetSession))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List known session IDs."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.sessions.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	sessionID, _ := args["session_id"].(string)

	initialContext := map[string]any{}
	if ctxStr, ok := args["context"].(string); ok && ctxStr != "" {
		if err := json.Unmarshal([]byte(ctxStr), &initialContext); err != nil {
			return SessionResponse{}, fmt.Errorf("invalid context JSON: %w", err)
		}
	}

	var state *domain.State
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if sessionID != "" {
			if _, err := s.sessions.Store().Load(ctx, sessionID); err == nil {
				return fmt.Errorf("session %q already exists", sessionID)
			} else if !errors.Is(err, domain.ErrSessionNotFound) {
				return err
			}
		}

		var err error
		state, err = s.engine.Start(ctx, sessionID, initialContext)
		if err != nil {
			return err
		}
		return s.sessions.Store().Save(ctx, state.SessionID, state)
	})
	if err != nil {
		return SessionResponse{}, err
	}

	return SessionResponse{
		State: state,
		Next:  domain.NextStep{Kind: domain.StepInvoke, Participant: state.Current},
	}, nil
}

func (s *Server) handleStepSession(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	sessionID, _ := args["session_id"].(string)
	run, _ := args["run"].(bool)

	var state *domain.State
	var next domain.NextStep
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}

		for {
			var stepErr error
			state, next, stepErr = s.engine.Step(ctx, state)
			if stepErr != nil {
				if state != nil {
					_ = s.sessions.Store().Save(ctx, sessionID, state)
				}
				return stepErr
			}
			if !run || next.Kind != domain.StepInvoke {
				break
			}
		}

		return s.sessions.Store().Save(ctx, sessionID, state)
	})
	if err != nil {
		return SessionResponse{}, fmt.Errorf("step failed: %w", err)
	}

	return SessionResponse{State: state, Next: next, Terminal: state.Terminated()}, nil
}

func (s *Server) handleSubmitInput(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	sessionID, _ := args["session_id"].(string)
	input, _ := args["input"].(string)

	if input != "" {
		clean, err := runner.SanitizeInput(input)
		if err != nil {
			return SessionResponse{}, fmt.Errorf("input rejected: %w", err)
		}
		input = clean
	}

	var state *domain.State
	var next domain.NextStep
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}

		state, next, err = s.engine.SubmitInput(ctx, state, input)
		if err != nil {
			return err
		}
		return s.sessions.Store().Save(ctx, sessionID, state)
	})
	if err != nil {
		return SessionResponse{}, fmt.Errorf("submit input failed: %w", err)
	}

	return SessionResponse{State: state, Next: next, Terminal: state.Terminated()}, nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	sessionID, _ := args["session_id"].(string)

	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("load failed: %w", err)
	}

	next := domain.NextStep{Kind: domain.StepInvoke, Participant: state.Current}
	switch state.Status {
	case domain.StatusTerminated:
		next = domain.NextStep{Kind: domain.StepTerminated}
	case domain.StatusAwaitingInput:
		next = domain.NextStep{Kind: domain.StepAwaitInput, Participant: state.Current}
	}

	return SessionResponse{State: state, Next: next, Terminal: state.Terminated()}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("baton://sessions", "Known Sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.sessions.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "baton://sessions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
