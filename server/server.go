// Package server exposes the outline's manual controls over HTTP and as
// MCP tools. Every engine call runs on the scheduler thread via Runner.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/chattoc/export"
	"github.com/hazyhaar/chattoc/outline"
)

// Engine is the part of *outline.Engine the server drives.
type Engine interface {
	Items() []outline.Item
	Stats() outline.Stats
	Rebuild(force bool) bool
	Select(id string) *outline.Search
	Export(ctx context.Context) error
	Toggle()
}

// Runner runs fn on the scheduler thread and waits for it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Config configures a Server.
type Config struct {
	Engine Engine
	Runner Runner
	// MCP mounts the streamable MCP handler at /mcp.
	MCP     bool
	Version string
	Logger  *slog.Logger
}

// Server holds the router and the MCP server.
type Server struct {
	eng    Engine
	run    Runner
	logger *slog.Logger
	mcp    *mcp.Server
	router chi.Router
}

// LocateWait bounds how long a waiting locate request blocks.
const LocateWait = 10 * time.Second

// New builds the router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{eng: cfg.Engine, run: cfg.Runner, logger: cfg.Logger}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "chattoc", Version: cfg.Version}, nil)
	s.RegisterMCP(s.mcp)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/outline", s.handleOutline)
	r.Post("/refresh", s.handleRefresh)
	r.Post("/locate/{id}", s.handleLocate)
	r.Post("/export", s.handleExport)
	r.Post("/toggle", s.handleToggle)

	if cfg.MCP {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
		r.Handle("/mcp", h)
		r.Handle("/mcp/*", h)
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// MCPServer returns the MCP server carrying the outline tools.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// OutlineResponse is the body of GET /outline and POST /refresh.
type OutlineResponse struct {
	Items    []outline.Item `json:"items"`
	Stats    outline.Stats  `json:"stats"`
	Rendered bool           `json:"rendered,omitempty"`
}

// LocateResponse is the body of POST /locate/{id}.
type LocateResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Steps     int    `json:"steps"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func (s *Server) outline(ctx context.Context) (*OutlineResponse, error) {
	var out OutlineResponse
	err := s.run.Do(ctx, func() {
		out.Items = s.eng.Items()
		out.Stats = s.eng.Stats()
	})
	return &out, err
}

func (s *Server) refresh(ctx context.Context) (*OutlineResponse, error) {
	var out OutlineResponse
	err := s.run.Do(ctx, func() {
		out.Rendered = s.eng.Rebuild(true)
		out.Items = s.eng.Items()
		out.Stats = s.eng.Stats()
	})
	return &out, err
}

// locate starts a search. With wait it blocks until the search ends or
// ctx is done, and reports the state reached.
func (s *Server) locate(ctx context.Context, id string, wait bool) (*LocateResponse, error) {
	done := make(chan LocateResponse, 1)
	var first LocateResponse
	err := s.run.Do(ctx, func() {
		sr := s.eng.Select(id)
		first = snapshot(sr)
		sr.OnDone(func(sr *outline.Search) { done <- snapshot(sr) })
	})
	if err != nil {
		return nil, err
	}
	if !wait {
		return &first, nil
	}
	ctx, cancel := context.WithTimeout(ctx, LocateWait)
	defer cancel()
	select {
	case r := <-done:
		return &r, nil
	case <-ctx.Done():
		return &first, nil
	}
}

func snapshot(sr *outline.Search) LocateResponse {
	return LocateResponse{
		ID:        sr.ID,
		State:     sr.State().String(),
		Steps:     sr.Steps(),
		ElapsedMS: sr.Elapsed().Milliseconds(),
	}
}

// ExportResponse is the body of POST /export. When the clipboard is not
// reachable the Markdown comes back for manual copying.
type ExportResponse struct {
	Status   string `json:"status"`
	Markdown string `json:"markdown,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) export(ctx context.Context) (*ExportResponse, error) {
	var exportErr error
	if err := s.run.Do(ctx, func() { exportErr = s.eng.Export(ctx) }); err != nil {
		return nil, err
	}
	var ce *export.ClipboardError
	switch {
	case exportErr == nil:
		return &ExportResponse{Status: "copied"}, nil
	case errors.As(exportErr, &ce):
		s.logger.Info("server: clipboard unavailable, returning markdown", "bytes", len(ce.Markdown))
		return &ExportResponse{Status: "manual_copy", Markdown: ce.Markdown, Error: ce.Error()}, nil
	default:
		return nil, exportErr
	}
}

func (s *Server) toggle(ctx context.Context) error {
	return s.run.Do(ctx, s.eng.Toggle)
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	out, err := s.outline(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	out, err := s.refresh(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wait := r.URL.Query().Get("wait") == "true"
	out, err := s.locate(r.Context(), id, wait)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	out, err := s.export(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.toggle(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, outline.ErrStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, outline.ErrNoExporter):
		status = http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.logger.Warn("server: request failed", "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
