// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/orchat/internal/chat"
	"github.com/jeranaias/orchat/internal/logging"
	"github.com/jeranaias/orchat/internal/model"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// MaxRequestBodySize is the maximum size for request body to prevent DoS (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxTitleLength bounds session titles set over the API.
	MaxTitleLength = model.MaxTitleLength

	// catalogTimeout bounds the remote model fetch behind GET /api/models.
	catalogTimeout = 15 * time.Second

	// Version is the API version reported by /health.
	Version = "1.0.0"
)

//go:embed static
var staticFiles embed.FS

// Catalog lists the models offered in the selector.
type Catalog interface {
	Catalog(ctx context.Context) ([]model.ModelInfo, error)
}

// ============================================================================
// SERVER
// ============================================================================

// Server exposes an orchestrator as a JSON API plus a small browser page.
type Server struct {
	chat    *chat.Orchestrator
	catalog Catalog

	addr         string
	systemPrompt string
	limiter      *RateLimiter

	router  *http.ServeMux
	handler http.Handler

	mu     sync.RWMutex
	server *http.Server
}

// New creates a server for orch. catalog may be nil, in which case only the
// built-in models are listed.
func New(orch *chat.Orchestrator, catalog Catalog) *Server {
	s := &Server{
		chat:    orch,
		catalog: catalog,
		addr:    DefaultAddr,
		router:  http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// WithAddr sets the listen address.
func (s *Server) WithAddr(addr string) *Server {
	if addr != "" {
		s.addr = addr
	}
	return s
}

// WithRateLimit enables per-client rate limiting. A non-positive rps
// disables it.
func (s *Server) WithRateLimit(rps float64, burst int) *Server {
	if s.limiter != nil {
		s.limiter.Close()
		s.limiter = nil
	}
	if rps > 0 {
		s.limiter = NewRateLimiter(rps, burst)
	}
	s.handler = nil
	return s
}

// WithSystemPrompt sets the prompt for sessions created without one.
func (s *Server) WithSystemPrompt(prompt string) *Server {
	s.systemPrompt = prompt
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded static files: %v", err))
	}

	s.router.HandleFunc("GET /{$}", s.handleIndex)
	s.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	s.router.HandleFunc("GET /health", s.handleHealth)

	s.router.HandleFunc("GET /api/state", s.handleState)
	s.router.HandleFunc("GET /api/models", s.handleModels)
	s.router.HandleFunc("PUT /api/model", s.handleSetModel)
	s.router.HandleFunc("PUT /api/settings", s.handleSettings)

	s.router.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.router.HandleFunc("PATCH /api/sessions/{id}", s.handleRenameSession)
	s.router.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.router.HandleFunc("POST /api/sessions/{id}/select", s.handleSelectSession)
	s.router.HandleFunc("POST /api/sessions/{id}/clear", s.handleClearSession)
	s.router.HandleFunc("POST /api/sessions/{id}/messages", s.handleSend)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	if s.handler != nil {
		return s.handler
	}
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(logging.Logger()),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter))
	}
	s.handler = Chain(middlewares...)(s.router)
	return s.handler
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// RenameRequest is the body of PATCH /api/sessions/{id}.
type RenameRequest struct {
	Title string `json:"title"`
}

// SendRequest is the body of POST /api/sessions/{id}/messages.
type SendRequest struct {
	Text string `json:"text"`
}

// ModelRequest is the body of PUT /api/model.
type ModelRequest struct {
	Model string `json:"model"`
}

// SendResponse is the snapshot after a send. Rejected names the failed
// precondition when nothing was sent.
type SendResponse struct {
	chat.State
	Rejected chat.Rejection `json:"rejected,omitempty"`
}

// ModelsResponse lists the catalog. Warning is set when the remote list
// could not be fetched.
type ModelsResponse struct {
	Models  []model.ModelInfo `json:"models"`
	Warning string            `json:"warning,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
	Busy     bool   `json:"busy"`
	Model    string `json:"model"`
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  Version,
		Sessions: s.chat.Store().Len(),
		Busy:     s.chat.Busy(),
		Model:    s.chat.SelectedModel(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chat.Snapshot())
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, ModelsResponse{Models: model.BuiltinModels()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), catalogTimeout)
	defer cancel()

	models, err := s.catalog.Catalog(ctx)
	resp := ModelsResponse{Models: models}
	if err != nil {
		logging.Warnf("MODELS_FETCH_FAILED | error=%v", err)
		resp.Warning = "remote model list unavailable"
		if len(resp.Models) == 0 {
			resp.Models = model.BuiltinModels()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if err := s.chat.SetModel(req.Model); err != nil {
		logging.Warnf("MODEL_PERSIST_FAILED | error=%v", err)
	}
	writeJSON(w, http.StatusOK, s.chat.Snapshot())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.chat.Settings()
	if !decodeBody(w, r, &settings) {
		return
	}
	if err := settings.Normalize().Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.chat.UpdateSettings(settings); err != nil {
		logging.Warnf("SETTINGS_PERSIST_FAILED | error=%v", err)
	}
	writeJSON(w, http.StatusOK, s.chat.Snapshot())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	prompt := req.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = s.systemPrompt
	}
	s.chat.Store().CreateSession(prompt)
	writeJSON(w, http.StatusCreated, s.chat.Snapshot())
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if len([]rune(title)) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("title exceeds %d characters", MaxTitleLength))
		return
	}
	if !s.chat.Store().RenameSession(r.PathValue("id"), title) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.chat.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.chat.Store().DeleteSession(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.chat.Snapshot())
}

func (s *Server) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	if !s.chat.Store().SelectSession(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.chat.Snapshot())
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if !s.chat.Clear(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.chat.Snapshot())
}

// handleSend runs one exchange and answers with the resulting snapshot.
// Rejected sends still carry the snapshot so the page can re-render.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	res := s.chat.Send(r.Context(), req.Text, id)

	status := http.StatusOK
	switch res.Rejected {
	case chat.RejectEmpty:
		status = http.StatusBadRequest
	case chat.RejectNoSession:
		status = http.StatusNotFound
	case chat.RejectBusy:
		status = http.StatusConflict
	}
	if res.Rejected != chat.RejectNone {
		logging.Debugf("SEND_REJECTED | session=%s reason=%s request=%s", id, res.Rejected, RequestID(r.Context()))
	}

	writeJSON(w, status, SendResponse{State: s.chat.Snapshot(), Rejected: res.Rejected})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until the server
// stops. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Sends block for the whole completion.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	logging.Infof("SERVER_START | addr=%s version=%s", s.addr, Version)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()

	if s.limiter != nil {
		s.limiter.Close()
	}
	if srv == nil {
		return nil
	}

	logging.Infof("SERVER_SHUTDOWN | starting graceful shutdown")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debugf("RESPONSE_ENCODE_FAILED | error=%v", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}

// decodeBody reads a size-limited JSON body into v. On failure it writes a
// 400 (or 413) and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	return decode(w, r, v, false)
}

// decodeOptionalBody is decodeBody that accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
