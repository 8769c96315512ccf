// Package gateway is the HTTP surface: a streaming chat endpoint that
// carries the session's ordered events out over SSE, and the answer
// intake endpoint that resolves pending elicitations.
package gateway

import (
	"net/http"

	"parley/internal/agent"
	"parley/internal/elicit"
	"parley/internal/journal"
)

type Server struct {
	runner     agent.Runner
	elicits    *elicit.Registry
	journal    *journal.Journal
	tools      *agent.Registry
	mux        *http.ServeMux
	bufferSize int
}

type ServerOption func(*Server)

// WithStreamBuffer overrides the per-session event buffer size.
func WithStreamBuffer(n int) ServerOption {
	return func(s *Server) { s.bufferSize = n }
}

func NewServer(runner agent.Runner, elicits *elicit.Registry, j *journal.Journal, tools *agent.Registry, opts ...ServerOption) *Server {
	s := &Server{
		runner:     runner,
		elicits:    elicits,
		journal:    j,
		tools:      tools,
		mux:        http.NewServeMux(),
		bufferSize: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/chat", s.handleChat)
	s.mux.HandleFunc("POST /v1/elicitations/{id}/answer", s.handleAnswer)
	s.mux.HandleFunc("GET /v1/sessions/{id}/elicitations", s.handleListElicitations)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}/run", s.handleCancelRun)
	s.mux.HandleFunc("GET /v1/tools", s.handleListTools)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}
