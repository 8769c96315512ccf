package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"parley/internal/agent"
	"parley/internal/elicit"
	"parley/internal/stream"
)

type chatRequest struct {
	SessionID string          `json:"session_id"`
	Messages  []agent.Message `json:"messages"`
}

type answerRequest struct {
	Answer json.RawMessage `json:"answer"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, `{"error":"messages are required"}`, http.StatusBadRequest)
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := r.Context()
	mux := stream.NewMux(s.bufferSize)

	// If the client goes away mid-turn, release every suspended tool
	// execution the session owns; no waiter may outlive its session.
	watch := context.AfterFunc(ctx, func() {
		s.elicits.EndSession(sessionID)
		mux.End(ctx.Err())
	})
	defer watch()

	go func() {
		if err := s.runner.Run(ctx, sessionID, req.Messages, mux); err != nil {
			slog.Warn("turn failed", "session_id", sessionID, "error", err)
		}
	}()

	sse := NewSSEWriter(w)
	if err := sse.Send("session", map[string]string{"session_id": sessionID}); err != nil {
		s.elicits.EndSession(sessionID)
		return
	}

	for {
		ev, ok := mux.Next()
		if !ok {
			return
		}
		if err := sse.Send(string(ev.Type), ev); err != nil {
			slog.Debug("stream consumer gone", "session_id", sessionID, "error", err)
			s.elicits.EndSession(sessionID)
			return
		}
	}
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body answerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Answer) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "answer is required"})
		return
	}

	req, ok := s.elicits.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "elicitation not found"})
		return
	}

	ans, err := elicit.ParseAnswer(req.Kind, body.Answer)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	switch err := s.elicits.Resolve(id, ans); {
	case errors.Is(err, elicit.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "elicitation not found"})
	case errors.Is(err, elicit.ErrAlreadyResolved):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "elicitation already answered"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleListElicitations(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	entries, err := s.journal.BySession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load elicitations"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"elicitations": entries})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	s.elicits.EndSession(sessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	infos := make([]toolInfo, 0)
	for _, t := range s.tools.All() {
		infos = append(infos, toolInfo{Name: t.Name(), Description: t.Description(), InputSchema: t.InputSchema()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": infos})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}
