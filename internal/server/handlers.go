package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/pipeline"
)

// sessionHeader carries the session id of a streamed fact check
const sessionHeader = "X-Session-ID"

type factCheckRequest struct {
	Claim     string `json:"claim"`
	SessionID string `json:"session_id,omitempty"`
}

type followupRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	logging.From(r.Context()).Debug("session created", "session_id", id)
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id})
}

func (s *Server) handleFactCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req factCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}
	claim := strings.TrimSpace(req.Claim)
	if claim == "" {
		writeError(ctx, w, goerr.New("claim is required"), http.StatusBadRequest)
		return
	}

	id, _ := s.sessions.Ensure(req.SessionID)
	logger := logging.From(ctx).With("session_id", id)
	if err := s.sessions.SetClaim(id, claim); err != nil {
		logger.Warn("set claim failed", "error", err)
	}
	if err := s.sessions.Append(id, model.Message{Role: model.RoleUser, Content: claim}); err != nil {
		logger.Warn("append claim failed", "error", err)
	}

	streamHeaders(w)
	w.Header().Set(sessionHeader, id)
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	// the request context is cancelled when the client disconnects, which
	// also cancels the run
	stream := s.checker.Run(logging.With(ctx, logger), claim)
	defer stream.Close()

	var final *model.AggregateVerdict
	for e := range stream.All(ctx) {
		if e.Kind == model.EventFinalVerdict {
			final = e.Aggregate
		}
		text := pipeline.Render(e)
		if text == "" {
			continue
		}
		if _, err := io.WriteString(w, text); err != nil {
			logger.Info("client went away", "error", err)
			return
		}
		_ = rc.Flush()
	}

	if final != nil {
		msg := model.Message{Role: model.RoleAssistant, Content: pipeline.RenderAggregate(*final)}
		if err := s.sessions.Append(id, msg); err != nil {
			logger.Warn("append verdict failed", "error", err)
		}
	}
}

func (s *Server) handleFollowup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req followupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(ctx, w, goerr.New("question is required"), http.StatusBadRequest)
		return
	}

	logger := logging.From(ctx).With("session_id", req.SessionID)
	rc := http.NewResponseController(w)
	started := false

	_, err := s.responder.Answer(logging.With(ctx, logger), req.SessionID, req.Question, func(chunk string) error {
		if !started {
			streamHeaders(w)
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return goerr.Wrap(err, "write answer chunk")
		}
		_ = rc.Flush()
		return nil
	})
	if err == nil {
		if !started {
			streamHeaders(w)
			w.WriteHeader(http.StatusOK)
		}
		return
	}

	if !started {
		writeError(ctx, w, err, http.StatusBadGateway)
		return
	}
	// headers are already sent; report the failure in-band
	logger.Error("follow-up failed mid-stream", "error", err)
	_, _ = io.WriteString(w, "\n[error] answer interrupted\n")
}

func streamHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return goerr.New("request body is empty")
		}
		return goerr.Wrap(err, "invalid JSON body")
	}
	return nil
}
