package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"site-server/internal/chat"
	"site-server/internal/metrics"
	"site-server/internal/types"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.submit(w, r, req.Message, "")
}

// handleQuickReply is the same as typing the label.
func (s *Server) handleQuickReply(w http.ResponseWriter, r *http.Request) {
	var req types.QuickReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.submit(w, r, req.Label, "")
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		s.writeError(w, http.StatusServiceUnavailable, "voice input is not configured")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio file is required (field 'file')")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.upstreamTimeout())
	defer cancel()
	transcript, err := s.transcriber.Transcribe(ctx, file, header.Filename)
	if err != nil {
		metrics.TranscriptionsTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Msg("transcription error")
		s.writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	metrics.TranscriptionsTotal.WithLabelValues("success").Inc()
	s.submit(w, r, transcript, transcript)
}

// submit posts text to the caller's session. Unless ?wait=false is given it
// holds the request until the assistant reply has been appended.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, text, transcript string) {
	sess := s.session(w, r)
	msg, replyCh, err := sess.Submit(text)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	case errors.Is(err, chat.ErrReplyPending):
		s.writeError(w, http.StatusConflict, "a reply is still pending")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := types.ChatResponse{
		SessionID:  sess.ID(),
		Message:    msg,
		Transcript: transcript,
	}

	if r.URL.Query().Get("wait") == "false" {
		resp.Topic = sess.Topic()
		resp.AwaitingReply = true
		s.writeJSON(w, http.StatusAccepted, resp)
		return
	}

	select {
	case reply := <-replyCh:
		resp.Reply = &reply
		resp.Topic = sess.Topic()
		s.writeJSON(w, http.StatusOK, resp)
	case <-r.Context().Done():
		// The reply still lands in the session; the client can fetch it.
		s.log.Debug().Str("session_id", sess.ID()).Msg("client left before reply")
	}
}

func (s *Server) handleChatState(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	var req types.WidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess := s.session(w, r)
	var open bool
	if req.Open != nil {
		sess.SetOpen(*req.Open)
		open = *req.Open
	} else {
		open = sess.Toggle()
	}
	s.writeJSON(w, http.StatusOK, types.WidgetResponse{SessionID: sess.ID(), Open: open})
}

// handleChatReset tears the session down, like leaving the page.
func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	if sid := getSessionID(r); sid != "" {
		if s.sessions.Delete(sid) {
			metrics.ChatActiveSessions.Set(float64(s.sessions.Len()))
		}
	}
	ClearSessionCookie(w, s.cfg.CookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) upstreamTimeout() time.Duration {
	if s.cfg.UpstreamTimeout <= 0 {
		return 20 * time.Second
	}
	return s.cfg.UpstreamTimeout
}
