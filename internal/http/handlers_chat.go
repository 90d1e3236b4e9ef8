package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"finpilot/internal/log"
)

// SessionHeader returns the chat session id used for the request.
const SessionHeader = "X-Session-ID"

var errChatDisabled = errors.New("chat not configured")

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// handleChat streams the assistant's answer as plain text. Errors raised
// before the first chunk are returned as JSON; later ones end the stream.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, uid string) {
	if s.chat == nil {
		ErrorResponse(http.StatusServiceUnavailable, errChatDisabled.Error()).Write(w)
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpChat, err)
		return
	}
	sessionID := sanitizeInput(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if len(sessionID) > 128 || strings.ContainsAny(sessionID, ": ") {
		BadRequestError("invalid session_id").Write(w)
		return
	}

	rc := http.NewResponseController(w)
	started := false
	onDelta := func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set(SessionHeader, sessionID)
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	_, err := s.chat.Send(r.Context(), uid, sessionID, req.Message, onDelta)
	if err != nil {
		if started {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Chat stream interrupted",
				log.FieldSessionID, sessionID, log.FieldError, err)
			return
		}
		writeError(w, r, log.OpChat, err)
		return
	}
	if !started {
		// empty answer
		w.Header().Set(SessionHeader, sessionID)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleForgetChat(w http.ResponseWriter, r *http.Request, uid string) {
	if s.chat == nil {
		ErrorResponse(http.StatusServiceUnavailable, errChatDisabled.Error()).Write(w)
		return
	}
	if err := s.chat.Forget(r.Context(), uid, r.PathValue("session")); err != nil {
		writeError(w, r, "forget_chat", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
