package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finpilot/internal/ai"
	"finpilot/internal/cache"
	"finpilot/internal/core"
	"finpilot/internal/log"
)

// DefaultHistoryLimit is the number of messages kept per chat session.
const DefaultHistoryLimit = 20

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrNoSession    = errors.New("missing session id")
)

// ContextSource renders a user's financial context as JSON.
type ContextSource interface {
	BuildJSON(ctx context.Context, userID string) (string, error)
}

// ChatService answers questions with the user's financial context attached.
type ChatService struct {
	contexts     ContextSource
	ai           ai.Client
	sessions     cache.SessionStore
	historyLimit int
	logger       *log.Logger
}

func NewChatService(contexts ContextSource, client ai.Client, sessions cache.SessionStore, historyLimit int) *ChatService {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ChatService{
		contexts:     contexts,
		ai:           client,
		sessions:     sessions,
		historyLimit: historyLimit,
		logger:       log.Default(log.ComponentChat),
	}
}

// Send appends message to the session, streams the answer through onDelta and
// stores both turns. The history is left untouched when the model call fails.
func (s *ChatService) Send(ctx context.Context, userID, sessionID, message string, onDelta func(string) error) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if sessionID == "" {
		return "", ErrNoSession
	}

	contextJSON, err := s.contexts.BuildJSON(ctx, userID)
	if err != nil {
		return "", err
	}

	key := cache.SessionKey(userID, sessionID)
	history, err := s.sessions.Load(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	history = append(history, core.ChatMessage{Role: core.RoleUser, Content: message})

	answer, err := s.ai.StreamChat(ctx, ai.ChatSystemPrompt(contextJSON), history, onDelta)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	history = append(history, core.ChatMessage{Role: core.RoleAssistant, Content: answer})
	history = trimHistory(history, s.historyLimit)
	if err := s.sessions.Save(ctx, key, history); err != nil {
		// the answer was already streamed
		s.logger.WarnContext(ctx, "Failed to save chat session",
			log.FieldUserID, userID, log.FieldSessionID, sessionID, log.FieldError, err)
	}

	s.logger.DebugContext(ctx, "Chat turn completed",
		log.FieldUserID, userID,
		log.FieldSessionID, sessionID,
		"history_len", len(history))
	return answer, nil
}

// Forget drops a session's history.
func (s *ChatService) Forget(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	return s.sessions.Delete(ctx, cache.SessionKey(userID, sessionID))
}

// trimHistory keeps the newest limit messages.
func trimHistory(history []core.ChatMessage, limit int) []core.ChatMessage {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return append([]core.ChatMessage(nil), history[len(history)-limit:]...)
}
