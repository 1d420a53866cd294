// Package history manages chat sessions and transcripts.
package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	domchat "github.com/lodgeit-ai/ragchat/internal/domain/chat"
)

// Service handles chat session CRUD and transcript recording.
type Service struct {
	repo Repository
}

// New creates a history service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create starts a new session for the user.
func (s *Service) Create(ctx context.Context, userID string) (domchat.Session, error) {
	session, err := domchat.NewSession(uuid.NewString(), userID)
	if err != nil {
		return domchat.Session{}, fmt.Errorf("new session: %w", err)
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return domchat.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Get retrieves a session owned by the user.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (domchat.Session, error) {
	session, err := s.repo.GetSession(ctx, userID, sessionID)
	if err != nil {
		return domchat.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// List returns all sessions of the user.
func (s *Service) List(ctx context.Context, userID string) ([]domchat.Session, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Messages returns the transcript of a session owned by the user.
func (s *Service) Messages(ctx context.Context, userID, sessionID string) ([]domchat.Message, error) {
	if _, err := s.repo.GetSession(ctx, userID, sessionID); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	messages, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// Delete removes a session and its transcript.
func (s *Service) Delete(ctx context.Context, userID, sessionID string) error {
	if err := s.repo.DeleteSession(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Record appends a user/assistant exchange to the transcript. The assistant
// turn keeps the index the query was routed to and the cited sources. On the
// first exchange the session title is derived from the user message.
func (s *Service) Record(ctx context.Context, userID, sessionID string, ex Exchange) error {
	session, err := s.repo.GetSession(ctx, userID, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	userMsg, err := domchat.NewMessage(domchat.RoleUser, ex.Question)
	if err != nil {
		return fmt.Errorf("user message: %w", err)
	}
	if err := s.repo.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}

	if ex.Answer != "" {
		assistantMsg, err := domchat.NewAssistantMessage(ex.Answer, ex.Index, ex.Sources)
		if err != nil {
			return fmt.Errorf("assistant message: %w", err)
		}
		if err := s.repo.AppendMessage(ctx, sessionID, assistantMsg); err != nil {
			return fmt.Errorf("append assistant message: %w", err)
		}
	}

	if session.HasDefaultTitle() {
		session = session.WithTitle(ex.Question)
	} else {
		session = session.Touched()
	}
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}
