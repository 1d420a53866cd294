// Package history persists chat sessions and their messages.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/lodgeit-ai/ragchat/internal/db"
	"github.com/lodgeit-ai/ragchat/internal/domain"
	domchat "github.com/lodgeit-ai/ragchat/internal/domain/chat"
)

// store is the consumer interface for chat history (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key, value string) error
}

// Repo implements usecase/history.Repository.
//
// Key layout:
//
//	<prefix>chat:<userID>:<sessionID>  session JSON
//	<prefix>chats:<userID>             list of session ids, insertion order
//	<prefix>chatmsg:<sessionID>        list of message JSON, insertion order
type Repo struct {
	store  store
	prefix string
}

// New creates a history repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// CreateSession stores a session and registers it in the owner's index list.
func (r *Repo) CreateSession(ctx context.Context, s domchat.Session) error {
	data, err := sessionToJSON(s)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.sessionKey(s.UserID(), s.ID()), data); err != nil {
		return fmt.Errorf("set session %s: %w", s.ID(), err)
	}
	if err := r.store.RPush(ctx, r.indexKey(s.UserID()), s.ID()); err != nil {
		return fmt.Errorf("rpush session index: %w", err)
	}
	return nil
}

// UpdateSession overwrites a stored session.
func (r *Repo) UpdateSession(ctx context.Context, s domchat.Session) error {
	data, err := sessionToJSON(s)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.sessionKey(s.UserID(), s.ID()), data); err != nil {
		return fmt.Errorf("update session %s: %w", s.ID(), err)
	}
	return nil
}

// GetSession retrieves a session owned by the given user.
func (r *Repo) GetSession(ctx context.Context, userID, sessionID string) (domchat.Session, error) {
	data, err := r.store.Get(ctx, r.sessionKey(userID, sessionID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domchat.Session{}, domain.ErrChatNotFound
		}
		return domchat.Session{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return sessionFromJSON(data)
}

// ListSessions returns all sessions of a user in creation order.
// Index entries whose session key is gone are skipped.
func (r *Repo) ListSessions(ctx context.Context, userID string) ([]domchat.Session, error) {
	ids, err := r.store.LRange(ctx, r.indexKey(userID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("lrange session index: %w", err)
	}

	sessions := make([]domchat.Session, 0, len(ids))
	for _, id := range ids {
		data, err := r.store.Get(ctx, r.sessionKey(userID, id))
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get session %s: %w", id, err)
		}
		s, err := sessionFromJSON(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// DeleteSession removes a session, its index entry and its messages.
func (r *Repo) DeleteSession(ctx context.Context, userID, sessionID string) error {
	// Ownership check: the session key embeds the user id.
	if _, err := r.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}

	if err := r.store.Del(ctx, r.sessionKey(userID, sessionID)); err != nil {
		return fmt.Errorf("del session %s: %w", sessionID, err)
	}
	if err := r.store.LRem(ctx, r.indexKey(userID), sessionID); err != nil {
		return fmt.Errorf("lrem session index: %w", err)
	}
	if err := r.store.Del(ctx, r.messagesKey(sessionID)); err != nil {
		return fmt.Errorf("del messages %s: %w", sessionID, err)
	}
	return nil
}

// AppendMessage adds a message to the session transcript.
func (r *Repo) AppendMessage(ctx context.Context, sessionID string, m domchat.Message) error {
	data, err := messageToJSON(m)
	if err != nil {
		return err
	}
	if err := r.store.RPush(ctx, r.messagesKey(sessionID), string(data)); err != nil {
		return fmt.Errorf("rpush message: %w", err)
	}
	return nil
}

// ListMessages returns the session transcript in insertion order.
func (r *Repo) ListMessages(ctx context.Context, sessionID string) ([]domchat.Message, error) {
	items, err := r.store.LRange(ctx, r.messagesKey(sessionID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("lrange messages: %w", err)
	}

	messages := make([]domchat.Message, 0, len(items))
	for _, item := range items {
		m, err := messageFromJSON([]byte(item))
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (r *Repo) sessionKey(userID, sessionID string) string {
	return fmt.Sprintf("%schat:%s:%s", r.prefix, userID, sessionID)
}

func (r *Repo) indexKey(userID string) string {
	return fmt.Sprintf("%schats:%s", r.prefix, userID)
}

func (r *Repo) messagesKey(sessionID string) string {
	return fmt.Sprintf("%schatmsg:%s", r.prefix, sessionID)
}
