// Package chat defines conversation aggregates.
package chat

import (
	"fmt"
	"time"

	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
)

// DefaultTitle is assigned to a session until its first user message arrives.
const DefaultTitle = "New Chat"

// TitleMaxLen bounds auto-generated titles derived from the first message.
const TitleMaxLen = 50

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid checks if the role is supported.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session is a conversation owned by a user (immutable value object).
type Session struct {
	id        string
	userID    string
	title     string
	createdAt int64
	updatedAt int64
}

// NewSession creates a session with the default title.
func NewSession(id, userID string) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("session id is required")
	}
	if userID == "" {
		return Session{}, fmt.Errorf("user id is required")
	}
	now := time.Now().UnixMilli()
	return Session{
		id:        id,
		userID:    userID,
		title:     DefaultTitle,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructSession creates a Session without validation (storage hydration).
func ReconstructSession(id, userID, title string, createdAt, updatedAt int64) Session {
	return Session{id: id, userID: userID, title: title, createdAt: createdAt, updatedAt: updatedAt}
}

// WithTitle returns a copy with the given title, truncated to TitleMaxLen runes.
func (s Session) WithTitle(title string) Session {
	runes := []rune(title)
	if len(runes) > TitleMaxLen {
		title = string(runes[:TitleMaxLen])
	}
	s.title = title
	s.updatedAt = time.Now().UnixMilli()
	return s
}

// Touched returns a copy with a refreshed update timestamp.
func (s Session) Touched() Session {
	s.updatedAt = time.Now().UnixMilli()
	return s
}

// HasDefaultTitle reports whether the session still carries the placeholder title.
func (s Session) HasDefaultTitle() bool { return s.title == DefaultTitle }

// ID returns the session identifier.
func (s Session) ID() string { return s.id }

// UserID returns the owning user's identifier.
func (s Session) UserID() string { return s.userID }

// Title returns the display title.
func (s Session) Title() string { return s.title }

// CreatedAt returns the creation timestamp (unix millis).
func (s Session) CreatedAt() int64 { return s.createdAt }

// UpdatedAt returns the last-activity timestamp (unix millis).
func (s Session) UpdatedAt() int64 { return s.updatedAt }

// Message is a single conversation turn. Assistant turns additionally carry
// the index that produced the answer and the documents cited by it.
type Message struct {
	role      Role
	content   string
	index     label.Label
	sources   []document.Document
	createdAt int64
}

// NewMessage validates and creates a user-authored Message.
func NewMessage(role Role, content string) (Message, error) {
	if !role.IsValid() {
		return Message{}, fmt.Errorf("invalid message role: %q", role)
	}
	if content == "" {
		return Message{}, fmt.Errorf("message content is required")
	}
	return Message{role: role, content: content, createdAt: time.Now().UnixMilli()}, nil
}

// NewAssistantMessage creates an assistant turn with its answer provenance:
// the index the query was routed to and the source documents cited.
func NewAssistantMessage(content string, index label.Label, sources []document.Document) (Message, error) {
	m, err := NewMessage(RoleAssistant, content)
	if err != nil {
		return Message{}, err
	}
	m.index = index
	m.sources = sources
	return m, nil
}

// ReconstructMessage creates a Message without validation (storage hydration).
func ReconstructMessage(role Role, content string, index label.Label, sources []document.Document, createdAt int64) Message {
	return Message{role: role, content: content, index: index, sources: sources, createdAt: createdAt}
}

// Role returns the message author role.
func (m Message) Role() Role { return m.role }

// Content returns the message text.
func (m Message) Content() string { return m.content }

// Index returns the routing label used to answer (assistant turns only).
func (m Message) Index() label.Label { return m.index }

// Sources returns the documents cited by the answer (assistant turns only).
func (m Message) Sources() []document.Document { return m.sources }

// CreatedAt returns the creation timestamp (unix millis).
func (m Message) CreatedAt() int64 { return m.createdAt }
