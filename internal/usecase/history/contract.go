package history

import (
	"context"

	domchat "github.com/lodgeit-ai/ragchat/internal/domain/chat"
	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
)

// Exchange is one completed question/answer round trip, including the
// routing index used and the sources cited by the answer.
type Exchange struct {
	Question string
	Answer   string
	Index    label.Label
	Sources  []document.Document
}

// Repository defines the storage contract for chat history.
type Repository interface {
	CreateSession(ctx context.Context, s domchat.Session) error
	UpdateSession(ctx context.Context, s domchat.Session) error
	GetSession(ctx context.Context, userID, sessionID string) (domchat.Session, error)
	ListSessions(ctx context.Context, userID string) ([]domchat.Session, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	AppendMessage(ctx context.Context, sessionID string, m domchat.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]domchat.Message, error)
}
