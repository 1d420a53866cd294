package history

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	domchat "github.com/lodgeit-ai/ragchat/internal/domain/chat"
	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
)

func exchange(question, answer string) Exchange {
	return Exchange{Question: question, Answer: answer, Index: label.HelpGuide}
}

// --- Mocks ---

type mockRepo struct {
	sessions map[string]domchat.Session // sessionID -> session
	messages map[string][]domchat.Message
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		sessions: map[string]domchat.Session{},
		messages: map[string][]domchat.Message{},
	}
}

func (m *mockRepo) CreateSession(_ context.Context, s domchat.Session) error {
	m.sessions[s.ID()] = s
	return nil
}

func (m *mockRepo) UpdateSession(_ context.Context, s domchat.Session) error {
	m.sessions[s.ID()] = s
	return nil
}

func (m *mockRepo) GetSession(_ context.Context, userID, sessionID string) (domchat.Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID() != userID {
		return domchat.Session{}, domain.ErrChatNotFound
	}
	return s, nil
}

func (m *mockRepo) ListSessions(_ context.Context, userID string) ([]domchat.Session, error) {
	var out []domchat.Session
	for _, s := range m.sessions {
		if s.UserID() == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) DeleteSession(_ context.Context, userID, sessionID string) error {
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID() != userID {
		return domain.ErrChatNotFound
	}
	delete(m.sessions, sessionID)
	delete(m.messages, sessionID)
	return nil
}

func (m *mockRepo) AppendMessage(_ context.Context, sessionID string, msg domchat.Message) error {
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	return nil
}

func (m *mockRepo) ListMessages(_ context.Context, sessionID string) ([]domchat.Message, error) {
	return m.messages[sessionID], nil
}

// --- Tests ---

func TestCreate_AssignsIDAndDefaultTitle(t *testing.T) {
	svc := New(newMockRepo())

	s, err := svc.Create(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID() == "" {
		t.Error("expected generated session id")
	}
	if s.Title() != domchat.DefaultTitle {
		t.Errorf("title: got %q, want %q", s.Title(), domchat.DefaultTitle)
	}
}

func TestRecord_FirstExchangeSetsTitle(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)
	ctx := context.Background()

	s, err := svc.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Record(ctx, "user-1", s.ID(), exchange("How do I lodge a company return?", "Like this ...")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got := repo.sessions[s.ID()]
	if got.Title() != "How do I lodge a company return?" {
		t.Errorf("title: got %q", got.Title())
	}

	msgs := repo.messages[s.ID()]
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(msgs))
	}
	if msgs[0].Role() != domchat.RoleUser || msgs[1].Role() != domchat.RoleAssistant {
		t.Errorf("roles: got %s, %s", msgs[0].Role(), msgs[1].Role())
	}
}

func TestRecord_AssistantTurnKeepsIndexAndSources(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)
	ctx := context.Background()

	s, err := svc.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	docs := []document.Document{
		document.New("Plans", "Pricing > Plans", "body", "https://x/plans", 0.9),
	}
	err = svc.Record(ctx, "user-1", s.ID(), Exchange{
		Question: "How much does it cost?",
		Answer:   "Plans start at $10.",
		Index:    label.Pricing,
		Sources:  docs,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	msgs := repo.messages[s.ID()]
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(msgs))
	}

	user, assistant := msgs[0], msgs[1]
	if user.Index() != "" || len(user.Sources()) != 0 {
		t.Errorf("user turn carries provenance: index %q, %d sources", user.Index(), len(user.Sources()))
	}
	if assistant.Index() != label.Pricing {
		t.Errorf("assistant index: got %q, want %q", assistant.Index(), label.Pricing)
	}
	if len(assistant.Sources()) != 1 || assistant.Sources()[0].Title() != "Plans" {
		t.Errorf("assistant sources: got %+v", assistant.Sources())
	}
}

func TestRecord_TitleTruncatedAt50Runes(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)
	ctx := context.Background()

	s, err := svc.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	long := strings.Repeat("a", 80)
	if err := svc.Record(ctx, "user-1", s.ID(), exchange(long, "answer")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got := repo.sessions[s.ID()]
	if len([]rune(got.Title())) != domchat.TitleMaxLen {
		t.Errorf("title length: got %d, want %d", len([]rune(got.Title())), domchat.TitleMaxLen)
	}
}

func TestRecord_SecondExchangeKeepsTitle(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)
	ctx := context.Background()

	s, err := svc.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Record(ctx, "user-1", s.ID(), exchange("first question", "first answer")); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if err := svc.Record(ctx, "user-1", s.ID(), exchange("second question", "second answer")); err != nil {
		t.Fatalf("second Record: %v", err)
	}

	if got := repo.sessions[s.ID()].Title(); got != "first question" {
		t.Errorf("title changed on second exchange: %q", got)
	}
	if len(repo.messages[s.ID()]) != 4 {
		t.Errorf("messages: got %d, want 4", len(repo.messages[s.ID()]))
	}
}

func TestRecord_EmptyAnswerStoresOnlyUserTurn(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)
	ctx := context.Background()

	s, err := svc.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Record(ctx, "user-1", s.ID(), exchange("question", "")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(repo.messages[s.ID()]) != 1 {
		t.Errorf("messages: got %d, want 1", len(repo.messages[s.ID()]))
	}
}

func TestRecord_UnknownSession(t *testing.T) {
	svc := New(newMockRepo())

	err := svc.Record(context.Background(), "user-1", "missing", exchange("q", "a"))
	if !errors.Is(err, domain.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestMessages_ChecksOwnership(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)
	ctx := context.Background()

	s, err := svc.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Record(ctx, "user-1", s.ID(), exchange("q", "a")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if _, err := svc.Messages(ctx, "user-2", s.ID()); !errors.Is(err, domain.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound for foreign session, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)
	ctx := context.Background()

	s, err := svc.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, "user-1", s.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, "user-1", s.ID()); !errors.Is(err, domain.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound after delete, got %v", err)
	}
}
