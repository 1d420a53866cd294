package history

import (
	"encoding/json"
	"fmt"

	domchat "github.com/lodgeit-ai/ragchat/internal/domain/chat"
	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
)

// sessionDTO is the storage representation of a chat session.
type sessionDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// messageDTO is the storage representation of a transcript entry. IndexUsed
// and Sources are set on assistant turns only.
type messageDTO struct {
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	IndexUsed string      `json:"index_used,omitempty"`
	Sources   []sourceDTO `json:"sources,omitempty"`
	CreatedAt int64       `json:"created_at"`
}

// sourceDTO is the storage representation of a cited document.
type sourceDTO struct {
	Title     string  `json:"title"`
	Hierarchy string  `json:"hierarchy"`
	Content   string  `json:"content"`
	URL       string  `json:"url,omitempty"`
	Score     float64 `json:"score"`
}

func sessionToJSON(s domchat.Session) ([]byte, error) {
	data, err := json.Marshal(sessionDTO{
		ID:        s.ID(),
		UserID:    s.UserID(),
		Title:     s.Title(),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func sessionFromJSON(data []byte) (domchat.Session, error) {
	var dto sessionDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return domchat.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return domchat.ReconstructSession(dto.ID, dto.UserID, dto.Title, dto.CreatedAt, dto.UpdatedAt), nil
}

func messageToJSON(m domchat.Message) ([]byte, error) {
	var sources []sourceDTO
	for _, d := range m.Sources() {
		sources = append(sources, sourceDTO{
			Title:     d.Title(),
			Hierarchy: d.Hierarchy(),
			Content:   d.Content(),
			URL:       d.URL(),
			Score:     d.Score(),
		})
	}
	data, err := json.Marshal(messageDTO{
		Role:      string(m.Role()),
		Content:   m.Content(),
		IndexUsed: m.Index().String(),
		Sources:   sources,
		CreatedAt: m.CreatedAt(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

func messageFromJSON(data []byte) (domchat.Message, error) {
	var dto messageDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return domchat.Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	var sources []document.Document
	for _, s := range dto.Sources {
		sources = append(sources, document.New(s.Title, s.Hierarchy, s.Content, s.URL, s.Score))
	}
	return domchat.ReconstructMessage(
		domchat.Role(dto.Role), dto.Content, label.Label(dto.IndexUsed), sources, dto.CreatedAt,
	), nil
}
