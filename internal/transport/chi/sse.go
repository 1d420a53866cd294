package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lodgeit-ai/ragchat/internal/domain/document"
)

// sseEvent is the wire shape of a single stream event.
type sseEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// sseSink streams chat events to the client and accumulates the answer text
// for transcript recording. Implements chat.StreamSink.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	answer  strings.Builder
}

// newSSESink prepares a sink. Headers are written lazily on the first event,
// so failures before any output can still produce a JSON error response.
func newSSESink(w http.ResponseWriter) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	return &sseSink{w: w, flusher: flusher}, nil
}

func (s *sseSink) writeEvent(ev sseEvent) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Sources implements chat.StreamSink. Always the first event on the wire.
func (s *sseSink) Sources(docs []document.Document) error {
	return s.writeEvent(sseEvent{Type: "sources", Data: sourcesToDTO(docs)})
}

// Fragment implements chat.StreamSink.
func (s *sseSink) Fragment(text string) error {
	s.answer.WriteString(text)
	return s.writeEvent(sseEvent{Type: "chunk", Data: text})
}

// Error emits a terminal error event. Only valid after the stream started.
func (s *sseSink) Error(message string) {
	_ = s.writeEvent(sseEvent{Type: "error", Data: message})
}

// Done closes the stream with the final event.
func (s *sseSink) Done() {
	_ = s.writeEvent(sseEvent{Type: "done"})
}

// Started reports whether any event reached the wire.
func (s *sseSink) Started() bool { return s.started }

// Answer returns the accumulated fragment text.
func (s *sseSink) Answer() string { return s.answer.String() }
