// Package query defines the validated chat query value object.
package query

import (
	"fmt"
	"strings"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
)

// Query parameter limits.
const (
	// MaxMessageLength is the maximum allowed query message length.
	MaxMessageLength = 4096
	DefaultLimit     = 4
	MaxLimit         = 20
)

// Query is a validated, immutable chat query.
type Query struct {
	message          string
	hierarchyFilters []string
	indexOverride    label.Label // empty = classify
	limit            int
	stream           bool
}

// New validates and normalizes chat query parameters.
// override must be empty or a recognized label; limit must be positive.
func New(message string, filters []string, override string, limit int, stream bool) (Query, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Query{}, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}
	if len(message) > MaxMessageLength {
		return Query{}, fmt.Errorf("%w: message too long (max %d chars)", domain.ErrInvalidRequest, MaxMessageLength)
	}
	if limit <= 0 {
		return Query{}, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidRequest, limit)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var ovr label.Label
	if override != "" {
		parsed, ok := label.Parse(override)
		if !ok {
			return Query{}, fmt.Errorf("%w: unrecognized index %q", domain.ErrInvalidRequest, override)
		}
		ovr = parsed
	}

	trimmed := make([]string, 0, len(filters))
	for _, f := range filters {
		if f = strings.TrimSpace(f); f != "" {
			trimmed = append(trimmed, f)
		}
	}

	return Query{
		message:          message,
		hierarchyFilters: trimmed,
		indexOverride:    ovr,
		limit:            limit,
		stream:           stream,
	}, nil
}

// Message returns the user query text.
func (q *Query) Message() string { return q.message }

// HierarchyFilters returns the taxonomy filter prefixes, possibly empty.
func (q *Query) HierarchyFilters() []string { return q.hierarchyFilters }

// IndexOverride returns the explicit routing label, or "" when the query
// should be classified.
func (q *Query) IndexOverride() label.Label { return q.indexOverride }

// Limit returns the maximum number of documents to retrieve.
func (q *Query) Limit() int { return q.limit }

// Stream reports whether the caller asked for a streamed answer.
func (q *Query) Stream() bool { return q.stream }
