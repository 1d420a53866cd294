package chat

import (
	"context"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/prompt"
)

// Classifier routes a query to a knowledge-domain label. Implementations
// absorb transport failures: a failed or unrecognized classification comes
// back as a Fallback result, never as an error.
type Classifier interface {
	Classify(ctx context.Context, query string) domain.Classification
}

// Retriever fetches scored documents from a search index. Results are
// ordered by non-increasing relevance score.
type Retriever interface {
	Search(ctx context.Context, index, query string, hierarchyFilters []string, limit int) ([]document.Document, error)
}

// Generator produces an answer from a composed prompt, either as a single
// completion or as a cancellable fragment stream.
type Generator interface {
	Generate(ctx context.Context, req prompt.Request) (string, error)
	GenerateStream(ctx context.Context, req prompt.Request) (domain.FragmentStream, error)
}

// StreamSink receives streaming output in delivery order: Sources exactly
// once before the first fragment, then one Fragment call per upstream
// fragment. A sink error aborts the stream and propagates cancellation to
// the generator.
type StreamSink interface {
	Sources(docs []document.Document) error
	Fragment(text string) error
}
