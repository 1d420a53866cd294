// Package chat orchestrates the RAG pipeline: classify (or honor an explicit
// override), resolve the target index, retrieve context documents, compose
// the prompt, and generate the answer in buffered or streaming mode.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/lodgeit-ai/ragchat/internal/catalog"
	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
	"github.com/lodgeit-ai/ragchat/internal/domain/query"
	"github.com/lodgeit-ai/ragchat/internal/prompt"
)

// Response is a completed buffered answer.
type Response struct {
	Answer  string
	Sources []document.Document
	Index   label.Label
}

// StreamResult describes a finished (or aborted) stream. The full answer
// text is not accumulated here; the sink sees every fragment and decides
// what to keep.
type StreamResult struct {
	Sources []document.Document
	Index   label.Label
}

// Service is the chat orchestrator. It holds no cross-request mutable state;
// concurrent requests need no coordination.
type Service struct {
	classifier Classifier
	retriever  Retriever
	generator  Generator
	catalog    *catalog.Catalog
	builder    *prompt.Builder
	logger     *zap.Logger
}

// New creates a chat orchestrator.
func New(
	classifier Classifier,
	retriever Retriever,
	generator Generator,
	cat *catalog.Catalog,
	builder *prompt.Builder,
	logger *zap.Logger,
) *Service {
	return &Service{
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		catalog:    cat,
		builder:    builder,
		logger:     logger,
	}
}

// Classify runs classification only, for the diagnostics endpoint. The
// retrieval and generation stages are not invoked.
func (s *Service) Classify(ctx context.Context, message string) domain.Classification {
	return s.classifier.Classify(ctx, message)
}

// Answer runs the full pipeline and blocks until the complete answer is
// available.
func (s *Service) Answer(ctx context.Context, q query.Query) (Response, error) {
	req, lbl, err := s.prepare(ctx, q)
	if err != nil {
		return Response{}, err
	}

	answer, err := s.generator.Generate(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	return Response{
		Answer:  answer,
		Sources: req.ContextDocuments(),
		Index:   lbl,
	}, nil
}

// AnswerStream runs the pipeline in streaming mode. Sources are delivered to
// the sink first, then fragments in upstream order, unbuffered. A sink error
// (client gone) or context cancellation stops consumption and closes the
// upstream stream. A mid-stream upstream failure is returned as
// ErrGenerationFailed so the transport can emit a terminal error marker.
func (s *Service) AnswerStream(ctx context.Context, q query.Query, sink StreamSink) (StreamResult, error) {
	req, lbl, err := s.prepare(ctx, q)
	if err != nil {
		return StreamResult{}, err
	}

	stream, err := s.generator.GenerateStream(ctx, req)
	if err != nil {
		return StreamResult{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	defer stream.Close()

	result := StreamResult{Sources: req.ContextDocuments(), Index: lbl}

	if err := sink.Sources(req.ContextDocuments()); err != nil {
		return result, fmt.Errorf("deliver sources: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("stream canceled: %w", err)
		}

		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}

		if err := sink.Fragment(fragment); err != nil {
			return result, fmt.Errorf("deliver fragment: %w", err)
		}
	}
}

// prepare runs the shared pipeline stages: route, resolve, retrieve, build.
func (s *Service) prepare(ctx context.Context, q query.Query) (prompt.Request, label.Label, error) {
	lbl := s.route(ctx, q)

	entry, err := s.catalog.Resolve(lbl)
	if err != nil {
		// Startup validation makes this unreachable; if it fires anyway it is
		// a programming error, not a runtime condition to recover from.
		return prompt.Request{}, "", err
	}

	docs, err := s.retriever.Search(ctx, entry.Index(), q.Message(), q.HierarchyFilters(), q.Limit())
	if err != nil {
		return prompt.Request{}, "", fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, err)
	}
	// Empty docs is valid: the builder emits a no-documents prompt variant
	// and the request still produces an answer.

	req := s.builder.Build(entry.Template(), docs, q.Message())
	return req, lbl, nil
}

// route picks the target label: an explicit recognized override bypasses
// classification entirely; otherwise the classifier decides, falling back to
// the configured default on failure.
func (s *Service) route(ctx context.Context, q query.Query) label.Label {
	if ovr := q.IndexOverride(); ovr != "" {
		return ovr
	}

	c := s.classifier.Classify(ctx, q.Message())
	if c.Fallback {
		s.logger.Warn("classification fell back to default",
			zap.String("label", c.Label.String()),
			zap.String("reason", c.Reason),
		)
	}
	if !c.Label.IsValid() {
		return s.catalog.DefaultLabel()
	}
	return c.Label
}
