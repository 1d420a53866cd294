package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lodgeit-ai/ragchat/internal/catalog"
	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
	"github.com/lodgeit-ai/ragchat/internal/domain/query"
	"github.com/lodgeit-ai/ragchat/internal/prompt"
)

// --- Mocks ---

type mockClassifier struct {
	result domain.Classification
	calls  int
}

func (m *mockClassifier) Classify(_ context.Context, _ string) domain.Classification {
	m.calls++
	return m.result
}

type mockRetriever struct {
	docs      []document.Document
	err       error
	calls     int
	lastIndex string
	lastLimit int
}

func (m *mockRetriever) Search(
	_ context.Context, index, _ string, _ []string, limit int,
) ([]document.Document, error) {
	m.calls++
	m.lastIndex = index
	m.lastLimit = limit
	return m.docs, m.err
}

type mockGenerator struct {
	answer    string
	err       error
	fragments []string
	streamErr error // returned after fragments are exhausted, instead of io.EOF
	openErr   error
	calls     int
}

func (m *mockGenerator) Generate(_ context.Context, _ prompt.Request) (string, error) {
	m.calls++
	return m.answer, m.err
}

func (m *mockGenerator) GenerateStream(_ context.Context, _ prompt.Request) (domain.FragmentStream, error) {
	m.calls++
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &mockStream{fragments: m.fragments, terminal: m.streamErr}, nil
}

type mockStream struct {
	fragments []string
	terminal  error
	recvCalls int
	closed    bool
}

func (s *mockStream) Recv() (string, error) {
	s.recvCalls++
	if len(s.fragments) == 0 {
		if s.terminal != nil {
			return "", s.terminal
		}
		return "", io.EOF
	}
	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *mockStream) Close() { s.closed = true }

// recordingSink records the delivery order and can abort after a set number
// of fragments to simulate a client disconnect.
type recordingSink struct {
	sourcesCalls  int
	sourcesAt     int // value of fragment count when Sources was delivered
	fragments     []string
	failAfter     int // 0 = never fail
	lastSources   []document.Document
	cancelOnAbort context.CancelFunc
}

func (s *recordingSink) Sources(docs []document.Document) error {
	s.sourcesCalls++
	s.sourcesAt = len(s.fragments)
	s.lastSources = docs
	return nil
}

func (s *recordingSink) Fragment(text string) error {
	if s.failAfter > 0 && len(s.fragments) >= s.failAfter {
		if s.cancelOnAbort != nil {
			s.cancelOnAbort()
		}
		return errors.New("client disconnected")
	}
	s.fragments = append(s.fragments, text)
	return nil
}

func newService(c *mockClassifier, r *mockRetriever, g *mockGenerator) *Service {
	return New(c, r, g, catalog.MustNew(label.HelpGuide), prompt.NewBuilder(0), zap.NewNop())
}

func mustQuery(t *testing.T, message, override string, stream bool) query.Query {
	t.Helper()
	q, err := query.New(message, nil, override, 4, stream)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return q
}

func docsFixture() []document.Document {
	return []document.Document{
		document.New("Pricing Plans", "Pricing", "Plan details", "https://example.com/p", 0.92),
		document.New("Comparison", "Pricing > Plans", "Plan comparison table", "", 0.81),
	}
}

// --- Buffered mode ---

func TestAnswer_ClassifiesAndRoutes(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.Pricing}}
	ret := &mockRetriever{docs: docsFixture()}
	gen := &mockGenerator{answer: "LodgeiT costs ..."}
	svc := newService(cls, ret, gen)

	resp, err := svc.Answer(context.Background(), mustQuery(t, "How much does LodgeiT cost?", "", false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Index != label.Pricing {
		t.Errorf("classified index: got %s, want %s", resp.Index, label.Pricing)
	}
	if ret.lastIndex != "lodgeit-pricing" {
		t.Errorf("search index: got %s, want lodgeit-pricing", ret.lastIndex)
	}
	if resp.Answer == "" {
		t.Error("expected non-empty answer")
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources: got %d, want 2", len(resp.Sources))
	}
}

func TestAnswer_OverrideSkipsClassification(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.Website}}
	ret := &mockRetriever{}
	gen := &mockGenerator{answer: "ok"}
	svc := newService(cls, ret, gen)

	resp, err := svc.Answer(context.Background(), mustQuery(t, "what is lodgeit", "taxgenii", false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.calls != 0 {
		t.Errorf("classifier calls: got %d, want 0", cls.calls)
	}
	if resp.Index != label.TaxGenii {
		t.Errorf("index: got %s, want %s", resp.Index, label.TaxGenii)
	}
	if ret.lastIndex != "ato_complete_data2" {
		t.Errorf("search index: got %s, want ato_complete_data2", ret.lastIndex)
	}
}

func TestAnswer_ClassifierFallbackStillSucceeds(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{
		Label: label.Default, Fallback: true, Reason: "timeout",
	}}
	ret := &mockRetriever{docs: docsFixture()}
	gen := &mockGenerator{answer: "fallback answer"}
	svc := newService(cls, ret, gen)

	resp, err := svc.Answer(context.Background(), mustQuery(t, "anything", "", false))
	if err != nil {
		t.Fatalf("fallback must not surface as error, got: %v", err)
	}
	if resp.Index != label.HelpGuide {
		t.Errorf("index: got %s, want %s", resp.Index, label.HelpGuide)
	}
	if ret.lastIndex != "lodgeit-help-guides" {
		t.Errorf("search index: got %s, want lodgeit-help-guides", ret.lastIndex)
	}
}

func TestAnswer_EmptyRetrievalStillAnswers(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.HelpGuide}}
	ret := &mockRetriever{docs: nil}
	gen := &mockGenerator{answer: "general guidance"}
	svc := newService(cls, ret, gen)

	resp, err := svc.Answer(context.Background(), mustQuery(t, "obscure question", "", false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer == "" {
		t.Error("expected non-empty answer despite empty retrieval")
	}
	if resp.Sources == nil {
		t.Error("sources must be an empty slice, not nil")
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources: got %d, want 0", len(resp.Sources))
	}
	if gen.calls != 1 {
		t.Errorf("generator calls: got %d, want 1", gen.calls)
	}
}

func TestAnswer_RetrievalErrorSurfaces(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.HelpGuide}}
	ret := &mockRetriever{err: domain.ErrUpstreamUnavailable}
	gen := &mockGenerator{}
	svc := newService(cls, ret, gen)

	_, err := svc.Answer(context.Background(), mustQuery(t, "q", "", false))
	if !errors.Is(err, domain.ErrRetrievalFailed) {
		t.Fatalf("expected ErrRetrievalFailed, got %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator must not be called after retrieval failure, got %d calls", gen.calls)
	}
}

func TestAnswer_GenerationErrorSurfaces(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.HelpGuide}}
	ret := &mockRetriever{docs: docsFixture()}
	gen := &mockGenerator{err: domain.ErrUpstreamTimeout}
	svc := newService(cls, ret, gen)

	_, err := svc.Answer(context.Background(), mustQuery(t, "q", "", false))
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

// --- Streaming mode ---

func TestAnswerStream_SourcesFirstThenFragments(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.Pricing}}
	ret := &mockRetriever{docs: docsFixture()}
	gen := &mockGenerator{fragments: []string{"Lodge", "iT ", "costs"}}
	svc := newService(cls, ret, gen)

	sink := &recordingSink{}
	result, err := svc.AnswerStream(context.Background(), mustQuery(t, "cost?", "", true), sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sink.sourcesCalls != 1 {
		t.Fatalf("sources delivered %d times, want 1", sink.sourcesCalls)
	}
	if sink.sourcesAt != 0 {
		t.Error("sources must be delivered before the first fragment")
	}
	if got := strings.Join(sink.fragments, ""); got != "LodgeiT costs" {
		t.Errorf("fragments out of order: got %q", got)
	}
	if result.Index != label.Pricing {
		t.Errorf("index: got %s, want %s", result.Index, label.Pricing)
	}
	if len(sink.lastSources) != 2 {
		t.Errorf("sources: got %d, want 2", len(sink.lastSources))
	}
}

func TestAnswerStream_SinkAbortStopsUpstreamRecv(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.HelpGuide}}
	ret := &mockRetriever{docs: docsFixture()}
	gen := &mockGenerator{fragments: []string{"a", "b", "c", "d", "e"}}
	svc := newService(cls, ret, gen)

	var stream *mockStream
	genWithCapture := &streamCapturingGenerator{inner: gen, captured: &stream}
	svc = New(cls, ret, genWithCapture, catalog.MustNew(label.HelpGuide), prompt.NewBuilder(0), zap.NewNop())

	sink := &recordingSink{failAfter: 2}
	_, err := svc.AnswerStream(context.Background(), mustQuery(t, "q", "", true), sink)
	if err == nil {
		t.Fatal("expected error after sink abort")
	}

	// Two delivered fragments means three Recv calls at most: the third
	// fragment is fetched but its delivery fails. Nothing beyond that.
	if stream.recvCalls > 3 {
		t.Errorf("upstream Recv called %d times after client disconnect, want <= 3", stream.recvCalls)
	}
	if !stream.closed {
		t.Error("upstream stream must be closed after abort")
	}
}

func TestAnswerStream_ContextCancelStopsUpstreamRecv(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.HelpGuide}}
	ret := &mockRetriever{docs: docsFixture()}
	gen := &mockGenerator{fragments: []string{"a", "b", "c", "d", "e"}}

	var stream *mockStream
	genWithCapture := &streamCapturingGenerator{inner: gen, captured: &stream}
	svc := New(cls, ret, genWithCapture, catalog.MustNew(label.HelpGuide), prompt.NewBuilder(0), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{failAfter: 2, cancelOnAbort: cancel}
	_, err := svc.AnswerStream(ctx, mustQuery(t, "q", "", true), sink)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if !stream.closed {
		t.Error("upstream stream must be closed after cancellation")
	}
}

func TestAnswerStream_MidStreamFailureReported(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.HelpGuide}}
	ret := &mockRetriever{docs: docsFixture()}
	gen := &mockGenerator{
		fragments: []string{"partial "},
		streamErr: domain.ErrUpstreamUnavailable,
	}
	svc := newService(cls, ret, gen)

	sink := &recordingSink{}
	_, err := svc.AnswerStream(context.Background(), mustQuery(t, "q", "", true), sink)
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed for mid-stream failure, got %v", err)
	}
	if len(sink.fragments) != 1 {
		t.Errorf("fragments before failure: got %d, want 1", len(sink.fragments))
	}
}

func TestAnswerStream_EmptyRetrieval_EmptySourcesDelivered(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.HelpGuide}}
	ret := &mockRetriever{docs: nil}
	gen := &mockGenerator{fragments: []string{"answer"}}
	svc := newService(cls, ret, gen)

	sink := &recordingSink{}
	_, err := svc.AnswerStream(context.Background(), mustQuery(t, "q", "", true), sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.sourcesCalls != 1 {
		t.Fatal("sources event must still be delivered when retrieval is empty")
	}
	if sink.lastSources == nil {
		t.Error("sources must be an empty slice, not nil")
	}
}

// --- Classification-only ---

func TestClassify_DoesNotTouchRetrievalOrGeneration(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: label.Website}}
	ret := &mockRetriever{}
	gen := &mockGenerator{}
	svc := newService(cls, ret, gen)

	c := svc.Classify(context.Background(), "what does lodgeit do")
	if c.Label != label.Website {
		t.Errorf("label: got %s, want %s", c.Label, label.Website)
	}
	if ret.calls != 0 || gen.calls != 0 {
		t.Errorf("retrieval/generation must not run: got %d/%d calls", ret.calls, gen.calls)
	}
}

// streamCapturingGenerator exposes the mock stream so tests can assert on
// Recv call counts after the orchestrator returns.
type streamCapturingGenerator struct {
	inner    *mockGenerator
	captured **mockStream
}

func (g *streamCapturingGenerator) Generate(ctx context.Context, req prompt.Request) (string, error) {
	return g.inner.Generate(ctx, req)
}

func (g *streamCapturingGenerator) GenerateStream(ctx context.Context, req prompt.Request) (domain.FragmentStream, error) {
	s, err := g.inner.GenerateStream(ctx, req)
	if err != nil {
		return nil, err
	}
	*g.captured = s.(*mockStream)
	return s, nil
}
