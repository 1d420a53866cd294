package openai

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/metrics"
	"github.com/lodgeit-ai/ragchat/internal/prompt"
)

// Generator produces answers with an OpenAI-compatible chat model.
type Generator struct {
	client        *openai.Client
	model         string
	timeout       time.Duration
	streamTimeout time.Duration
	maxTokens     int
	logger        *zap.Logger
}

// GeneratorConfig holds the answer model settings.
type GeneratorConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	StreamTimeout time.Duration
	MaxTokens     int
	Logger        *zap.Logger
}

// NewGenerator creates an answer generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Generator{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.Model,
		timeout:       cfg.Timeout,
		streamTimeout: cfg.StreamTimeout,
		maxTokens:     cfg.MaxTokens,
		logger:        cfg.Logger,
	}
}

// The assembled prompt already carries the context and the user question,
// so it travels as a single user message.
func (g *Generator) request(req prompt.Request) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.SystemPrompt()},
		},
	}
}

// Generate implements chat.Generator in buffered mode.
// A single retry covers transient upstream failures.
func (g *Generator) Generate(ctx context.Context, req prompt.Request) (string, error) {
	start := time.Now()

	answer, err := g.generateOnce(ctx, req)
	if err != nil && domain.IsTransient(err) && ctx.Err() == nil {
		g.logger.Warn("generation failed, retrying once", zap.Error(err))
		answer, err = g.generateOnce(ctx, req)
	}

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "buffered", "error").Inc()
		return "", err
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "buffered", "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.model, "buffered").Observe(time.Since(start).Seconds())
	return answer, nil
}

func (g *Generator) generateOnce(ctx context.Context, req prompt.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, g.request(req))
	if err != nil {
		return "", wrapAPIError("generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", wrapAPIError("generate", errors.New("empty completion"))
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream implements chat.Generator in streaming mode.
// A single retry covers transient failures while opening the stream;
// mid-stream failures are not retried.
func (g *Generator) GenerateStream(ctx context.Context, req prompt.Request) (domain.FragmentStream, error) {
	stream, err := g.openStream(ctx, req)
	if err != nil && domain.IsTransient(err) && ctx.Err() == nil {
		g.logger.Warn("stream open failed, retrying once", zap.Error(err))
		stream, err = g.openStream(ctx, req)
	}
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "stream", "error").Inc()
		return nil, err
	}
	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "stream", "success").Inc()
	return stream, nil
}

func (g *Generator) openStream(ctx context.Context, req prompt.Request) (*chatStream, error) {
	// The stream outlives this call; cancel travels with the wrapper.
	ctx, cancel := context.WithTimeout(ctx, g.streamTimeout)

	chatReq := g.request(req)
	chatReq.Stream = true

	stream, err := g.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		cancel()
		return nil, wrapAPIError("open stream", err)
	}
	return &chatStream{stream: stream, cancel: cancel, model: g.model, start: time.Now()}, nil
}

// chatStream adapts the SDK stream to domain.FragmentStream.
type chatStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
	model  string
	start  time.Time
}

// Recv returns the next non-empty content delta, io.EOF on clean end.
func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				metrics.GenerationRequestDuration.WithLabelValues(s.model, "stream").
					Observe(time.Since(s.start).Seconds())
				return "", io.EOF
			}
			return "", wrapAPIError("stream recv", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		metrics.GenerationFragmentsTotal.WithLabelValues(s.model).Inc()
		return delta, nil
	}
}

// Close cancels the upstream request and releases the stream.
func (s *chatStream) Close() {
	s.cancel()
	_ = s.stream.Close()
}
