// Package openai adapts OpenAI-compatible APIs for classification and generation.
package openai

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
	"github.com/lodgeit-ai/ragchat/internal/metrics"
)

const routingPrompt = `You are a query router for the LodgeiT support assistant.
Classify the user's question into exactly one of these categories:

- helpguide: how to use LodgeiT features, lodgment steps, software troubleshooting
- pricing: plans, subscriptions, costs, billing, payment
- taxgenii: Australian tax law, ATO rulings, tax concepts and rates
- website: what LodgeiT is, company information, general marketing questions

Reply with the single category name and nothing else.`

// Classifier routes queries to a knowledge-base label using a small chat model.
// It never fails: any error or unparseable reply yields the fallback label
// with the Fallback flag set.
type Classifier struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	fallback label.Label
	logger   *zap.Logger
}

// ClassifierConfig holds the routing model settings.
type ClassifierConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Fallback label.Label
	Logger   *zap.Logger
}

// NewClassifier creates a routing classifier.
func NewClassifier(cfg *ClassifierConfig) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Classifier{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		fallback: cfg.Fallback,
		logger:   cfg.Logger,
	}
}

// Classify implements chat.Classifier.
func (c *Classifier) Classify(ctx context.Context, query string) domain.Classification {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   10,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: routingPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		c.logger.Warn("classification request failed, using fallback",
			zap.String("fallback", c.fallback.String()),
			zap.Error(err))
		metrics.ClassificationTotal.WithLabelValues("fallback", c.fallback.String()).Inc()
		return domain.Classification{Label: c.fallback, Fallback: true, Reason: err.Error()}
	}

	if len(resp.Choices) == 0 {
		metrics.ClassificationTotal.WithLabelValues("fallback", c.fallback.String()).Inc()
		return domain.Classification{Label: c.fallback, Fallback: true, Reason: "empty completion"}
	}

	l, ok := parseLabel(resp.Choices[0].Message.Content)
	if !ok {
		c.logger.Warn("unrecognized classification reply, using fallback",
			zap.String("reply", resp.Choices[0].Message.Content),
			zap.String("fallback", c.fallback.String()))
		metrics.ClassificationTotal.WithLabelValues("fallback", c.fallback.String()).Inc()
		return domain.Classification{Label: c.fallback, Fallback: true, Reason: "unrecognized reply"}
	}

	metrics.ClassificationTotal.WithLabelValues("ok", l.String()).Inc()
	return domain.Classification{Label: l}
}

// parseLabel matches the model reply to a known label. Exact match first,
// then containment, so replies like "Category: pricing." still resolve.
func parseLabel(reply string) (label.Label, bool) {
	if l, ok := label.Parse(reply); ok {
		return l, true
	}
	lower := strings.ToLower(reply)
	for _, l := range label.All() {
		if strings.Contains(lower, l.String()) {
			return l, true
		}
	}
	return "", false
}
