// Package search adapts the managed search REST API for document retrieval.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/metrics"
)

// Client retrieves documents from the search service.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the search service settings.
type Config struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewClient creates a search client.
func NewClient(cfg *Config) *Client {
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

type searchRequest struct {
	Search    string `json:"search"`
	Filter    string `json:"filter,omitempty"`
	Top       int    `json:"top"`
	QueryType string `json:"queryType"`
}

type searchResponse struct {
	Value []struct {
		Score     float64 `json:"@search.score"`
		Title     string  `json:"title"`
		Hierarchy string  `json:"hierarchy"`
		Content   string  `json:"content"`
		URL       string  `json:"url"`
	} `json:"value"`
}

// Search implements chat.Retriever. Results come back ordered by relevance,
// highest first, regardless of the service's response ordering.
// A single retry covers transient failures.
func (c *Client) Search(
	ctx context.Context, index, query string, hierarchyFilters []string, limit int,
) ([]document.Document, error) {
	start := time.Now()

	docs, err := c.searchOnce(ctx, index, query, hierarchyFilters, limit)
	if err != nil && domain.IsTransient(err) && ctx.Err() == nil {
		c.logger.Warn("search failed, retrying once",
			zap.String("index", index),
			zap.Error(err))
		docs, err = c.searchOnce(ctx, index, query, hierarchyFilters, limit)
	}

	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(index, "error").Inc()
		return nil, err
	}

	metrics.RetrievalRequestsTotal.WithLabelValues(index, "success").Inc()
	metrics.RetrievalRequestDuration.WithLabelValues(index).Observe(time.Since(start).Seconds())
	return docs, nil
}

func (c *Client) searchOnce(
	ctx context.Context, index, query string, hierarchyFilters []string, limit int,
) ([]document.Document, error) {
	body, err := json.Marshal(searchRequest{
		Search:    query,
		Filter:    buildFilter(hierarchyFilters),
		Top:       limit,
		QueryType: "semantic",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		c.endpoint, url.PathEscape(index), url.QueryEscape(c.apiVersion))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapHTTPError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, wrapStatusError(resp)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w: %w", domain.ErrUpstreamBadResponse, err)
	}

	docs := make([]document.Document, 0, len(parsed.Value))
	for _, v := range parsed.Value {
		docs = append(docs, document.New(v.Title, v.Hierarchy, v.Content, v.URL, v.Score))
	}
	document.SortByScore(docs)
	return docs, nil
}

// buildFilter builds a prefix-range filter over the hierarchy field.
// Each filter F matches hierarchy values in [F, F+"addition"), which covers
// F itself and everything nested under it. Multiple filters are OR-joined.
func buildFilter(hierarchyFilters []string) string {
	clauses := make([]string, 0, len(hierarchyFilters))
	for _, f := range hierarchyFilters {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		escaped := strings.ReplaceAll(f, "'", "''")
		clauses = append(clauses,
			fmt.Sprintf("hierarchy ge '%s' and hierarchy le '%saddition'", escaped, escaped))
	}
	return strings.Join(clauses, " or ")
}

func wrapHTTPError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("search request: %w: %w", domain.ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("search request: %w", err)
	}
	return fmt.Errorf("search request: %w: %w", domain.ErrUpstreamUnavailable, err)
}

func wrapStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("search API error %d: %s: %w",
			resp.StatusCode, string(body), domain.ErrUpstreamUnavailable)
	}
	return fmt.Errorf("search API error %d: %s: %w",
		resp.StatusCode, string(body), domain.ErrUpstreamBadResponse)
}
