// Package ragchat provides a Go client for the ragchat API.
//
//	client := ragchat.New("http://localhost:8080")
//	_ = client.Login(ctx, "alice", "secret-password")
//	resp, _ := client.Chat(ctx, ragchat.ChatRequest{Message: "How do I lodge a return?"})
//	fmt.Println(resp.Answer)
package ragchat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Option configures the Client.
type Option interface {
	apply(*Client)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) { c.httpClient = hc })
}

// WithToken sets a pre-issued JWT instead of calling Login.
func WithToken(token string) Option {
	return optionFunc(func(c *Client) { c.token = token })
}

// Client is the ragchat SDK entry point.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a ragchat Client for the given server base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ragchat: %s (%d %s)", e.Message, e.Status, e.Code)
}

// User is a registered account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ChatRequest is a question for the assistant. A zero ChatID starts a new
// conversation; the assigned ID comes back in ChatResponse.ChatID.
type ChatRequest struct {
	ChatID           string   `json:"chat_id,omitempty"`
	Message          string   `json:"message"`
	HierarchyFilters []string `json:"hierarchy_filters,omitempty"`
	IndexName        string   `json:"index_name,omitempty"`
	Limit            int      `json:"limit,omitempty"`
}

// Source is a retrieved document backing an answer.
type Source struct {
	Title     string  `json:"title"`
	Hierarchy string  `json:"hierarchy"`
	Content   string  `json:"content"`
	URL       string  `json:"url,omitempty"`
	Score     float64 `json:"score"`
}

// ChatResponse is a complete buffered answer.
type ChatResponse struct {
	ChatID  string
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Index   string   `json:"index"`
}

// Classification is the routing decision for a message.
type Classification struct {
	Label    string `json:"label"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

// ChatSummary is a conversation list entry.
type ChatSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one transcript turn. IndexUsed and Sources are present on
// assistant turns only.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	IndexUsed string    `json:"index_used,omitempty"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatDetail is a conversation with its transcript.
type ChatDetail struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) (User, error) {
	var u User
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"username": username, "password": password}, &u, nil)
	return u, err
}

// Login authenticates and stores the issued token on the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": username, "password": password}, &resp, nil)
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

// Token returns the JWT currently held by the client.
func (c *Client) Token() string { return c.token }

// Chat asks a question and waits for the complete answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var resp ChatResponse
	var header http.Header
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/chat", req, &resp, &header); err != nil {
		return ChatResponse{}, err
	}
	resp.ChatID = header.Get("X-Chat-Id")
	return resp, nil
}

// StreamHandler receives streamed answer parts in delivery order: OnSources
// once, then OnChunk per fragment. Nil callbacks are skipped.
type StreamHandler struct {
	OnSources func(sources []Source)
	OnChunk   func(text string)
}

// ChatStream asks a question and streams the answer through the handler.
// It returns the chat ID and the full accumulated answer.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, h StreamHandler) (chatID, answer string, err error) {
	body := struct {
		ChatRequest
		Stream bool `json:"stream"`
	}{ChatRequest: req, Stream: true}

	httpResp, err := c.do(ctx, http.MethodPost, "/api/v1/chat", body)
	if err != nil {
		return "", "", err
	}
	defer httpResp.Body.Close()

	chatID = httpResp.Header.Get("X-Chat-Id")
	if !strings.HasPrefix(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		return chatID, "", decodeAPIError(httpResp)
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var ev struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return chatID, sb.String(), fmt.Errorf("ragchat: malformed stream event: %w", err)
		}

		switch ev.Type {
		case "sources":
			var sources []Source
			if err := json.Unmarshal(ev.Data, &sources); err != nil {
				return chatID, sb.String(), fmt.Errorf("ragchat: malformed sources event: %w", err)
			}
			if h.OnSources != nil {
				h.OnSources(sources)
			}
		case "chunk":
			var text string
			if err := json.Unmarshal(ev.Data, &text); err != nil {
				return chatID, sb.String(), fmt.Errorf("ragchat: malformed chunk event: %w", err)
			}
			sb.WriteString(text)
			if h.OnChunk != nil {
				h.OnChunk(text)
			}
		case "error":
			var msg string
			_ = json.Unmarshal(ev.Data, &msg)
			return chatID, sb.String(), &APIError{Status: httpResp.StatusCode, Code: "stream_error", Message: msg}
		case "done":
			return chatID, sb.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return chatID, sb.String(), fmt.Errorf("ragchat: read stream: %w", err)
	}
	return chatID, sb.String(), fmt.Errorf("ragchat: stream ended without done event")
}

// Classify returns the routing decision for a message without answering it.
func (c *Client) Classify(ctx context.Context, message string) (Classification, error) {
	var resp Classification
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/classify",
		map[string]string{"message": message}, &resp, nil)
	return resp, err
}

// Chats lists the authenticated user's conversations.
func (c *Client) Chats(ctx context.Context) ([]ChatSummary, error) {
	var resp struct {
		Items []ChatSummary `json:"items"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/chats/", nil, &resp, nil)
	return resp.Items, err
}

// GetChat fetches a conversation and its transcript.
func (c *Client) GetChat(ctx context.Context, chatID string) (ChatDetail, error) {
	var resp ChatDetail
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/chats/"+chatID, nil, &resp, nil)
	return resp, err
}

// DeleteChat removes a conversation and its transcript.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/v1/chats/"+chatID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ragchat: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("ragchat: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ragchat: %w", err)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, header *http.Header) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if header != nil {
		*header = resp.Header
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ragchat: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: "unknown", Message: resp.Status}
	_ = json.NewDecoder(resp.Body).Decode(apiErr)
	return apiErr
}
