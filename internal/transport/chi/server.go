// Package chi exposes the HTTP API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lodgeit-ai/ragchat/internal/db"
	"github.com/lodgeit-ai/ragchat/internal/domain"
	domchat "github.com/lodgeit-ai/ragchat/internal/domain/chat"
	"github.com/lodgeit-ai/ragchat/internal/domain/document"
	"github.com/lodgeit-ai/ragchat/internal/domain/query"
	domuser "github.com/lodgeit-ai/ragchat/internal/domain/user"
	authuc "github.com/lodgeit-ai/ragchat/internal/usecase/auth"
	chatuc "github.com/lodgeit-ai/ragchat/internal/usecase/chat"
	historyuc "github.com/lodgeit-ai/ragchat/internal/usecase/history"
)

// Error codes returned in JSON error responses.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeNotFound         = "not_found"
	codeConflict         = "conflict"
	codeUpstreamError    = "upstream_error"
	codeInternalError    = "internal_error"
)

// ChatService answers user queries.
type ChatService interface {
	Answer(ctx context.Context, q query.Query) (chatuc.Response, error)
	AnswerStream(ctx context.Context, q query.Query, sink chatuc.StreamSink) (chatuc.StreamResult, error)
	Classify(ctx context.Context, message string) domain.Classification
}

// AuthService manages accounts and tokens.
type AuthService interface {
	Register(ctx context.Context, username, password string) (domuser.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	VerifyToken(token string) (authuc.Identity, error)
}

// HistoryService manages chat sessions and transcripts.
type HistoryService interface {
	Create(ctx context.Context, userID string) (domchat.Session, error)
	Get(ctx context.Context, userID, sessionID string) (domchat.Session, error)
	List(ctx context.Context, userID string) ([]domchat.Session, error)
	Messages(ctx context.Context, userID, sessionID string) ([]domchat.Message, error)
	Delete(ctx context.Context, userID, sessionID string) error
	Record(ctx context.Context, userID, sessionID string, ex historyuc.Exchange) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server hosts the chat, auth and history endpoints.
type Server struct {
	chat          ChatService
	auth          AuthService
	history       HistoryService
	pinger        db.Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chat ChatService,
	auth AuthService,
	history HistoryService,
	pinger db.Pinger,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:    chat,
		auth:    auth,
		history: history,
		pinger:  pinger,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized),
		sentinelHandler(domain.ErrInvalidCredentials, http.StatusUnauthorized, codeUnauthorized),
		sentinelHandler(domain.ErrUserExists, http.StatusConflict, codeConflict),
		sentinelHandler(domain.ErrUserNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrChatNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrRetrievalFailed, http.StatusBadGateway, codeUpstreamError),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, codeUpstreamError),
		sentinelHandler(domain.ErrCatalogInconsistency, http.StatusInternalServerError, codeInternalError),
	}
	return s
}

// Routes registers all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.RegisterUser)
		r.Post("/auth/login", s.LoginUser)
		r.Get("/auth/me", s.CurrentUser)

		r.Post("/chat", s.Chat)
		r.Post("/classify", s.Classify)

		r.Route("/chats", func(r chi.Router) {
			r.Post("/", s.CreateChat)
			r.Get("/", s.ListChats)
			r.Get("/{chatID}", s.GetChat)
			r.Delete("/{chatID}", s.DeleteChat)
		})
	})
}

// --- Wire types ---

type chatRequest struct {
	ChatID           string   `json:"chat_id,omitempty"`
	Message          string   `json:"message"`
	HierarchyFilters []string `json:"hierarchy_filters,omitempty"`
	IndexName        string   `json:"index_name,omitempty"`
	Limit            int      `json:"limit,omitempty"`
	Stream           bool     `json:"stream,omitempty"`
}

type sourceDTO struct {
	Title     string  `json:"title"`
	Hierarchy string  `json:"hierarchy"`
	Content   string  `json:"content"`
	URL       string  `json:"url,omitempty"`
	Score     float64 `json:"score"`
}

type chatResponse struct {
	Answer  string      `json:"answer"`
	Sources []sourceDTO `json:"sources"`
	Index   string      `json:"index"`
}

type classifyRequest struct {
	Message string `json:"message"`
}

type classifyResponse struct {
	Label    string `json:"label"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageDTO struct {
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	IndexUsed string      `json:"index_used,omitempty"`
	Sources   []sourceDTO `json:"sources,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type chatDetailResponse struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Messages []messageDTO `json:"messages"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Chat ---

// Chat handles POST /api/v1/chat, in buffered or streaming mode.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = query.DefaultLimit
	}
	q, err := query.New(req.Message, req.HierarchyFilters, req.IndexName, limit, req.Stream)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	session, err := s.resolveSession(r.Context(), identity.UserID, req.ChatID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.Header().Set("X-Chat-Id", session.ID())

	if q.Stream() {
		s.chatStream(w, r, identity.UserID, session.ID(), q)
		return
	}

	resp, err := s.chat.Answer(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	s.record(r.Context(), identity.UserID, session.ID(), historyuc.Exchange{
		Question: q.Message(),
		Answer:   resp.Answer,
		Index:    resp.Index,
		Sources:  resp.Sources,
	})

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:  resp.Answer,
		Sources: sourcesToDTO(resp.Sources),
		Index:   resp.Index.String(),
	})
}

func (s *Server) chatStream(
	w http.ResponseWriter, r *http.Request, userID, sessionID string, q query.Query,
) {
	sink, err := newSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	result, err := s.chat.AnswerStream(r.Context(), q, sink)
	if err != nil {
		// Before any event is on the wire a JSON error is still possible;
		// afterwards the failure travels in-band.
		if !sink.Started() {
			s.handleDomainError(w, err)
			return
		}
		s.logger.Warn("stream aborted", zap.Error(err))
		sink.Error(safeDomainMessage(err))
		return
	}

	sink.Done()
	s.record(r.Context(), userID, sessionID, historyuc.Exchange{
		Question: q.Message(),
		Answer:   sink.Answer(),
		Index:    result.Index,
		Sources:  result.Sources,
	})
}

// resolveSession loads the addressed session or starts a new one.
func (s *Server) resolveSession(
	ctx context.Context, userID, chatID string,
) (domchat.Session, error) {
	if chatID == "" {
		return s.history.Create(ctx, userID)
	}
	return s.history.Get(ctx, userID, chatID)
}

// record persists the exchange. Recording failures do not affect the
// response: the answer has already been produced.
func (s *Server) record(ctx context.Context, userID, sessionID string, ex historyuc.Exchange) {
	// The request context may already be canceled after a completed stream.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.history.Record(recordCtx, userID, sessionID, ex); err != nil {
		s.logger.Error("failed to record exchange",
			zap.String("chat_id", sessionID),
			zap.Error(err))
	}
}

// Classify handles POST /api/v1/classify (diagnostic endpoint).
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "message is required")
		return
	}

	c := s.chat.Classify(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, classifyResponse{
		Label:    c.Label.String(),
		Fallback: c.Fallback,
		Reason:   c.Reason,
	})
}

// --- Auth ---

// RegisterUser handles POST /api/v1/auth/register.
func (s *Server) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	u, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:        u.ID(),
		Username:  u.Username(),
		CreatedAt: time.UnixMilli(u.CreatedAt()).UTC(),
	})
}

// LoginUser handles POST /api/v1/auth/login.
func (s *Server) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// CurrentUser handles GET /api/v1/auth/me.
func (s *Server) CurrentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":  identity.UserID,
		"username": identity.Username,
	})
}

// --- Chat history ---

// CreateChat handles POST /api/v1/chats.
func (s *Server) CreateChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	session, err := s.history.Create(r.Context(), identity.UserID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionToDTO(session))
}

// ListChats handles GET /api/v1/chats.
func (s *Server) ListChats(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	sessions, err := s.history.List(r.Context(), identity.UserID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]sessionResponse, len(sessions))
	for i, session := range sessions {
		items[i] = sessionToDTO(session)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetChat handles GET /api/v1/chats/{chatID}.
func (s *Server) GetChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}
	chatID := chi.URLParam(r, "chatID")

	session, err := s.history.Get(r.Context(), identity.UserID, chatID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	messages, err := s.history.Messages(r.Context(), identity.UserID, chatID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]messageDTO, len(messages))
	for i, m := range messages {
		items[i] = messageDTO{
			Role:      string(m.Role()),
			Content:   m.Content(),
			IndexUsed: m.Index().String(),
			Sources:   sourcesToDTO(m.Sources()),
			CreatedAt: time.UnixMilli(m.CreatedAt()).UTC(),
		}
	}
	writeJSON(w, http.StatusOK, chatDetailResponse{
		ID:       session.ID(),
		Title:    session.Title(),
		Messages: items,
	})
}

// DeleteChat handles DELETE /api/v1/chats/{chatID}.
func (s *Server) DeleteChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	if err := s.history.Delete(r.Context(), identity.UserID, chi.URLParam(r, "chatID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Ops ---

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	checks := map[string]string{"database": "ok"}

	if err := s.pinger.Ping(r.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		checks["database"] = "unreachable"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- Helpers ---

func sourcesToDTO(docs []document.Document) []sourceDTO {
	out := make([]sourceDTO, len(docs))
	for i, d := range docs {
		out[i] = sourceDTO{
			Title:     d.Title(),
			Hierarchy: d.Hierarchy(),
			Content:   d.Content(),
			URL:       d.URL(),
			Score:     d.Score(),
		}
	}
	return out
}

func sessionToDTO(s domchat.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID(),
		Title:     s.Title(),
		CreatedAt: time.UnixMilli(s.CreatedAt()).UTC(),
		UpdatedAt: time.UnixMilli(s.UpdatedAt()).UTC(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrUnauthorized,
		domain.ErrInvalidCredentials,
		domain.ErrUserExists,
		domain.ErrUserNotFound,
		domain.ErrChatNotFound,
		domain.ErrRetrievalFailed,
		domain.ErrGenerationFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
