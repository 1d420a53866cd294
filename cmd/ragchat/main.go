package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lodgeit-ai/ragchat/internal/catalog"
	"github.com/lodgeit-ai/ragchat/internal/config"
	dbRedis "github.com/lodgeit-ai/ragchat/internal/db/redis"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
	logpkg "github.com/lodgeit-ai/ragchat/internal/logger"
	"github.com/lodgeit-ai/ragchat/internal/metrics"
	"github.com/lodgeit-ai/ragchat/internal/prompt"
	historyrepo "github.com/lodgeit-ai/ragchat/internal/repository/history"
	userrepo "github.com/lodgeit-ai/ragchat/internal/repository/user"
	chiTransport "github.com/lodgeit-ai/ragchat/internal/transport/chi"
	openaiTransport "github.com/lodgeit-ai/ragchat/internal/transport/openai"
	"github.com/lodgeit-ai/ragchat/internal/transport/search"
	authuc "github.com/lodgeit-ai/ragchat/internal/usecase/auth"
	chatuc "github.com/lodgeit-ai/ragchat/internal/usecase/chat"
	historyuc "github.com/lodgeit-ai/ragchat/internal/usecase/history"
	"github.com/lodgeit-ai/ragchat/internal/version"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragchat API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register upstream metrics explicitly (no init())
	metrics.RegisterUpstreamMetrics()

	defaultLabel, ok := label.Parse(cfg.Routing.DefaultLabel)
	if !ok {
		logger.Fatal("Unknown default routing label", zap.String("label", cfg.Routing.DefaultLabel))
	}
	cat, err := catalog.New(defaultLabel)
	if err != nil {
		logger.Fatal("Index catalog inconsistent", zap.Error(err))
	}

	classifier := openaiTransport.NewClassifier(&openaiTransport.ClassifierConfig{
		APIKey:   cfg.Classifier.APIKey,
		BaseURL:  cfg.Classifier.BaseURL,
		Model:    cfg.Classifier.Model,
		Timeout:  time.Duration(cfg.Classifier.TimeoutSec) * time.Second,
		Fallback: defaultLabel,
		Logger:   logger,
	})
	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:        cfg.Generation.APIKey,
		BaseURL:       cfg.Generation.BaseURL,
		Model:         cfg.Generation.Model,
		Timeout:       time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		StreamTimeout: time.Duration(cfg.Generation.StreamTimeoutSec) * time.Second,
		MaxTokens:     cfg.Generation.MaxTokens,
		Logger:        logger,
	})
	retriever := search.NewClient(&search.Config{
		Endpoint:   cfg.Search.Endpoint,
		APIKey:     cfg.Search.APIKey,
		APIVersion: cfg.Search.APIVersion,
		Timeout:    time.Duration(cfg.Search.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	logger.Info("Upstream clients created",
		zap.String("classifier_model", cfg.Classifier.Model),
		zap.String("generation_model", cfg.Generation.Model),
		zap.String("search_endpoint", cfg.Search.Endpoint),
	)

	userRepo := userrepo.New(store, cfg.Database.KeyPrefix)
	histRepo := historyrepo.New(store, cfg.Database.KeyPrefix)

	builder := prompt.NewBuilder(cfg.Prompt.MaxContextBytes)
	chatSvc := chatuc.New(classifier, retriever, generator, cat, builder, logger)
	authSvc := authuc.New(userRepo, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMin)*time.Minute)
	histSvc := historyuc.New(histRepo)

	server := chiTransport.NewServer(chatSvc, authSvc, histSvc, store, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.JWTAuthMiddleware(authSvc))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		// WriteTimeout of zero keeps long-lived SSE responses alive.
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
