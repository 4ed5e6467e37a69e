// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/analytics"
	"github.com/getchdocs/getchdocs-api/internal/auth"
	"github.com/getchdocs/getchdocs-api/internal/config"
	"github.com/getchdocs/getchdocs-api/internal/handler"
	"github.com/getchdocs/getchdocs-api/internal/llm"
	natsclient "github.com/getchdocs/getchdocs-api/internal/nats"
	"github.com/getchdocs/getchdocs-api/internal/service"
	"github.com/getchdocs/getchdocs-api/internal/store/memory"
	"github.com/getchdocs/getchdocs-api/internal/store/postgres"
	redisstore "github.com/getchdocs/getchdocs-api/internal/store/redis"
	"github.com/getchdocs/getchdocs-api/pkg/health"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
	"github.com/getchdocs/getchdocs-api/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server")
	ctx := context.Background()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "getchdocs-api", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	checker := health.NewChecker()

	var (
		users       service.UserRepository     = memory.NewUsers()
		docs        service.DocumentRepository = memory.NewDocuments()
		messages    service.MessageRepository  = memory.NewMessages()
		eventStores []analytics.Store
		history     service.EventHistory
	)

	// Postgres holds accounts, documents, history and the analytics log.
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, postgres.Config{
			URL:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}

		users = postgres.NewUsers(pg)
		docs = postgres.NewDocuments(pg)
		messages = postgres.NewMessages(pg)
		pgEvents := postgres.NewAnalytics(pg, cfg.AnalyticsMaxEvents, log)
		eventStores = append(eventStores, pgEvents)
		history = pgEvents
		checker.Register("postgres", pg.Ping)
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set, keeping data in memory")
	}

	// JetStream takes over chat history when configured.
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return err
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return err
		}
		messages = streamManager
		checker.Register("nats", natsClient.Ping)
	}

	// Redis mirrors the analytics log for other readers.
	if cfg.RedisURL != "" {
		rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, analytics mirror disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			mirror := redisstore.NewAnalytics(rdb, cfg.AnalyticsKey, cfg.AnalyticsMaxEvents, log)
			eventStores = append(eventStores, mirror)
			checker.RegisterOptional("redis", mirror.Ping)
		}
	}

	aggOpts := []analytics.Option{
		analytics.WithMaxEvents(cfg.AnalyticsMaxEvents),
		analytics.WithMaxPending(cfg.AnalyticsMaxPending),
		analytics.WithLocation(cfg.Location()),
		analytics.WithLogger(log),
	}
	if len(eventStores) > 0 {
		aggOpts = append(aggOpts, analytics.WithStore(analytics.Mirror(eventStores...)))
	}
	agg := analytics.New(aggOpts...)

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := agg.Load(loadCtx); err != nil {
		log.Warn("starting with an empty analytics log", zap.Error(err))
	}
	cancel()

	// Initialize LLM client
	llmClient, err := llm.Select(llm.Provider(cfg.DefaultLLM), cfg.OpenAIAPIKey, cfg.AnthropicAPIKey)
	switch {
	case err != nil:
		log.Warn("failed to create LLM client, questions will fail", zap.Error(err))
		llmClient = nil
	case llmClient == nil:
		log.Warn("no LLM API key configured, questions will fail")
	default:
		log.Info("LLM client ready", zap.String("provider", llmClient.Name()))
	}

	// Initialize services
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiration)
	userSvc := service.NewUserService(users, messages, tokens, log)
	if err := userSvc.SeedDefaults(ctx); err != nil {
		return err
	}
	docSvc := service.NewDocumentService(docs, cfg.MaxUploadBytes, log)
	chatSvc := service.NewChatService(messages, docs, llmClient, llm.DocumentPrompt{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}, agg, log)
	dashSvc := service.NewDashboardService(agg, docs, users, history, log)

	router := handler.NewRouter(handler.RouterConfig{
		Users:             userSvc,
		Documents:         docSvc,
		Chat:              chatSvc,
		Dashboard:         dashSvc,
		Health:            checker,
		Tokens:            tokens,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := agg.Flush(shutdownCtx); err != nil {
		log.Warn("analytics writes still pending at exit", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
