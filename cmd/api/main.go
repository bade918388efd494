// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/config"
	"github.com/stridefit-ai/coaching-engine/internal/handler"
	"github.com/stridefit-ai/coaching-engine/internal/llm"
	"github.com/stridefit-ai/coaching-engine/internal/middleware"
	natsclient "github.com/stridefit-ai/coaching-engine/internal/nats"
	"github.com/stridefit-ai/coaching-engine/internal/orchestrator"
	"github.com/stridefit-ai/coaching-engine/internal/retry"
	"github.com/stridefit-ai/coaching-engine/internal/service"
	"github.com/stridefit-ai/coaching-engine/internal/store"
	"github.com/stridefit-ai/coaching-engine/internal/tool"
	"github.com/stridefit-ai/coaching-engine/internal/tools"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
	"github.com/stridefit-ai/coaching-engine/pkg/tracing"
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

	log.Info("starting coaching engine")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "coaching-engine", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Message store: JetStream when configured, in-memory otherwise.
	var (
		msgStore   store.Store
		natsClient *natsclient.Client
	)
	if cfg.NATSEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		msgStore, err = natsclient.NewMessageStore(ctx, natsClient, log)
		if err != nil {
			log.Error("failed to create message store", zap.Error(err))
			os.Exit(1)
		}
	} else {
		msgStore = store.NewMemory()
	}

	// LLM transport with stream idle detection.
	llmClient, err := llm.NewClient(llm.Provider(cfg.DefaultProvider), providerKey(cfg))
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}
	transport := llm.WithIdleTimeout(llmClient, cfg.StreamIdleTimeout)

	// Tool registry with the built-in coaching tools.
	registry := tool.NewRegistry()
	workoutLog := tools.NewWorkoutLog()
	if err := tools.Register(registry, workoutLog); err != nil {
		log.Error("failed to register tools", zap.Error(err))
		os.Exit(1)
	}
	executor := tool.NewExecutor(registry, log)

	orch := orchestrator.New(transport, executor, msgStore, log, orchestrator.Config{
		Model:          cfg.DefaultModel,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		Reasoning:      cfg.ReasoningEnabled,
		MaxTurns:       cfg.MaxTurnsPerSend,
		NotifyInterval: cfg.NotifyInterval,
	})

	// Connectivity: probe an endpoint when one is configured, otherwise
	// assume online (server deployments).
	var monitor retry.Monitor
	if cfg.ProbeURL != "" {
		probe := retry.NewProbeMonitor(cfg.ProbeURL, cfg.ProbeInterval, log)
		probe.Start()
		defer probe.Stop()
		monitor = probe
	} else {
		monitor = retry.NewManualMonitor(true)
	}

	coord := retry.New(monitor, msgStore, log, retry.Config{
		BaseDelay:    cfg.RetryBaseDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		Multiplier:   cfg.RetryMultiplier,
		JitterFactor: cfg.RetryJitter,
		MaxAttempts:  cfg.RetryMaxAttempts,
	})

	// Services
	conversationSvc := service.NewConversationService(msgStore, log)
	chatSvc := service.NewChatService(conversationSvc, orch, coord, msgStore, log, cfg.SystemPrompt)

	// Handlers
	healthHandler := handler.NewHealthHandler(natsClient, monitor)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(chatSvc, log)
	streamHandler := handler.NewStreamHandler(chatSvc, conversationSvc, log)

	// Router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)

				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Post("/messages/{messageID}/retry", messageHandler.Retry)

				r.Get("/stream", streamHandler.Stream)
				r.Post("/stream", streamHandler.StreamWithMessage)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func providerKey(cfg *config.Config) string {
	if llm.Provider(cfg.DefaultProvider) == llm.ProviderOpenAI {
		return cfg.OpenAIAPIKey
	}
	return cfg.AnthropicAPIKey
}
