package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oppmatch/engine/internal/api/handlers"
	"github.com/oppmatch/engine/internal/api/middleware"
	"github.com/oppmatch/engine/internal/config"
	"github.com/oppmatch/engine/internal/conversation"
	"github.com/oppmatch/engine/internal/embeddings"
	"github.com/oppmatch/engine/internal/observability"
	"github.com/oppmatch/engine/internal/repository"
	"github.com/oppmatch/engine/internal/rocchio"
	"github.com/oppmatch/engine/internal/service"
	"github.com/oppmatch/engine/internal/vecindex"
	"github.com/oppmatch/engine/internal/worker"
	"github.com/oppmatch/engine/pkg/database"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)

	// Initialize database connection
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	opportunitiesRepo := repository.NewOpportunitiesRepository(db)
	profilesRepo := repository.NewProfilesRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	conversationsRepo := repository.NewConversationsRepository(db)

	// Conversation analysis and profile onboarding embeddings are optional;
	// without an OpenAI key, confidence falls back to stored analyses and
	// neutral defaults, and upserted profiles stay unmatchable.
	var (
		analyzer conversation.Analyzer
		embedder embeddings.Client
	)
	if cfg.OpenAIAPIKey != "" {
		analyzer, err = conversation.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, "")
		if err != nil {
			slog.Error("Failed to create conversation analyzer", "error", err)
			os.Exit(1)
		}

		embedder, err = embeddings.NewOpenAIClient(cfg.OpenAIAPIKey,
			embeddings.WithDimension(cfg.VectorDim),
			embeddings.WithRateLimit(float64(cfg.EmbeddingRateLimit)),
		)
		if err != nil {
			slog.Error("Failed to create embedding client", "error", err)
			os.Exit(1)
		}
		slog.Info("Conversation analysis and profile embedding enabled")
	} else {
		slog.Info("Conversation analysis and profile embedding disabled (OPENAI_API_KEY not set)")
	}

	// Vector index: load the persisted artifact, rebuilding from Postgres
	// when it is absent, corrupt, or built at a different dimension.
	indexManager := vecindex.NewManager(vecindex.ManagerParams{
		ArtifactPath: cfg.VectorIndexPath,
		Dim:          cfg.VectorDim,
		Source:       service.NewOpportunityIndexSource(opportunitiesRepo),
		Logger:       slog.Default(),
	})
	if err := indexManager.Load(ctx); err != nil {
		slog.Error("Failed to load vector index", "error", err)
		os.Exit(1)
	}

	// Services
	recommendationService, err := service.NewRecommendationService(service.RecommendationServiceParams{
		Profiles:      profilesRepo,
		Opportunities: opportunitiesRepo,
		Searcher:      indexManager,
	})
	if err != nil {
		slog.Error("Failed to create recommendation service", "error", err)
		os.Exit(1)
	}

	adaptationService := service.NewAdaptationService(service.AdaptationServiceParams{
		Profiles:         profilesRepo,
		Feedback:         feedbackRepo,
		Updater:          rocchio.NewUpdater(rocchio.UpdaterParams{}),
		Window:           time.Duration(cfg.AdaptWindowDays) * 24 * time.Hour,
		BatchConcurrency: cfg.AdaptConcurrency,
	})

	feedbackService := service.NewFeedbackService(service.FeedbackServiceParams{
		Feedback:      feedbackRepo,
		Opportunities: opportunitiesRepo,
		Conversations: conversationsRepo,
		Analyzer:      analyzer,
	})

	profileService := service.NewProfileService(service.ProfileServiceParams{
		Profiles: profilesRepo,
		Embedder: embedder,
	})

	conversationService := service.NewConversationService(service.ConversationServiceParams{
		Conversations: conversationsRepo,
		Analyzer:      analyzer,
	})

	server := newHTTPServer(cfg, &services{
		recommendations: recommendationService,
		feedback:        feedbackService,
		adaptation:      adaptationService,
		profiles:        profileService,
		conversations:   conversationService,
		indexManager:    indexManager,
	})

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Start the background adaptation sweep if enabled
	var sweep *worker.AdaptationScheduler
	if cfg.AdaptSweepIntervalMinutes > 0 {
		sweep = worker.NewAdaptationScheduler(worker.AdaptationSchedulerParams{
			Adapter:  adaptationService,
			Interval: time.Duration(cfg.AdaptSweepIntervalMinutes) * time.Minute,
			MaxUsers: cfg.AdaptMaxUsers,
		})
		sweep.Start(context.Background())
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// 2. Stop the sweep (waits for an in-flight round)
	if sweep != nil {
		sweep.Stop()
	}

	slog.Info("Server exited")
}

// services bundles the wired service layer for the router.
type services struct {
	recommendations *service.RecommendationService
	feedback        *service.FeedbackService
	adaptation      *service.AdaptationService
	profiles        *service.ProfileService
	conversations   *service.ConversationService
	indexManager    *vecindex.Manager
}

// newHTTPServer builds the router (no auth on /health, API key on /v1/) and
// the HTTP server around it. Logging runs inside RequestID so access logs
// carry request_id.
func newHTTPServer(cfg *config.Config, svcs *services) *http.Server {
	recommendationsHandler := handlers.NewRecommendationsHandler(svcs.recommendations)
	feedbackHandler := handlers.NewFeedbackHandler(svcs.feedback)
	profilesHandler := handlers.NewProfilesHandler(svcs.adaptation, svcs.profiles)
	conversationsHandler := handlers.NewConversationsHandler(svcs.conversations)
	indexHandler := handlers.NewIndexHandler(svcs.indexManager, svcs.recommendations)
	confidenceHandler := handlers.NewConfidenceHandler()
	healthHandler := handlers.NewHealthHandler()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS)

	r.Get("/health", healthHandler.Check)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.APIKey))

		r.Post("/recommendations", recommendationsHandler.Recommend)
		r.Post("/feedback", feedbackHandler.Record)
		r.Put("/profiles/{user_id}", profilesHandler.Upsert)
		r.Get("/profiles/{user_id}", profilesHandler.Get)
		r.Post("/profiles/{user_id}/adapt", profilesHandler.Adapt)
		r.Post("/profiles/adapt", profilesHandler.BatchAdapt)
		r.Post("/conversations", conversationsHandler.Start)
		r.Post("/conversations/{conversation_id}/messages", conversationsHandler.Append)
		r.Post("/conversations/{conversation_id}/finish", conversationsHandler.Finish)
		r.Post("/index/rebuild", indexHandler.Rebuild)
		r.Get("/index/status", indexHandler.Status)
		r.Post("/confidence/estimate", confidenceHandler.Estimate)
	})

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// setupLogging configures slog with the specified log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(handler)))
}
