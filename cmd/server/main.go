package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/aggregator"
	"github.com/dennisdiepolder/monti/orchestrator/internal/api"
	"github.com/dennisdiepolder/monti/orchestrator/internal/auth"
	"github.com/dennisdiepolder/monti/orchestrator/internal/backlog"
	"github.com/dennisdiepolder/monti/orchestrator/internal/breaker"
	"github.com/dennisdiepolder/monti/orchestrator/internal/classifier"
	"github.com/dennisdiepolder/monti/orchestrator/internal/config"
	"github.com/dennisdiepolder/monti/orchestrator/internal/dispatch"
	"github.com/dennisdiepolder/monti/orchestrator/internal/embedding"
	"github.com/dennisdiepolder/monti/orchestrator/internal/idempotency"
	"github.com/dennisdiepolder/monti/orchestrator/internal/metrics"
	"github.com/dennisdiepolder/monti/orchestrator/internal/orchestrator"
	"github.com/dennisdiepolder/monti/orchestrator/internal/reporting"
	"github.com/dennisdiepolder/monti/orchestrator/internal/roster"
	"github.com/dennisdiepolder/monti/orchestrator/internal/storage"
	"github.com/dennisdiepolder/monti/orchestrator/internal/storm"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/dennisdiepolder/monti/orchestrator/internal/websocket"
	"github.com/dennisdiepolder/monti/orchestrator/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("classifier", cfg.ClassifierProvider).
		Msg("starting ticket orchestrator")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// Create WebSocket hub
	hub := websocket.NewHub(m, log.Logger)
	go hub.Run()

	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	locker, err := idempotency.New(ctx, cfg.RedisURL, cfg.IdempotencyTTL, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize idempotency locks")
	}

	embedder, err := embedding.NewHashingEmbedder(cfg.EmbeddingDimensions)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create embedder")
	}
	detector, err := storm.NewDetector(storm.Config{
		SimilarityThreshold: cfg.SimilarityThreshold,
		TicketThreshold:     cfg.StormTicketThreshold,
		TimeWindow:          cfg.StormTimeWindow,
		BufferCapacity:      cfg.StormBufferCapacity,
	}, embedder, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create storm detector")
	}

	cb, err := breaker.New(breaker.Config{
		LatencyThreshold:  cfg.LatencyThreshold,
		FailureThreshold:  cfg.FailureThreshold,
		RecoveryTimeout:   cfg.RecoveryTimeout,
		HalfOpenSuccesses: cfg.HalfOpenSuccesses,
		OnStateChange:     orchestrator.CircuitObserver(hub, m, log.Logger),
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create circuit breaker")
	}

	// The baseline is always the fallback; it also serves as primary when no model is configured
	baseline := classifier.NewBaseline()
	primary := breaker.PrimaryFunc(baseline.Primary)
	if cfg.ClassifierProvider == config.ProviderAnthropic {
		llm, err := classifier.NewLLM(cfg.AnthropicAPIKey, cfg.AnthropicModel, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create LLM classifier")
		}
		primary = llm.Classify
	}

	agents, err := loadAgents(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load agent roster")
	}
	dispatcher, err := dispatch.NewDispatcher(agents, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create dispatcher")
	}

	if cfg.RosterPath != "" {
		rosterWatcher, err := roster.NewWatcher(cfg.RosterPath, cfg.DefaultMaxCapacity, dispatcher, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("roster hot reload disabled")
		} else {
			go rosterWatcher.Start(ctx)
		}
	}

	// Tickets without a free agent wait here until capacity is released
	queue := backlog.NewManager(dispatcher, log.Logger)

	pipeline, err := orchestrator.New(orchestrator.Deps{
		Detector:       detector,
		Breaker:        cb,
		Primary:        primary,
		Fallback:       baseline.Classify,
		Dispatcher:     dispatcher,
		Locker:         locker,
		Backlog:        queue,
		Store:          store,
		Publisher:      hub,
		Metrics:        m,
		PrimaryTimeout: cfg.PrimaryTimeout,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pipeline")
	}

	// Create aggregator
	aggregatorService := aggregator.NewAggregator(pipeline, hub, m, log.Logger)
	go aggregatorService.Start(ctx)

	routingLoop := backlog.NewRoutingLoop(queue, hub, m, log.Logger)
	go routingLoop.Start(ctx)

	// Periodic agent load snapshots
	statsScheduler, err := reporting.NewScheduler(cfg.StatsSchedule, pipeline, store, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stats scheduler")
	}
	go statsScheduler.Start(ctx)

	r := newRouter(routerDeps{
		cfg:      cfg,
		pipeline: pipeline,
		backlog:  queue,
		store:    store,
		hub:      hub,
		metrics:  m,
		auth:     auth.NewAuthenticator(log.Logger),
		logger:   log.Logger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("agents", len(agents)).Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop aggregator and scheduler
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	hub.Stop()
	pipeline.Wait()
	if err := locker.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close idempotency locker")
	}

	log.Info().Msg("server stopped")
}

func loadAgents(cfg *config.Config) ([]types.Agent, error) {
	if cfg.RosterPath == "" {
		log.Info().Int("max_capacity", cfg.DefaultMaxCapacity).Msg("ROSTER_PATH not set, using default roster")
		return roster.Default(cfg.DefaultMaxCapacity), nil
	}
	return roster.Load(cfg.RosterPath, cfg.DefaultMaxCapacity)
}

type routerDeps struct {
	cfg      *config.Config
	pipeline api.Orchestrator
	backlog  api.Backlog
	store    storage.Store
	hub      *websocket.Hub
	metrics  *metrics.Metrics
	auth     *auth.Authenticator
	logger   zerolog.Logger
}

func newRouter(d routerDeps) chi.Router {
	tickets := api.NewTicketHandler(d.pipeline, d.logger)
	agentsAPI := api.NewAgentHandler(d.pipeline, d.store, d.logger)
	status := api.NewStatusHandler(d.pipeline, d.store, d.logger)
	admin := api.NewAdminHandler(d.store, d.logger)
	queues := api.NewBacklogHandler(d.backlog, d.logger)
	wsHandler := websocket.NewHandler(d.hub, d.cfg, d.logger)

	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", d.metrics.Handler())

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(d.auth.Middleware)
		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Post("/tickets", tickets.Submit)
			r.Post("/tickets/route", tickets.Route)
			r.Post("/tickets/batch", tickets.RouteBatch)

			r.Get("/agents", agentsAPI.List)
			r.With(auth.RequireRole(auth.RoleAdmin, auth.RoleSupervisor)).Post("/agents", agentsAPI.Upsert)
			r.Post("/agents/{agentId}/release", agentsAPI.Release)
			r.Get("/agents/{agentId}/history", agentsAPI.History)

			r.Get("/circuit-breaker/status", status.Circuit)
			r.Get("/master-incidents", status.MasterIncidents)
			r.Get("/decisions", status.Decisions)

			r.Get("/backlog", queues.Stats)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleSupervisor))
				r.Delete("/backlog", queues.WipeAll)
				r.Delete("/backlog/{ticketId}", queues.Cancel)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Post("/wipe-dynamo", admin.WipeDynamo)
			})
		})
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"ticket-orchestrator"}`)
}
