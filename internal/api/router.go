package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samtale/samtale/internal/api/handlers"
	mw "github.com/samtale/samtale/internal/api/middleware"
	"github.com/samtale/samtale/internal/buildconfig"
	"github.com/samtale/samtale/internal/config"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/freshdesk"
	"github.com/samtale/samtale/internal/service"
	"github.com/samtale/samtale/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Cleanup      *service.CleanupScheduler
	TicketWorker *service.TicketQueueService
	Presence     *service.PresenceService
	startTime    time.Time
	metrics      *mw.MetricsCollector
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	chatbotStore := store.NewChatbotStore(db)
	policyStore := store.NewRetentionPolicyStore(db)
	cleanupStore := store.NewCleanupStore(db)
	conversationStore := store.NewConversationStore(db)
	ticketStore := store.NewTicketStore(db)
	experimentStore := store.NewExperimentStore(db)

	// Freshdesk is optional: without credentials the queue still accepts
	// tickets, they just stay pending until an operator configures delivery.
	var ticketSender domain.TicketSender
	subdomain, apiKey := config.FreshdeskSubdomain(), config.FreshdeskAPIKey()
	if subdomain != "" && apiKey != "" {
		ticketSender = freshdesk.NewClient(subdomain, apiKey)
		logger.Info("freshdesk client initialized", zap.String("subdomain", subdomain))
	} else {
		logger.Warn("freshdesk credentials missing, ticket delivery disabled")
	}

	// Services
	retentionSvc := service.NewRetentionService(policyStore, cleanupStore, logger)
	conversationSvc := service.NewConversationService(conversationStore, logger)
	ticketSvc := service.NewTicketQueueService(ticketStore, ticketSender, logger)
	ticketSvc.SetInterval(config.TicketDrainInterval())
	ticketSvc.SetBatchSize(config.TicketDrainBatch())
	experimentSvc := service.NewExperimentService(experimentStore, logger)
	presenceSvc := service.NewPresenceService(config.PresenceTTL(), logger)
	scheduler := service.NewCleanupScheduler(retentionSvc, config.CleanupHour(), logger)

	// Handlers
	chatbotHandler := handlers.NewChatbotHandler(chatbotStore)
	retentionHandler := handlers.NewRetentionHandler(retentionSvc)
	conversationHandler := handlers.NewConversationHandler(conversationSvc)
	ticketHandler := handlers.NewTicketHandler(ticketSvc)
	experimentHandler := handlers.NewExperimentHandler(experimentSvc)
	presenceHandler := handlers.NewPresenceHandler(presenceSvc)
	opsHandler := handlers.NewOpsHandler(retentionSvc, ticketSvc)

	r := chi.NewRouter()

	app := &App{
		Router:       r,
		Cleanup:      scheduler,
		TicketWorker: ticketSvc,
		Presence:     presenceSvc,
		startTime:    time.Now(),
		metrics:      mw.NewMetricsCollector(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(app.metrics.Middleware)                                       // Collect metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Chatbot registration (no auth, bootstrap endpoint)
	r.Post("/v1/chatbots", chatbotHandler.Register)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(chatbotStore))

		r.Get("/chatbots/me", chatbotHandler.Me)

		// GDPR retention settings and cleanup
		r.Route("/retention", func(r chi.Router) {
			r.Get("/", retentionHandler.GetSettings)
			r.Put("/", retentionHandler.UpdateSettings)
			r.Get("/preview", retentionHandler.Preview)
			r.Post("/cleanup", retentionHandler.Execute)
		})

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.GetByID)
				r.Post("/messages", conversationHandler.AppendMessage)
				r.Get("/messages", conversationHandler.ListMessages)
				r.Post("/chunks", conversationHandler.AddChunk)
				r.Post("/handoff", conversationHandler.RequestHandoff)
				r.Post("/handoff/claim", conversationHandler.ClaimHandoff)
				r.Post("/handoff/close", conversationHandler.CloseHandoff)
			})
		})

		// Context chunk search across the chatbot's conversations
		r.Post("/chunks/search", conversationHandler.SearchChunks)

		// Live hand-off queue
		r.Get("/handoffs", conversationHandler.HandoffQueue)

		// Support tickets
		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", ticketHandler.Create)
			r.Get("/", ticketHandler.List)
			r.Get("/{id}", ticketHandler.GetByID)
		})

		// Split tests
		r.Route("/experiments", func(r chi.Router) {
			r.Put("/", experimentHandler.Upsert)
			r.Get("/", experimentHandler.List)
			r.Get("/assignments", experimentHandler.Assignments)
			r.Get("/{name}/assignment", experimentHandler.Assign)
		})

		// Agent presence
		r.Route("/presence", func(r chi.Router) {
			r.Post("/heartbeat", presenceHandler.Heartbeat)
			r.Get("/", presenceHandler.Online)
			r.Delete("/{agentID}", presenceHandler.Offline)
		})
	})

	// Operator endpoints (shared ops key, not tenant keys)
	r.Route("/internal", func(r chi.Router) {
		r.Use(mw.OpsKeyAuth(config.OpsKey()))

		r.Post("/cleanup/run", opsHandler.RunCleanup)
		r.Post("/tickets/drain", opsHandler.DrainTickets)
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage lifecycles
// themselves.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"version":        buildconfig.Version(),
			"commit":         buildconfig.Commit(),
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.metrics.Requests(),
			"error_count":    app.metrics.Errors(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.ChatbotStore         = (*store.ChatbotStore)(nil)
	_ domain.RetentionPolicyStore = (*store.RetentionPolicyStore)(nil)
	_ domain.CleanupStore         = (*store.CleanupStore)(nil)
	_ domain.ConversationStore    = (*store.ConversationStore)(nil)
	_ domain.TicketStore          = (*store.TicketStore)(nil)
	_ domain.ExperimentStore      = (*store.ExperimentStore)(nil)
	_ domain.TicketSender         = (*freshdesk.Client)(nil)
)
