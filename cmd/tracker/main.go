package main

import (
	"github.com/cfcgs/cfcgs-tracker-backend/internal/chat"
	trackerconfig "github.com/cfcgs/cfcgs-tracker-backend/internal/config"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/config"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/database"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/llm"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/monitoring"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/server"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("tracker")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting CFCGS Tracker (climate-finance chatbot API)")

	cfg := trackerconfig.LoadConfig()

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("tracker", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("tracker", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"LLM_API_KEY":  cfg.LLMAPIKey,
	}))

	llmProvider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		APIURL:    cfg.LLMAPIURL,
		MaxTokens: cfg.LLMMaxTokens,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize LLM provider")
	}

	store := chat.NewStore(chat.StoreConfig{
		Cap:                cfg.SessionCap,
		TTL:                cfg.SessionTTL,
		Freshness:          cfg.DefaultSessionFreshness,
		MaxHistoryMessages: cfg.MaxHistoryTurns,
	})
	lookup := chat.NewLookup(db, logger)
	orchestrator := chat.NewOrchestrator(chat.OrchestratorConfig{
		Store:           store,
		Router:          chat.NewRouter(llmProvider, logger),
		Resolver:        chat.NewResolver(llmProvider, logger),
		Disambiguator:   chat.NewDisambiguator(lookup, logger),
		Generator:       chat.NewGenerator(llmProvider, db, logger),
		Executor:        chat.NewExecutor(db, cfg.QueryTimeout, logger),
		LLMProvider:     llmProvider,
		Logger:          logger,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	})
	handler := chat.NewHandler(orchestrator, logger)

	// Setup router with health/metrics plus the chatbot surface
	router := server.SetupRouter(logger)
	router.Use(metricsCollector.MetricsMiddleware())
	router.GET("/health", healthChecker.Handler())
	router.GET("/metrics", metricsCollector.Handler())
	chat.RegisterRoutes(router, handler)

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("tracker", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
